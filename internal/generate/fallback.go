package generate

import (
	"math"

	"github.com/dshills/floorplan/internal/layout"
)

// Fallback layout parameters.
const (
	FallbackConfidence   = 0.6
	fallbackAspect       = 1.5
	fallbackWallHeight   = 2700.0
	exteriorThickness    = 250.0
	interiorThickness    = 120.0
	interiorDoorWidth    = 900.0
	entranceDoorWidth    = 1000.0
	doorHeight           = 2100.0
	fallbackWindowWidth  = 1200.0
	fallbackWindowHeight = 1400.0
	fallbackSillHeight   = 900.0
)

type edgeKey struct{ x0, y0, x1, y1 float64 }

func newEdgeKey(a, b layout.Point2D) edgeKey {
	if b.X < a.X || (b.X == a.X && b.Y < a.Y) {
		a, b = b, a
	}
	return edgeKey{a.X, a.Y, b.X, b.Y}
}

// Fallback builds a deterministic grid layout for the room program. Rooms
// fill a cols x rows grid in program order; every occupied cell gets an equal
// share of the building area, laid out at a 1.5:1 aspect ratio. Shared cell
// edges become interior walls with a centered door, outward edges become
// exterior walls with a window, and the first room's west wall carries the
// entrance door, never narrower than 1000 mm.
func Fallback(req Request, entranceMM float64) *layout.Layout {
	rooms := req.Program.Rooms
	n := len(rooms)
	l := &layout.Layout{
		Confidence:      FallbackConfidence,
		ComplianceNotes: []string{"Deterministic grid layout; AI generation was unavailable"},
	}
	if n == 0 {
		return l
	}
	if entranceMM < entranceDoorWidth {
		entranceMM = entranceDoorWidth
	}

	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := int(math.Ceil(float64(n) / float64(cols)))
	cells := rows * cols

	area := req.Requirements.TotalAreaM2
	if area < req.Program.TotalAreaM2() {
		area = req.Program.TotalAreaM2()
	}
	area = area * float64(cells) / float64(n)
	widthM := math.Sqrt(area * fallbackAspect)
	heightM := area / widthM
	cellW := math.Ceil(widthM * 1000 / float64(cols))
	cellH := math.Ceil(heightM * 1000 / float64(rows))

	occupied := func(r, c int) bool {
		return r >= 0 && c >= 0 && r < rows && c < cols && r*cols+c < n
	}

	edges := make(map[edgeKey]int)
	addWall := func(a, b layout.Point2D, interior bool) (int, bool) {
		k := newEdgeKey(a, b)
		if idx, ok := edges[k]; ok {
			return idx, false
		}
		w := layout.WallElement{
			Start:       a,
			End:         b,
			Kind:        layout.WallExterior,
			HeightMM:    fallbackWallHeight,
			ThicknessMM: exteriorThickness,
		}
		if interior {
			w.Kind = layout.WallInterior
			w.ThicknessMM = interiorThickness
		}
		l.Walls = append(l.Walls, w)
		edges[k] = len(l.Walls) - 1
		return len(l.Walls) - 1, true
	}

	entranceWall := -1
	for i, spec := range rooms {
		r, c := i/cols, i%cols
		x0, y0 := float64(c)*cellW, float64(r)*cellH
		x1, y1 := x0+cellW, y0+cellH
		p00, p10 := layout.Point2D{X: x0, Y: y0}, layout.Point2D{X: x1, Y: y0}
		p11, p01 := layout.Point2D{X: x1, Y: y1}, layout.Point2D{X: x0, Y: y1}

		sides := []struct {
			a, b     layout.Point2D
			neighbor bool
			west     bool
		}{
			{p00, p10, occupied(r-1, c), false},
			{p10, p11, occupied(r, c+1), false},
			{p11, p01, occupied(r+1, c), false},
			{p01, p00, occupied(r, c-1), true},
		}

		boundary := make([]int, 0, 4)
		for _, s := range sides {
			idx, created := addWall(s.a, s.b, s.neighbor)
			boundary = append(boundary, idx)
			if !created {
				continue
			}
			length := l.Walls[idx].Length()
			switch {
			case s.neighbor:
				l.Doors = append(l.Doors, layout.DoorElement{
					WallIndex: idx, PositionMM: length / 2, WidthMM: interiorDoorWidth, HeightMM: doorHeight,
				})
			case i == 0 && s.west:
				entranceWall = idx
				l.Doors = append(l.Doors, layout.DoorElement{
					WallIndex: idx, PositionMM: length / 2, WidthMM: entranceMM, HeightMM: doorHeight, Swing: "in",
				})
			default:
				l.Windows = append(l.Windows, layout.WindowElement{
					WallIndex:    idx,
					PositionMM:   length / 2,
					WidthMM:      math.Min(fallbackWindowWidth, math.Round(length/2)),
					HeightMM:     fallbackWindowHeight,
					SillHeightMM: fallbackSillHeight,
				})
			}
		}

		l.Rooms = append(l.Rooms, layout.RoomBoundary{
			Name:                spec.Name,
			AreaM2:              math.Round(cellW*cellH/1e4) / 100,
			BoundaryWallIndices: boundary,
		})
	}
	if entranceWall >= 0 {
		l.ComplianceNotes = append(l.ComplianceNotes, "Entrance door on the west wall of "+rooms[0].Name)
	}
	return l
}
