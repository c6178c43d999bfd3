// Package layout defines the floor-plan data model shared by the generator,
// validator and review router.
//
// Doors, windows and rooms refer to walls by their position in Layout.Walls.
// Those indices may come from untrusted generated data, so every read goes
// through Layout.Wall, which bounds-checks instead of panicking.
package layout

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dshills/floorplan/internal/geometry"
)

// Point2D is a coordinate in millimeters.
type Point2D = geometry.Point

// WallKind distinguishes exterior envelope walls from interior partitions.
type WallKind string

const (
	WallExterior WallKind = "exterior"
	WallInterior WallKind = "interior"
)

func (k WallKind) Valid() bool {
	switch k {
	case WallExterior, WallInterior:
		return true
	}
	return false
}

// WallElement is a straight wall. A zero-length wall (Start == End) is legal
// to construct; the validator reports it.
type WallElement struct {
	Start       Point2D  `json:"start"`
	End         Point2D  `json:"end"`
	Kind        WallKind `json:"kind"`
	HeightMM    float64  `json:"height_mm"`
	ThicknessMM float64  `json:"thickness_mm"`
}

// Segment returns the wall's centerline.
func (w WallElement) Segment() geometry.Segment {
	return geometry.Segment{Start: w.Start, End: w.End}
}

// Length returns the wall length in millimeters.
func (w WallElement) Length() float64 { return geometry.Distance(w.Start, w.End) }

// DoorElement is an opening in a wall. PositionMM is the distance of the
// door's center from the wall's start point.
type DoorElement struct {
	WallIndex  int     `json:"wall_index"`
	PositionMM float64 `json:"position_mm"`
	WidthMM    float64 `json:"width_mm"`
	HeightMM   float64 `json:"height_mm"`
	Swing      string  `json:"swing,omitempty"`
}

// WindowElement is a glazed opening in a wall.
type WindowElement struct {
	WallIndex    int     `json:"wall_index"`
	PositionMM   float64 `json:"position_mm"`
	WidthMM      float64 `json:"width_mm"`
	HeightMM     float64 `json:"height_mm"`
	SillHeightMM float64 `json:"sill_height_mm"`
}

// AreaM2 returns the glazed area in square meters.
func (w WindowElement) AreaM2() float64 { return w.WidthMM * w.HeightMM / 1e6 }

// RoomBoundary names a room and the walls that enclose it.
type RoomBoundary struct {
	Name                string  `json:"name"`
	AreaM2              float64 `json:"area_m2"`
	BoundaryWallIndices []int   `json:"boundary_wall_indices"`
}

// Layout is one generated candidate floor plan. It is never mutated after
// creation.
type Layout struct {
	Walls           []WallElement   `json:"walls"`
	Doors           []DoorElement   `json:"doors"`
	Windows         []WindowElement `json:"windows"`
	Rooms           []RoomBoundary  `json:"rooms"`
	Confidence      float64         `json:"confidence"`
	ComplianceNotes []string        `json:"compliance_notes,omitempty"`
}

// Wall returns the wall at index i, or false when i is out of range.
func (l *Layout) Wall(i int) (WallElement, bool) {
	if l == nil || i < 0 || i >= len(l.Walls) {
		return WallElement{}, false
	}
	return l.Walls[i], true
}

// TotalFloorAreaM2 sums the declared room areas.
func (l *Layout) TotalFloorAreaM2() float64 {
	var sum float64
	for _, r := range l.Rooms {
		sum += r.AreaM2
	}
	return sum
}

// TotalWindowAreaM2 sums the glazed area of all windows.
func (l *Layout) TotalWindowAreaM2() float64 {
	var sum float64
	for _, w := range l.Windows {
		sum += w.AreaM2()
	}
	return sum
}

// RoomCorners returns the distinct endpoints of a room's valid boundary walls
// in first-seen order. Out-of-range indices are skipped.
func (l *Layout) RoomCorners(r RoomBoundary) []Point2D {
	var pts []Point2D
	seen := make(map[Point2D]bool)
	for _, idx := range r.BoundaryWallIndices {
		w, ok := l.Wall(idx)
		if !ok {
			continue
		}
		for _, p := range []Point2D{w.Start, w.End} {
			if !seen[p] {
				seen[p] = true
				pts = append(pts, p)
			}
		}
	}
	return pts
}

// Load reads a JSON layout file.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("layout.Load: %w", err)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("layout.Load %s: %w", path, err)
	}
	return l, nil
}

// Parse decodes a JSON layout. Confidence must lie in [0,1].
func Parse(data []byte) (*Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	if l.Confidence < 0 || l.Confidence > 1 {
		return nil, fmt.Errorf("decode layout: confidence %v out of range [0,1]", l.Confidence)
	}
	return &l, nil
}

// Hash returns a content hash of the layout's canonical JSON encoding.
func Hash(l *Layout) string {
	data, err := json.Marshal(l)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("sha256:%x", h)
}
