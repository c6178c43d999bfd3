package validate

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/dshills/floorplan/internal/codes"
	"github.com/dshills/floorplan/internal/geometry"
	"github.com/dshills/floorplan/internal/layout"
	"github.com/dshills/floorplan/internal/verdict"
)

// positionEpsilon absorbs float noise when checking that an opening lies on
// its wall.
const positionEpsilon = 1e-6

// checkContext holds values derived once from the layout and shared by all
// layers. It is read-only after construction.
type checkContext struct {
	l           *layout.Layout
	wallLen     []float64
	doorsByWall map[int][]int
	corridors   []corridor
}

type corridor struct {
	room    int
	widthMM float64
}

func newCheckContext(l *layout.Layout) *checkContext {
	c := &checkContext{
		l:           l,
		wallLen:     make([]float64, len(l.Walls)),
		doorsByWall: make(map[int][]int),
	}
	for i, w := range l.Walls {
		c.wallLen[i] = w.Length()
	}
	for i, d := range l.Doors {
		if _, ok := l.Wall(d.WallIndex); ok {
			c.doorsByWall[d.WallIndex] = append(c.doorsByWall[d.WallIndex], i)
		}
	}
	for i, r := range l.Rooms {
		if !IsCorridor(r.Name) {
			continue
		}
		corners := l.RoomCorners(r)
		if len(corners) < 3 {
			continue
		}
		box := geometry.BoundingBox(corners)
		c.corridors = append(c.corridors, corridor{room: i, widthMM: math.Min(box.Width(), box.Height())})
	}
	return c
}

func (c *checkContext) roomHasDoor(r layout.RoomBoundary) bool {
	for _, idx := range r.BoundaryWallIndices {
		if len(c.doorsByWall[idx]) > 0 {
			return true
		}
	}
	return false
}

// corridorWords are name tokens that mark a circulation space.
var corridorWords = map[string]bool{
	"corridor":    true,
	"corridors":   true,
	"hallway":     true,
	"hall":        true,
	"passage":     true,
	"passageway":  true,
	"circulation": true,
	"gallery":     true,
}

// IsCorridor reports whether a room name denotes a circulation space.
func IsCorridor(name string) bool {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if corridorWords[w] {
			return true
		}
	}
	return false
}

func wallLoc(i int) string { return fmt.Sprintf("walls[%d]", i) }
func doorLoc(i int) string { return fmt.Sprintf("doors[%d]", i) }
func windowLoc(i int) string { return fmt.Sprintf("windows[%d]", i) }

func roomLoc(i int, r layout.RoomBoundary) string {
	return fmt.Sprintf("rooms[%d] %q", i, r.Name)
}

func finding(code string, sev verdict.Severity, loc, suggestion, format string, args ...any) verdict.ValidationError {
	return verdict.ValidationError{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		Severity:   sev,
		Location:   loc,
		Suggestion: suggestion,
	}
}

func checkGeometric(c *checkContext) []verdict.ValidationError {
	var out []verdict.ValidationError
	walls := c.l.Walls

	for i, w := range walls {
		switch length := c.wallLen[i]; {
		case length == 0:
			out = append(out, finding(CodeZeroLengthWall, verdict.SeverityCritical, wallLoc(i),
				"Remove the wall or give it distinct end points",
				"wall %d starts and ends at (%g, %g)", i, w.Start.X, w.Start.Y))
		case length < MinWallLengthMM:
			out = append(out, finding(CodeWallTooShort, verdict.SeverityError, wallLoc(i),
				"Merge the wall into a neighbour or lengthen it",
				"wall %d is %.0f mm long, minimum is %.0f mm", i, length, MinWallLengthMM))
		}
		if w.HeightMM < MinWallHeightMM {
			out = append(out, finding(CodeWallTooLow, verdict.SeverityError, wallLoc(i),
				fmt.Sprintf("Raise the wall to at least %.0f mm", MinWallHeightMM),
				"wall %d is %.0f mm high, minimum is %.0f mm", i, w.HeightMM, MinWallHeightMM))
		}
	}

	for i := 0; i < len(walls); i++ {
		if c.wallLen[i] == 0 {
			continue
		}
		for j := i + 1; j < len(walls); j++ {
			if c.wallLen[j] == 0 {
				continue
			}
			if wallsConflict(walls[i].Segment(), walls[j].Segment()) {
				out = append(out, finding(CodeWallsOverlap, verdict.SeverityError, wallLoc(i)+","+wallLoc(j),
					"Remove the duplicate wall or move one of them",
					"walls %d and %d overlap", i, j))
			}
		}
	}

	for i, d := range c.l.Doors {
		w, ok := c.l.Wall(d.WallIndex)
		if !ok {
			out = append(out, invalidIndex("door", doorLoc(i), d.WallIndex, len(walls)))
			continue
		}
		if !onWall(d.PositionMM, d.WidthMM, w.Length()) {
			out = append(out, finding(CodeDoorOutsideWall, verdict.SeverityError, doorLoc(i),
				"Move the door so it lies fully within its wall",
				"door %d spans %.0f..%.0f mm on a %.0f mm wall", i,
				d.PositionMM-d.WidthMM/2, d.PositionMM+d.WidthMM/2, w.Length()))
		}
		switch {
		case d.WidthMM < MinDoorWidthMM:
			out = append(out, finding(CodeDoorTooNarrow, verdict.SeverityError, doorLoc(i),
				fmt.Sprintf("Widen the door to at least %.0f mm", MinDoorWidthMM),
				"door %d is %.0f mm wide, minimum is %.0f mm", i, d.WidthMM, MinDoorWidthMM))
		case d.WidthMM > MaxDoorWidthMM:
			out = append(out, finding(CodeDoorTooWide, verdict.SeverityWarning, doorLoc(i),
				"Use a double door or narrow the opening",
				"door %d is %.0f mm wide, maximum is %.0f mm", i, d.WidthMM, MaxDoorWidthMM))
		}
	}

	for i, win := range c.l.Windows {
		w, ok := c.l.Wall(win.WallIndex)
		if !ok {
			out = append(out, invalidIndex("window", windowLoc(i), win.WallIndex, len(walls)))
			continue
		}
		if !onWall(win.PositionMM, win.WidthMM, w.Length()) {
			out = append(out, finding(CodeWindowOutsideWall, verdict.SeverityError, windowLoc(i),
				"Move the window so it lies fully within its wall",
				"window %d spans %.0f..%.0f mm on a %.0f mm wall", i,
				win.PositionMM-win.WidthMM/2, win.PositionMM+win.WidthMM/2, w.Length()))
		}
		if limit := w.HeightMM - WindowHeadClearanceMM; win.SillHeightMM+win.HeightMM > limit {
			out = append(out, finding(CodeWindowTooTall, verdict.SeverityWarning, windowLoc(i),
				"Lower the sill or reduce the window height",
				"window %d head is at %.0f mm, wall allows %.0f mm", i, win.SillHeightMM+win.HeightMM, limit))
		}
	}
	return out
}

func invalidIndex(kind, loc string, idx, n int) verdict.ValidationError {
	return finding(CodeInvalidWallIndex, verdict.SeverityCritical, loc,
		"Reference an existing wall",
		"%s references wall %d but the layout has %d walls", kind, idx, n)
}

// onWall reports whether an opening centered at pos with the given width
// lies within [0, length].
func onWall(pos, width, length float64) bool {
	return pos-width/2 >= -positionEpsilon && pos+width/2 <= length+positionEpsilon
}

// wallsConflict reports overlapping walls. Non-parallel walls that meet at an
// end point (corners and T-junctions) are joints, not overlaps.
func wallsConflict(a, b geometry.Segment) bool {
	if !geometry.Parallel(a, b) && touchesAtEndpoint(a, b) {
		return false
	}
	return geometry.SegmentsOverlap(a, b, OverlapToleranceMM)
}

func touchesAtEndpoint(a, b geometry.Segment) bool {
	for _, p := range []geometry.Point{a.Start, a.End} {
		if geometry.PointSegmentDistance(p, b) <= OverlapToleranceMM {
			return true
		}
	}
	for _, p := range []geometry.Point{b.Start, b.End} {
		if geometry.PointSegmentDistance(p, a) <= OverlapToleranceMM {
			return true
		}
	}
	return false
}

func checkSpatial(c *checkContext) []verdict.ValidationError {
	var out []verdict.ValidationError
	for i, r := range c.l.Rooms {
		loc := roomLoc(i, r)
		if r.AreaM2 < MinRoomAreaM2 {
			out = append(out, finding(CodeRoomTooSmall, verdict.SeverityError, loc,
				fmt.Sprintf("Enlarge the room to at least %g m2", MinRoomAreaM2),
				"room %q is %.2f m2, minimum is %g m2", r.Name, r.AreaM2, MinRoomAreaM2))
		}
		for _, idx := range r.BoundaryWallIndices {
			if _, ok := c.l.Wall(idx); !ok {
				out = append(out, invalidIndex("room "+r.Name, loc, idx, len(c.l.Walls)))
			}
		}
		if !c.roomHasDoor(r) {
			out = append(out, finding(CodeRoomNoAccess, verdict.SeverityCritical, loc,
				"Add a door on one of the room's walls",
				"room %q has no door on any boundary wall", r.Name))
		}
	}
	for _, cor := range c.corridors {
		r := c.l.Rooms[cor.room]
		if cor.widthMM < MinCorridorWidthMM {
			out = append(out, finding(CodeCorridorTooNarrow, verdict.SeverityError, roomLoc(cor.room, r),
				fmt.Sprintf("Widen the corridor to at least %.0f mm", MinCorridorWidthMM),
				"corridor %q is %.0f mm wide, minimum is %.0f mm", r.Name, cor.widthMM, MinCorridorWidthMM))
		}
	}
	return out
}

// parameters derives the design-parameter snapshot compared against code
// tables. MIN_* parameters take the smallest value in the layout.
func (c *checkContext) parameters() map[string]float64 {
	p := make(map[string]float64)
	setMin := func(k string, v float64) {
		if cur, ok := p[k]; !ok || v < cur {
			p[k] = v
		}
	}
	for _, r := range c.l.Rooms {
		setMin(codes.ParamRoomArea, r.AreaM2)
	}
	for _, w := range c.l.Walls {
		setMin(codes.ParamCeilingHeight, w.HeightMM)
	}
	for _, d := range c.l.Doors {
		w, ok := c.l.Wall(d.WallIndex)
		if !ok {
			continue
		}
		setMin(codes.ParamDoorWidth, d.WidthMM)
		if w.Kind == layout.WallExterior {
			setMin(codes.ParamExitWidth, d.WidthMM)
		}
	}
	for _, cor := range c.corridors {
		setMin(codes.ParamCorridorWidth, cor.widthMM)
	}
	if floor := c.l.TotalFloorAreaM2(); floor > 0 {
		p[codes.ParamTotalArea] = floor
		p[codes.ParamWindowRatio] = c.l.TotalWindowAreaM2() / floor
	}
	return p
}

func (v *Validator) checkCode(c *checkContext, sel Selector) ([]verdict.ValidationError, error) {
	tbl, ok := v.Codes.Lookup(sel.Region, sel.BuildingType)
	if !ok {
		v.logger().Debug("no code table, skipping code checks", "region", sel.Region, "building_type", sel.BuildingType)
		return nil, nil
	}
	violations, err := codes.Compare(tbl, c.parameters())
	if err != nil {
		return nil, err
	}
	out := make([]verdict.ValidationError, 0, len(violations))
	for _, vi := range violations {
		out = append(out, vi.Finding())
	}
	return out, nil
}

func (v *Validator) fireExitMin() float64 {
	if v.FireExitMinWidthMM <= 0 {
		return DefaultFireExitMinWidthMM
	}
	return v.FireExitMinWidthMM
}

func (v *Validator) checkSafety(c *checkContext) []verdict.ValidationError {
	var out []verdict.ValidationError
	minExit := v.fireExitMin()

	hasExteriorDoor, hasExit := false, false
	for _, d := range c.l.Doors {
		w, ok := c.l.Wall(d.WallIndex)
		if !ok || w.Kind != layout.WallExterior {
			continue
		}
		hasExteriorDoor = true
		if d.WidthMM >= minExit {
			hasExit = true
		}
	}
	if !hasExit {
		out = append(out, finding(CodeNoFireExit, verdict.SeverityCritical, "layout",
			fmt.Sprintf("Add an exterior door at least %.0f mm wide", minExit),
			"no exterior door is at least %.0f mm wide", minExit))
	}

	if floor := c.l.TotalFloorAreaM2(); floor > 0 {
		ratio := c.l.TotalWindowAreaM2() / floor
		if ratio < MinNaturalLightRatio {
			out = append(out, finding(CodeInsufficientLight, verdict.SeverityWarning, "layout",
				"Add or enlarge windows",
				"window to floor area ratio is %.3f, minimum is %.3f", ratio, MinNaturalLightRatio))
		}
	}

	if hasExteriorDoor {
		for _, i := range unreachableRooms(c) {
			r := c.l.Rooms[i]
			out = append(out, finding(CodeNoEgressPath, verdict.SeverityWarning, roomLoc(i, r),
				"Connect the room to an exterior door through doors in shared walls",
				"room %q has no door path to the outside", r.Name))
		}
	}
	return out
}

func checkAccessibility(c *checkContext) []verdict.ValidationError {
	var out []verdict.ValidationError
	for i, d := range c.l.Doors {
		if _, ok := c.l.Wall(d.WallIndex); !ok {
			continue
		}
		if d.WidthMM < AccessibleDoorWidthMM {
			out = append(out, finding(CodeDoorNotAccessible, verdict.SeverityWarning, doorLoc(i),
				fmt.Sprintf("Widen the door to %.0f mm for wheelchair access", AccessibleDoorWidthMM),
				"door %d is %.0f mm wide, accessible minimum is %.0f mm", i, d.WidthMM, AccessibleDoorWidthMM))
		}
	}
	for _, cor := range c.corridors {
		if cor.widthMM < MinCorridorWidthMM {
			r := c.l.Rooms[cor.room]
			out = append(out, finding(CodeCorridorNotAccessible, verdict.SeverityWarning, roomLoc(cor.room, r),
				"Widen the corridor for wheelchair turning space",
				"corridor %q is %.0f mm wide, accessible minimum is %.0f mm", r.Name, cor.widthMM, MinCorridorWidthMM))
		}
	}
	return out
}
