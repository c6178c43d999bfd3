package schema

import (
	"math"
	"strings"
	"testing"

	"github.com/dshills/floorplan/internal/layout"
)

func validLayout() *layout.Layout {
	return &layout.Layout{
		Walls: []layout.WallElement{
			{Start: layout.Point2D{X: 0, Y: 0}, End: layout.Point2D{X: 4000, Y: 0}, Kind: layout.WallExterior, HeightMM: 2700, ThicknessMM: 200},
		},
		Doors:      []layout.DoorElement{{WallIndex: 0, PositionMM: 2000, WidthMM: 900, HeightMM: 2100}},
		Windows:    []layout.WindowElement{{WallIndex: 0, PositionMM: 800, WidthMM: 1000, HeightMM: 1200, SillHeightMM: 900}},
		Rooms:      []layout.RoomBoundary{{Name: "Studio", AreaM2: 20, BoundaryWallIndices: []int{0}}},
		Confidence: 0.7,
	}
}

func TestValidateValid(t *testing.T) {
	if errs := Validate(validLayout()); len(errs) > 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidateRuleViolationsPass(t *testing.T) {
	l := validLayout()
	l.Walls[0].End = l.Walls[0].Start
	l.Doors[0].WallIndex = 99
	if errs := Validate(l); len(errs) > 0 {
		t.Errorf("rule violations belong to the validator, got %v", errs)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*layout.Layout)
		path   string
	}{
		{"no walls", func(l *layout.Layout) { l.Walls = nil }, "walls"},
		{"no rooms", func(l *layout.Layout) { l.Rooms = nil }, "rooms"},
		{"confidence high", func(l *layout.Layout) { l.Confidence = 1.5 }, "confidence"},
		{"confidence negative", func(l *layout.Layout) { l.Confidence = -0.1 }, "confidence"},
		{"bad kind", func(l *layout.Layout) { l.Walls[0].Kind = "load-bearing" }, "walls[0].kind"},
		{"nan coordinate", func(l *layout.Layout) { l.Walls[0].Start.X = math.NaN() }, "walls[0].start.x"},
		{"zero height", func(l *layout.Layout) { l.Walls[0].HeightMM = 0 }, "walls[0].height_mm"},
		{"negative thickness", func(l *layout.Layout) { l.Walls[0].ThicknessMM = -1 }, "walls[0].thickness_mm"},
		{"zero door width", func(l *layout.Layout) { l.Doors[0].WidthMM = 0 }, "doors[0].width_mm"},
		{"inf door position", func(l *layout.Layout) { l.Doors[0].PositionMM = math.Inf(1) }, "doors[0].position_mm"},
		{"negative sill", func(l *layout.Layout) { l.Windows[0].SillHeightMM = -5 }, "windows[0].sill_height_mm"},
		{"missing room name", func(l *layout.Layout) { l.Rooms[0].Name = "" }, "rooms[0].name"},
		{"duplicate room", func(l *layout.Layout) {
			l.Rooms = append(l.Rooms, layout.RoomBoundary{Name: "Studio", AreaM2: 5})
		}, "rooms[1].name"},
		{"negative area", func(l *layout.Layout) { l.Rooms[0].AreaM2 = -3 }, "rooms[0].area_m2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validLayout()
			tt.mutate(l)
			errs := Validate(l)
			found := false
			for _, e := range errs {
				if e.Path == tt.path {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error at %s, got %v", tt.path, errs)
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	errs := Validate(nil)
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "null") {
		t.Errorf("unexpected errors for nil layout: %v", errs)
	}
}
