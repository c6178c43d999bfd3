// Package schema checks that an AI-generated layout payload is structurally
// usable before it is handed to the validator. Rule violations (short walls,
// bad indices, missing exits) are not checked here; they belong to the
// validator's findings.
package schema

import (
	"fmt"
	"math"

	"github.com/dshills/floorplan/internal/layout"
)

// ValidationError describes a single schema violation.
type ValidationError struct {
	Path    string
	Message string
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a decoded layout for structural validity.
func Validate(l *layout.Layout) []ValidationError {
	if l == nil {
		return []ValidationError{{"", "layout is null"}}
	}
	var errs []ValidationError

	if len(l.Walls) == 0 {
		errs = append(errs, ValidationError{"walls", "at least one wall is required"})
	}
	if len(l.Rooms) == 0 {
		errs = append(errs, ValidationError{"rooms", "at least one room is required"})
	}
	if math.IsNaN(l.Confidence) || l.Confidence < 0 || l.Confidence > 1 {
		errs = append(errs, ValidationError{"confidence", fmt.Sprintf("must be in [0,1], got %v", l.Confidence)})
	}

	for i, w := range l.Walls {
		p := fmt.Sprintf("walls[%d]", i)
		if !w.Kind.Valid() {
			errs = append(errs, ValidationError{p + ".kind", fmt.Sprintf("invalid kind: %q", w.Kind)})
		}
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"start.x", w.Start.X}, {"start.y", w.Start.Y},
			{"end.x", w.End.X}, {"end.y", w.End.Y},
		} {
			if !finite(f.v) {
				errs = append(errs, ValidationError{p + "." + f.name, "must be a finite number"})
			}
		}
		if !finite(w.HeightMM) || w.HeightMM <= 0 {
			errs = append(errs, ValidationError{p + ".height_mm", "must be positive"})
		}
		if !finite(w.ThicknessMM) || w.ThicknessMM < 0 {
			errs = append(errs, ValidationError{p + ".thickness_mm", "must not be negative"})
		}
	}

	for i, d := range l.Doors {
		p := fmt.Sprintf("doors[%d]", i)
		if !finite(d.PositionMM) {
			errs = append(errs, ValidationError{p + ".position_mm", "must be a finite number"})
		}
		if !finite(d.WidthMM) || d.WidthMM <= 0 {
			errs = append(errs, ValidationError{p + ".width_mm", "must be positive"})
		}
	}
	for i, w := range l.Windows {
		p := fmt.Sprintf("windows[%d]", i)
		if !finite(w.PositionMM) {
			errs = append(errs, ValidationError{p + ".position_mm", "must be a finite number"})
		}
		if !finite(w.WidthMM) || w.WidthMM <= 0 {
			errs = append(errs, ValidationError{p + ".width_mm", "must be positive"})
		}
		if !finite(w.HeightMM) || w.HeightMM <= 0 {
			errs = append(errs, ValidationError{p + ".height_mm", "must be positive"})
		}
		if !finite(w.SillHeightMM) || w.SillHeightMM < 0 {
			errs = append(errs, ValidationError{p + ".sill_height_mm", "must not be negative"})
		}
	}

	names := make(map[string]bool, len(l.Rooms))
	for i, r := range l.Rooms {
		p := fmt.Sprintf("rooms[%d]", i)
		if r.Name == "" {
			errs = append(errs, ValidationError{p + ".name", "required"})
		} else if names[r.Name] {
			errs = append(errs, ValidationError{p + ".name", fmt.Sprintf("duplicate room name %q", r.Name)})
		}
		names[r.Name] = true
		if !finite(r.AreaM2) || r.AreaM2 < 0 {
			errs = append(errs, ValidationError{p + ".area_m2", "must not be negative"})
		}
	}
	return errs
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
