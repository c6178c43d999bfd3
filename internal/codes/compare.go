package codes

import (
	"fmt"

	"github.com/dshills/floorplan/internal/verdict"
)

// Design parameter names produced by the validator's snapshot.
const (
	ParamRoomArea      = "room_area"
	ParamCeilingHeight = "ceiling_height"
	ParamDoorWidth     = "door_width"
	ParamWindowRatio   = "window_ratio"
	ParamCorridorWidth = "corridor_width"
	ParamTotalArea     = "total_area"
	ParamExitWidth     = "exit_width"
)

// parameterFor maps requirement codes to the design parameter they constrain.
var parameterFor = map[string]string{
	"MIN_ROOM_AREA":      ParamRoomArea,
	"MIN_CEILING_HEIGHT": ParamCeilingHeight,
	"MIN_DOOR_WIDTH":     ParamDoorWidth,
	"MIN_WINDOW_RATIO":   ParamWindowRatio,
	"MIN_CORRIDOR_WIDTH": ParamCorridorWidth,
	"MAX_TOTAL_AREA":     ParamTotalArea,
	"MIN_EXIT_WIDTH":     ParamExitWidth,
}

// ParameterFor returns the design parameter a requirement code constrains.
func ParameterFor(code string) (string, bool) {
	p, ok := parameterFor[code]
	return p, ok
}

// Violation is a requirement a parameter value failed.
type Violation struct {
	Requirement Requirement
	Parameter   string
	Value       float64
	Bound       float64
	BelowMin    bool
}

// Finding converts the violation into a validation finding. Mandatory
// requirements become errors; the rest become warnings.
func (v Violation) Finding() verdict.ValidationError {
	sev := verdict.SeverityWarning
	if v.Requirement.Mandatory {
		sev = verdict.SeverityError
	}
	rel, verb := "minimum", "below"
	if !v.BelowMin {
		rel, verb = "maximum", "above"
	}
	return verdict.ValidationError{
		Code:     v.Requirement.Code,
		Severity: sev,
		Message: fmt.Sprintf("%s %.3g %s is %s the %s %.3g %s (%s)",
			v.Parameter, v.Value, v.Requirement.Unit, verb, rel, v.Bound, v.Requirement.Unit, v.Requirement.Name),
		Location:   v.Parameter,
		Suggestion: fmt.Sprintf("Adjust the layout so %s meets the %s of %g %s", v.Parameter, rel, v.Bound, v.Requirement.Unit),
	}
}

// MalformedError reports a requirement that cannot be evaluated.
type MalformedError struct {
	Code   string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed requirement %s: %s", e.Code, e.Reason)
}

// Compare checks params against every applicable requirement in t.
// Requirements whose code has no parameter mapping, or whose parameter is
// absent, are skipped. A requirement with no bound or with min > max stops
// the comparison with a *MalformedError.
func Compare(t Table, params map[string]float64) ([]Violation, error) {
	var out []Violation
	for _, req := range t.Requirements {
		if req.Min == nil && req.Max == nil {
			return nil, &MalformedError{Code: req.Code, Reason: "no min or max bound"}
		}
		if req.Min != nil && req.Max != nil && *req.Min > *req.Max {
			return nil, &MalformedError{Code: req.Code, Reason: fmt.Sprintf("min %g exceeds max %g", *req.Min, *req.Max)}
		}
		if !req.AppliesTo(t.BuildingType) {
			continue
		}
		param, ok := parameterFor[req.Code]
		if !ok {
			continue
		}
		val, ok := params[param]
		if !ok {
			continue
		}
		switch {
		case req.Min != nil && val < *req.Min:
			out = append(out, Violation{Requirement: req, Parameter: param, Value: val, Bound: *req.Min, BelowMin: true})
		case req.Max != nil && val > *req.Max:
			out = append(out, Violation{Requirement: req, Parameter: param, Value: val, Bound: *req.Max})
		}
	}
	return out, nil
}
