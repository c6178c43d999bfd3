// Package validate runs the multi-layer rule engine over a layout.
//
// Five layers run in a fixed order: geometric, spatial, code, safety and
// accessibility. Each layer reads the same immutable layout and returns its
// own findings. A layer that fails internally (an error or a panic) is
// replaced by a single Critical VALIDATION_FAILED finding and the remaining
// layers still run.
package validate

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dshills/floorplan/internal/codes"
	"github.com/dshills/floorplan/internal/layout"
	"github.com/dshills/floorplan/internal/verdict"
)

// Layer is one validation rule category.
type Layer int

const (
	LayerGeometric Layer = iota
	LayerSpatial
	LayerCode
	LayerSafety
	LayerAccessibility
)

// Layers is the evaluation order.
var Layers = [...]Layer{LayerGeometric, LayerSpatial, LayerCode, LayerSafety, LayerAccessibility}

func (l Layer) String() string {
	switch l {
	case LayerGeometric:
		return "geometric"
	case LayerSpatial:
		return "spatial"
	case LayerCode:
		return "code"
	case LayerSafety:
		return "safety"
	case LayerAccessibility:
		return "accessibility"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

// Thresholds.
const (
	MinWallLengthMM           = 100.0
	MinWallHeightMM           = 2200.0
	OverlapToleranceMM        = 10.0
	MinDoorWidthMM            = 800.0
	MaxDoorWidthMM            = 1200.0
	WindowHeadClearanceMM     = 100.0
	MinRoomAreaM2             = 5.0
	MinCorridorWidthMM        = 1200.0
	MinNaturalLightRatio      = 1.0 / 8.0
	AccessibleDoorWidthMM     = 850.0
	DefaultFireExitMinWidthMM = 900.0
)

// Finding codes.
const (
	CodeZeroLengthWall        = "ZERO_LENGTH_WALL"
	CodeWallTooShort          = "WALL_TOO_SHORT"
	CodeWallTooLow            = "WALL_TOO_LOW"
	CodeWallsOverlap          = "WALLS_OVERLAP"
	CodeInvalidWallIndex      = "INVALID_WALL_INDEX"
	CodeDoorOutsideWall       = "DOOR_OUTSIDE_WALL"
	CodeWindowOutsideWall     = "WINDOW_OUTSIDE_WALL"
	CodeDoorTooNarrow         = "DOOR_TOO_NARROW"
	CodeDoorTooWide           = "DOOR_TOO_WIDE"
	CodeWindowTooTall         = "WINDOW_TOO_TALL"
	CodeRoomTooSmall          = "ROOM_TOO_SMALL"
	CodeRoomNoAccess          = "ROOM_NO_ACCESS"
	CodeCorridorTooNarrow     = "CORRIDOR_TOO_NARROW"
	CodeNoFireExit            = "NO_FIRE_EXIT"
	CodeInsufficientLight     = "INSUFFICIENT_NATURAL_LIGHT"
	CodeNoEgressPath          = "NO_EGRESS_PATH"
	CodeDoorNotAccessible     = "DOOR_NOT_ACCESSIBLE"
	CodeCorridorNotAccessible = "CORRIDOR_NOT_ACCESSIBLE"
	CodeValidationFailed      = "VALIDATION_FAILED"
)

// Selector picks the code rule table for a validation pass.
type Selector struct {
	Region       string `json:"region"`
	BuildingType string `json:"building_type"`
}

// Validator is stateless apart from its read-only configuration and is safe
// for concurrent use.
type Validator struct {
	Codes              *codes.Registry
	FireExitMinWidthMM float64
	Logger             *log.Logger

	// beforeLayer, when set, runs at the start of every layer.
	beforeLayer func(Layer)
}

// New creates a validator. A nil registry means no code tables; a nil logger
// uses log.Default().
func New(reg *codes.Registry, logger *log.Logger) *Validator {
	if reg == nil {
		reg = codes.NewRegistry()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Validator{
		Codes:              reg,
		FireExitMinWidthMM: DefaultFireExitMinWidthMM,
		Logger:             logger,
	}
}

// Validate runs every layer over l and folds the findings into a result.
// It never mutates l and returns identical results for identical input.
func (v *Validator) Validate(l *layout.Layout, sel Selector) verdict.Result {
	if l == nil {
		l = &layout.Layout{}
	}
	start := time.Now()
	c := newCheckContext(l)

	var findings []verdict.ValidationError
	for _, layer := range Layers {
		findings = append(findings, v.runLayer(layer, c, sel)...)
	}
	res := verdict.Build(findings, l.Confidence)

	v.logger().Debug("validated layout",
		"status", res.Status,
		"errors", len(res.Errors),
		"warnings", len(res.Warnings),
		"duration", time.Since(start))
	return res
}

func (v *Validator) logger() *log.Logger {
	if v.Logger == nil {
		return log.Default()
	}
	return v.Logger
}

// runLayer evaluates one layer, converting any failure into a single
// Critical finding for that layer.
func (v *Validator) runLayer(layer Layer, c *checkContext, sel Selector) (out []verdict.ValidationError) {
	defer func() {
		if r := recover(); r != nil {
			v.logger().Error("validation layer panicked", "layer", layer, "panic", r)
			out = []verdict.ValidationError{layerFailed(layer, fmt.Sprint(r))}
		}
	}()
	if v.beforeLayer != nil {
		v.beforeLayer(layer)
	}
	findings, err := v.evaluate(layer, c, sel)
	if err != nil {
		v.logger().Error("validation layer failed", "layer", layer, "err", err)
		return []verdict.ValidationError{layerFailed(layer, err.Error())}
	}
	return findings
}

func (v *Validator) evaluate(layer Layer, c *checkContext, sel Selector) ([]verdict.ValidationError, error) {
	switch layer {
	case LayerGeometric:
		return checkGeometric(c), nil
	case LayerSpatial:
		return checkSpatial(c), nil
	case LayerCode:
		return v.checkCode(c, sel)
	case LayerSafety:
		return v.checkSafety(c), nil
	case LayerAccessibility:
		return checkAccessibility(c), nil
	default:
		return nil, fmt.Errorf("unknown layer %d", int(layer))
	}
}

func layerFailed(layer Layer, reason string) verdict.ValidationError {
	return verdict.ValidationError{
		Code:       CodeValidationFailed,
		Message:    fmt.Sprintf("%s validation layer failed: %s", layer, reason),
		Severity:   verdict.SeverityCritical,
		Location:   layer.String(),
		Suggestion: "Fix the rule configuration or the layout data and validate again",
	}
}
