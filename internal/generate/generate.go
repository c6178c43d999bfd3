// Package generate turns a room program into a validated layout. It asks the
// AI provider for a layout under a timeout and falls back to a deterministic
// grid when the provider fails, times out, is cancelled or returns an
// unusable payload. Every output goes through the validator.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dshills/floorplan/internal/brief"
	"github.com/dshills/floorplan/internal/layout"
	"github.com/dshills/floorplan/internal/llm"
	"github.com/dshills/floorplan/internal/prompt"
	"github.com/dshills/floorplan/internal/redact"
	"github.com/dshills/floorplan/internal/schema"
	"github.com/dshills/floorplan/internal/validate"
	"github.com/dshills/floorplan/internal/verdict"
)

// DefaultTimeout bounds the AI call when no timeout is configured.
const DefaultTimeout = 90 * time.Second

// Output is a generated layout with its validation result.
type Output struct {
	ID             string            `json:"id"`
	Request        Request           `json:"request"`
	Layout         *layout.Layout    `json:"layout"`
	Result         verdict.Result    `json:"result"`
	IsFallback     bool              `json:"is_fallback"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
	Provider       string            `json:"provider"`
	Selector       validate.Selector `json:"selector"`
	Duration       time.Duration     `json:"duration"`
	CreatedAt      time.Time         `json:"created_at"`
}

// GenerationConfidence is the confidence the layout was generated with,
// before validation adjusts it.
func (o *Output) GenerationConfidence() float64 {
	if o.Layout == nil {
		return 0
	}
	return o.Layout.Confidence
}

// Orchestrator runs one generation per call and holds no per-request state.
type Orchestrator struct {
	Provider  llm.Provider
	Settings  llm.Settings
	Timeout   time.Duration
	Validator *validate.Validator
	Briefs    []*brief.File
	Logger    *log.Logger
	Now       func() time.Time
	NewID     func() string
}

// New creates an orchestrator. A nil provider always uses the fallback.
func New(p llm.Provider, v *validate.Validator, logger *log.Logger) *Orchestrator {
	if v == nil {
		v = validate.New(nil, logger)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		Provider:  p,
		Timeout:   DefaultTimeout,
		Validator: v,
		Logger:    logger,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

// errUnusable marks a provider reply that could not be turned into a layout.
var errUnusable = errors.New("unusable layout payload")

// Generate validates req, produces a layout and validates it. Only request
// errors are returned; provider failures are absorbed by the fallback.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Output, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	start := o.now()
	sel := req.Selector()

	out := &Output{
		ID:        o.newID(),
		Request:   req,
		Selector:  sel,
		CreatedAt: start,
	}

	l, err := o.generateAI(ctx, req)
	if err != nil {
		reason := err.Error()
		o.logger().Warn("AI generation failed, using fallback", "id", out.ID, "err", err)
		l = Fallback(req, o.Validator.FireExitMinWidthMM)
		out.IsFallback = true
		out.FallbackReason = reason
		out.Provider = "fallback"
	} else {
		out.Provider = o.Provider.Name()
	}

	out.Layout = l
	out.Result = o.Validator.Validate(l, sel)
	out.Duration = o.now().Sub(start)

	o.logger().Info("generated layout",
		"id", out.ID,
		"rooms", len(l.Rooms),
		"fallback", out.IsFallback,
		"status", out.Result.Status,
		"confidence", out.Result.Confidence,
		"duration", out.Duration)
	return out, nil
}

func (o *Orchestrator) generateAI(ctx context.Context, req Request) (*layout.Layout, error) {
	if o.Provider == nil {
		return nil, errors.New("no AI provider configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := o.buildPrompt(req)
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	settings := o.Settings
	if settings.System == "" {
		settings.System = prompt.System
	}
	raw, err := o.Provider.Generate(callCtx, text, settings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.Provider.Name(), err)
	}
	return parseLayout(raw)
}

func parseLayout(raw string) (*layout.Layout, error) {
	l, err := layout.Parse([]byte(llm.ExtractJSON(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnusable, err)
	}
	if errs := schema.Validate(l); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return nil, fmt.Errorf("%w: %s", errUnusable, strings.Join(msgs, "; "))
	}
	return l, nil
}

func (o *Orchestrator) buildPrompt(req Request) string {
	rooms := make([]prompt.Room, 0, len(req.Program.Rooms))
	for _, r := range req.Program.Rooms {
		rooms = append(rooms, prompt.Room{Name: r.Name, AreaM2: r.AreaM2, Notes: redact.Redact(r.Notes)})
	}
	notes, n := redact.RedactCount(req.Requirements.Notes)
	if n > 0 {
		o.logger().Debug("redacted request notes", "matches", n)
	}
	briefs := make([]prompt.Brief, 0, len(o.Briefs))
	for _, f := range o.Briefs {
		text, n := brief.ForPrompt(f)
		if n > 0 {
			o.logger().Debug("redacted design brief", "brief", f.Name(), "matches", n)
		}
		briefs = append(briefs, prompt.Brief{Name: f.Name(), Text: text})
	}
	tbl, _ := o.Validator.Codes.Lookup(req.Requirements.Region, req.Requirements.BuildingType)
	return prompt.Build(prompt.BuildOpts{
		Rooms:        rooms,
		TotalAreaM2:  req.Requirements.TotalAreaM2,
		Floors:       req.Requirements.Floors,
		Region:       req.Requirements.Region,
		BuildingType: req.Requirements.BuildingType,
		Style:        req.Requirements.Style,
		Budget:       req.Requirements.Budget,
		Notes:        notes,
		CodeTable:    tbl,
		FireExitMM:   o.Validator.FireExitMinWidthMM,
		Briefs:       briefs,
	})
}

func (o *Orchestrator) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o *Orchestrator) newID() string {
	if o.NewID == nil {
		return uuid.NewString()
	}
	return o.NewID()
}
