package internal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/dshills/floorplan/internal/codes"
	"github.com/dshills/floorplan/internal/generate"
	"github.com/dshills/floorplan/internal/layout"
	"github.com/dshills/floorplan/internal/llm"
	"github.com/dshills/floorplan/internal/router"
	"github.com/dshills/floorplan/internal/schema"
	"github.com/dshills/floorplan/internal/validate"
	"github.com/dshills/floorplan/internal/verdict"
)

func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Dir(filepath.Dir(filename))
}

func testdata(parts ...string) string {
	return filepath.Join(append([]string{projectRoot(), "testdata"}, parts...)...)
}

func newValidator(t *testing.T) *validate.Validator {
	t.Helper()
	reg, err := codes.LoadBuiltin()
	if err != nil {
		t.Fatalf("load codes: %v", err)
	}
	return validate.New(reg, log.New(io.Discard))
}

func findingCodes(r verdict.Result) map[string]verdict.Severity {
	out := make(map[string]verdict.Severity)
	for _, list := range [][]verdict.ValidationError{r.Errors, r.Warnings} {
		for _, f := range list {
			out[f.Code] = f.Severity
		}
	}
	return out
}

// TestGoldenGeneratedLayout runs a recorded model response through the whole
// pipeline: extraction, decoding, structural checks, validation and routing.
func TestGoldenGeneratedLayout(t *testing.T) {
	raw, err := os.ReadFile(testdata("golden", "two-room-response.txt"))
	if err != nil {
		t.Fatalf("read golden response: %v", err)
	}
	req, err := generate.LoadRequest(testdata("requests", "two-room.yaml"))
	if err != nil {
		t.Fatalf("load request: %v", err)
	}

	mock := &llm.MockProvider{Response: string(raw)}
	o := generate.New(mock, newValidator(t), log.New(io.Discard))
	out, err := o.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.IsFallback {
		t.Fatalf("recorded response should be accepted, fell back: %s", out.FallbackReason)
	}
	if errs := schema.Validate(out.Layout); len(errs) > 0 {
		t.Errorf("schema errors: %v", errs)
	}

	got := findingCodes(out.Result)
	want := map[string]verdict.Severity{
		validate.CodeDoorTooNarrow:     verdict.SeverityError,
		"MIN_DOOR_WIDTH":               verdict.SeverityError,
		validate.CodeDoorNotAccessible: verdict.SeverityWarning,
	}
	for code, sev := range want {
		if got[code] != sev {
			t.Errorf("finding %s: got severity %q, want %q", code, got[code], sev)
		}
	}
	if out.Result.Status != verdict.StatusRequiresReview {
		t.Errorf("status = %s, want %s", out.Result.Status, verdict.StatusRequiresReview)
	}

	// Errors are sorted most severe first.
	for i := 1; i < len(out.Result.Errors); i++ {
		if out.Result.Errors[i-1].Severity == verdict.SeverityError && out.Result.Errors[i].Severity == verdict.SeverityCritical {
			t.Errorf("errors not sorted by severity at %d", i)
		}
	}

	// The prompt carries the code table and no contact details.
	prompts := mock.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(prompts))
	}
	if got := prompts[0]; !strings.Contains(got, "MIN_DOOR_WIDTH") || strings.Contains(got, "jane.doe@example.com") {
		t.Error("prompt should include the code table and omit redacted notes")
	}

	// Two errors route the layout to a human with elevated priority.
	pool, err := router.NewPool([]router.Reviewer{{ID: "ana"}}, 1)
	if err != nil {
		t.Fatal(err)
	}
	r := router.New(pool, log.New(io.Discard))
	it, err := r.Submit(context.Background(), router.Submission{
		LayoutID:             out.ID,
		Result:               out.Result,
		GenerationConfidence: out.GenerationConfidence(),
		RoomCount:            len(out.Layout.Rooms),
		Budget:               req.Requirements.Budget,
	})
	if err != nil {
		t.Fatal(err)
	}
	if it.Status != router.StatusInReview || it.ReviewerID != "ana" {
		t.Errorf("item = %s/%s, want IN_REVIEW/ana", it.Status, it.ReviewerID)
	}
	if it.Priority != router.PriorityCritical && it.Priority != router.PriorityHigh {
		t.Errorf("priority = %s, want HIGH or CRITICAL", it.Priority)
	}
}

// TestGoldenLayoutFile checks the clean fixture layout and that validation is
// a pure function of its input.
func TestGoldenLayoutFile(t *testing.T) {
	l, err := layout.Load(testdata("layouts", "two-room.json"))
	if err != nil {
		t.Fatalf("load layout: %v", err)
	}
	v := newValidator(t)
	for _, sel := range []validate.Selector{
		{Region: "us", BuildingType: "residential"},
		{Region: "uk", BuildingType: "residential"},
		{Region: "de", BuildingType: "residential"},
	} {
		first := v.Validate(l, sel)
		if n := first.ErrorCount(); n != 0 {
			t.Errorf("%s: expected no errors, got %d: %+v", sel.Region, n, first.Errors)
		}
		if first.Status != verdict.StatusRequiresReview || !first.RequiresHumanReview {
			t.Errorf("%s: status = %s, requires review = %v", sel.Region, first.Status, first.RequiresHumanReview)
		}
		if diff := cmp.Diff(first, v.Validate(l, sel)); diff != "" {
			t.Errorf("%s: validation not idempotent (-first +second):\n%s", sel.Region, diff)
		}
	}
}

// TestGoldenFallbackHouse validates the fallback grid for a realistic program.
func TestGoldenFallbackHouse(t *testing.T) {
	req, err := generate.LoadRequest(testdata("requests", "family-house.yaml"))
	if err != nil {
		t.Fatalf("load request: %v", err)
	}
	if err := generate.ValidateRequest(req); err != nil {
		t.Fatalf("request should be valid: %v", err)
	}
	o := generate.New(nil, newValidator(t), log.New(io.Discard))
	out, err := o.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsFallback || out.GenerationConfidence() != generate.FallbackConfidence {
		t.Fatalf("expected fallback layout, got provider %s", out.Provider)
	}
	if c := out.Result.Counts(); c.Critical != 0 {
		t.Errorf("fallback layout has critical findings: %+v", out.Result.Errors)
	}
	if len(out.Layout.Rooms) != len(req.Program.Rooms) {
		t.Errorf("rooms = %d, want %d", len(out.Layout.Rooms), len(req.Program.Rooms))
	}
}
