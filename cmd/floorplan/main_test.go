package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/floorplan/internal/apperr"
	"github.com/dshills/floorplan/internal/router"
	"github.com/dshills/floorplan/internal/verdict"
)

const studioLayout = `{
  "walls": [
    {"start": {"x": 0, "y": 0}, "end": {"x": 5000, "y": 0}, "kind": "exterior", "height_mm": 2700, "thickness_mm": 250},
    {"start": {"x": 5000, "y": 0}, "end": {"x": 5000, "y": 4000}, "kind": "exterior", "height_mm": 2700, "thickness_mm": 250},
    {"start": {"x": 5000, "y": 4000}, "end": {"x": 0, "y": 4000}, "kind": "exterior", "height_mm": 2700, "thickness_mm": 250},
    {"start": {"x": 0, "y": 4000}, "end": {"x": 0, "y": 0}, "kind": "exterior", "height_mm": 2700, "thickness_mm": 250}
  ],
  "doors": [{"wall_index": 3, "position_mm": 2000, "width_mm": 1000, "height_mm": 2100}],
  "windows": [{"wall_index": 1, "position_mm": 2000, "width_mm": 1500, "height_mm": 1400, "sill_height_mm": 900}],
  "rooms": [{"name": "Studio", "area_m2": 20, "boundary_wall_indices": [0, 1, 2, 3]}],
  "confidence": 0.92
}`

const brokenLayout = `{
  "walls": [
    {"start": {"x": 0, "y": 0}, "end": {"x": 0, "y": 0}, "kind": "exterior", "height_mm": 2700, "thickness_mm": 250}
  ],
  "rooms": [{"name": "Void", "area_m2": 10, "boundary_wall_indices": [0]}],
  "confidence": 0.5
}`

const request = `
program:
  rooms:
    - name: Living
      area_m2: 20
    - name: Kitchen
      area_m2: 10
    - name: Bedroom
      area_m2: 12
requirements:
  total_area_m2: 50
  floors: 1
  notes: call me on +1 555 123 4567
`

type env struct {
	dir    string
	config string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
db: %s
region: us
building_type: residential
model: mock
review:
  max_workload: 2
  reviewers:
    - id: ana
      name: Ana
    - id: ben
      name: Ben
`, filepath.Join(dir, "floorplan.db"))
	return env{dir: dir, config: writeFile(t, dir, "floorplan.yaml", cfg)}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e env) file(t *testing.T, name, content string) string {
	return writeFile(t, e.dir, name, content)
}

func (e env) run(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func exitCode(err error) int {
	var ee *exitErr
	if errors.As(err, &ee) {
		return ee.code
	}
	if err != nil {
		return 1
	}
	return 0
}

func TestValidateJSON(t *testing.T) {
	e := newEnv(t)
	out, err := e.run("validate", "--format", "json", e.file(t, "studio.json", studioLayout))
	require.NoError(t, err)

	var got []validateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "studio.json", got[0].File)
	assert.Equal(t, verdict.StatusRequiresReview, got[0].Result.Status)
	assert.Empty(t, got[0].Result.Errors)
	assert.Nil(t, got[0].Review)
}

func TestValidateBatchMarkdown(t *testing.T) {
	e := newEnv(t)
	out, err := e.run("validate",
		e.file(t, "studio.json", studioLayout),
		e.file(t, "broken.json", brokenLayout))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "# Floor Plan Validation"))
	assert.Contains(t, out, "ZERO_LENGTH_WALL")
}

func TestValidateFailOnReject(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("validate", "--fail-on-reject", e.file(t, "broken.json", brokenLayout))
	assert.Equal(t, exitRejected, exitCode(err))

	_, err = e.run("validate", "--fail-on-reject", e.file(t, "studio.json", studioLayout))
	assert.NoError(t, err)
}

func TestValidateInputErrors(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("validate", filepath.Join(e.dir, "missing.json"))
	assert.Equal(t, exitInput, exitCode(err))

	_, err = e.run("validate", "--format", "xml", e.file(t, "studio.json", studioLayout))
	assert.Equal(t, exitInput, exitCode(err))

	overconfident := strings.Replace(studioLayout, `"confidence": 0.92`, `"confidence": 1.5`, 1)
	_, err = e.run("validate", "--submit", e.file(t, "overconfident.json", overconfident))
	assert.Equal(t, exitInput, exitCode(err), "confidence above 1 must not reach the router")
	out, err := e.run("review", "list", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestValidateSubmit(t *testing.T) {
	e := newEnv(t)
	out, err := e.run("validate", "--submit", "--format", "json", e.file(t, "studio.json", studioLayout))
	require.NoError(t, err)

	var got []validateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotNil(t, got[0].Review)
	assert.Equal(t, router.StatusInReview, got[0].Review.Status)
	assert.Equal(t, "ana", got[0].Review.ReviewerID)
	assert.Equal(t, got[0].LayoutID, got[0].Review.LayoutID)
}

type generated struct {
	ID         string             `json:"id"`
	IsFallback bool               `json:"is_fallback"`
	Provider   string             `json:"provider"`
	Result     verdict.Result     `json:"result"`
	Review     *router.ReviewItem `json:"review"`
}

func generateFallback(t *testing.T, e env) generated {
	t.Helper()
	out, err := e.run("generate", "--format", "json", e.file(t, "request.yaml", request))
	require.NoError(t, err)
	var g generated
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	return g
}

func TestGenerateFallbackIsRouted(t *testing.T) {
	e := newEnv(t)
	g := generateFallback(t, e)
	assert.True(t, g.IsFallback)
	assert.Equal(t, "fallback", g.Provider)
	assert.NotEqual(t, verdict.StatusRejected, g.Result.Status)
	require.NotNil(t, g.Review)
	assert.Equal(t, router.StatusInReview, g.Review.Status)
	assert.True(t, g.Review.IsFallback)
	assert.Equal(t, "ana", g.Review.ReviewerID)
}

func TestGenerateLayoutOut(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(e.dir, "layout.json")
	out, err := e.run("generate", "--no-submit", "--layout-out", path, e.file(t, "request.yaml", request))
	require.NoError(t, err)
	assert.Contains(t, out, "deterministic fallback grid")
	assert.NotContains(t, out, "## Review")

	_, err = e.run("validate", path)
	assert.NoError(t, err)
}

func TestGenerateMissingBrief(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("generate", "--brief", filepath.Join(e.dir, "missing.md"), e.file(t, "request.yaml", request))
	assert.Equal(t, exitInput, exitCode(err))
}

func TestGenerateInvalidRequest(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("generate", e.file(t, "bad.yaml", "program:\n  rooms: []\nrequirements:\n  total_area_m2: 50\n  floors: 1\n"))
	assert.Equal(t, exitInput, exitCode(err))
}

func TestReviewWorkflow(t *testing.T) {
	e := newEnv(t)
	g := generateFallback(t, e)
	itemID := g.Review.ID

	_, err := e.run("review", "feedback", itemID, "--reviewer", "ben", "--rating", "4", "--approve")
	assert.Equal(t, exitInput, exitCode(err), "only the assigned reviewer may decide")

	out, err := e.run("review", "feedback", itemID, "--reviewer", "ana", "--rating", "3", "--comments", "bigger kitchen")
	require.NoError(t, err)
	assert.Contains(t, out, string(router.StatusRevisionNeeded))

	out, err = e.run("review", "resubmit", itemID, e.file(t, "studio.json", studioLayout))
	require.NoError(t, err)
	assert.Contains(t, out, itemID+" -> ")

	out, err = e.run("--json", "review", "list")
	require.NoError(t, err)
	var items []router.ReviewItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)
	byID := map[string]router.ReviewItem{}
	for _, it := range items {
		byID[it.ID] = it
	}
	assert.Equal(t, router.StatusCompleted, byID[itemID].Status)
	var childID string
	for id, it := range byID {
		if id != itemID {
			childID = id
			assert.Equal(t, itemID, it.ParentID)
			assert.Equal(t, router.StatusInReview, it.Status)
		}
	}

	out, err = e.run("review", "diff", childID)
	require.NoError(t, err)
	assert.Contains(t, out, "--- "+itemID)
	assert.Contains(t, out, "+++ "+childID)
	assert.Contains(t, out, `+  "confidence": 0.92`)

	diffPath := filepath.Join(e.dir, "revision.diff")
	_, err = e.run("review", "diff", childID, "--out", diffPath)
	require.NoError(t, err)
	assert.FileExists(t, diffPath)

	_, err = e.run("review", "diff", itemID)
	assert.Equal(t, exitInput, exitCode(err), "the first submission has nothing to diff against")

	out, err = e.run("review", "show", itemID)
	require.NoError(t, err)
	assert.Contains(t, out, "bigger kitchen")

	out, err = e.run("review", "workload")
	require.NoError(t, err)
	assert.Contains(t, out, "1/2")

	out, err = e.run("review", "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 0 review items")

	_, err = e.run("review", "show", "missing")
	assert.Equal(t, exitInput, exitCode(err))
}

func TestReviewListBadStatus(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("review", "list", "--status", "bogus")
	assert.Equal(t, exitInput, exitCode(err))
}

func TestCodesCommands(t *testing.T) {
	e := newEnv(t)
	out, err := e.run("codes", "list")
	require.NoError(t, err)
	for _, want := range []string{"us", "uk", "de", "residential"} {
		assert.Contains(t, out, want)
	}

	out, err = e.run("codes", "show", "us", "residential")
	require.NoError(t, err)
	assert.Contains(t, out, "MIN_ROOM_AREA")
	assert.Contains(t, out, "6.5")

	_, err = e.run("codes", "show", "atlantis")
	assert.Equal(t, exitInput, exitCode(err))
}

func TestBadConfig(t *testing.T) {
	e := newEnv(t)
	e.config = e.file(t, "bad.yaml", "timeout: 0s\n")
	_, err := e.run("codes", "list")
	assert.Equal(t, exitProvider, exitCode(err))
}

func TestExitFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.New(apperr.CodeInvalidRequest, "bad"), exitInput},
		{apperr.New(apperr.CodeNotFound, "gone"), exitInput},
		{apperr.New(apperr.CodeForbidden, "no"), exitInput},
		{apperr.New(apperr.CodeInvalidState, "later"), exitInput},
		{apperr.New(apperr.CodeProvider, "down"), exitProvider},
		{apperr.New(apperr.CodeConflict, "queue changed"), 1},
		{errors.New("plain"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(exitFor(tt.err)))
		})
	}
}
