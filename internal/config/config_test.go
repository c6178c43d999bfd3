package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/floorplan/internal/router"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "floorplan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	c, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, ".floorplan/floorplan.db", c.DB)
	assert.Equal(t, 90*time.Second, c.Timeout)
	assert.Equal(t, 900.0, c.FireExitMinWidthMM)
	assert.Equal(t, router.DefaultMaxWorkload, c.Review.MaxWorkload)
	assert.Equal(t, 720*time.Hour, c.Review.Retention)
	assert.Empty(t, c.Review.Reviewers)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
model: claude-sonnet-4-5
timeout: 30s
region: uk
building_type: commercial
review:
  max_workload: 3
  retention: 48h
  reviewers:
    - id: ana
      name: Ana Ortiz
    - id: ben
      name: Ben Ito
codes:
  overlays: [extra.toml]
`)
	c, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", c.Model)
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, "uk", c.Region)
	assert.Equal(t, 3, c.Review.MaxWorkload)
	assert.Equal(t, 48*time.Hour, c.Review.Retention)
	assert.Equal(t, []router.Reviewer{{ID: "ana", Name: "Ana Ortiz"}, {ID: "ben", Name: "Ben Ito"}}, c.Review.Reviewers)
	assert.Equal(t, []string{"extra.toml"}, c.Codes.Overlays)
	assert.Equal(t, "claude-sonnet-4-5", c.LLMSettings().Model)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "region: uk\nreview:\n  max_workload: 3\n")
	t.Setenv("FLOORPLAN_REGION", "de")
	t.Setenv("FLOORPLAN_REVIEW_MAX_WORKLOAD", "7")
	c, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "de", c.Region)
	assert.Equal(t, 7, c.Review.MaxWorkload)
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"zero timeout", "timeout: 0s\n", "timeout must be positive"},
		{"bad workload", "review:\n  max_workload: 0\n", "max_workload must be at least 1"},
		{"bad temperature", "temperature: 3\n", "temperature 3"},
		{"missing reviewer id", "review:\n  reviewers:\n    - name: Nobody\n", "id is required"},
		{"duplicate reviewer", "review:\n  reviewers:\n    - id: a\n    - id: a\n", `duplicate id "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(New(), writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}
