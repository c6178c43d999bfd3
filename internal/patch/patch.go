// Package patch renders unified diffs between layout revisions.
package patch

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/dshills/floorplan/internal/layout"
)

// DefaultContext is the number of unchanged lines kept around each hunk.
const DefaultContext = 3

// Unified diffs the indented JSON encodings of two layouts. Identical layouts
// produce an empty string.
func Unified(fromName string, from *layout.Layout, toName string, to *layout.Layout) (string, error) {
	a, err := encode(from)
	if err != nil {
		return "", fmt.Errorf("patch.Unified: %s: %w", fromName, err)
	}
	b, err := encode(to)
	if err != nil {
		return "", fmt.Errorf("patch.Unified: %s: %w", toName, err)
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fromName,
		ToFile:   toName,
		Context:  DefaultContext,
	})
}

func encode(l *layout.Layout) (string, error) {
	if l == nil {
		return "", nil
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// WriteFile writes a diff to path. An empty diff creates no file.
func WriteFile(diff, path string) error {
	if diff == "" {
		return nil
	}
	if !strings.HasSuffix(diff, "\n") {
		diff += "\n"
	}
	if err := os.WriteFile(path, []byte(diff), 0644); err != nil {
		return fmt.Errorf("patch.WriteFile: %w", err)
	}
	return nil
}
