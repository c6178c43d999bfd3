// Package brief loads design-brief files, such as site constraints or client
// notes, that accompany a generation request.
package brief

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/floorplan/internal/redact"
)

// MaxBytes bounds the size of a single brief.
const MaxBytes = 64 << 10

// File holds a loaded brief with its content and metadata.
type File struct {
	Path  string
	Raw   string
	Lines []string
	Hash  string
}

// Name returns the brief's base file name.
func (f *File) Name() string { return filepath.Base(f.Path) }

// Load reads a brief and computes its SHA-256 hash.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("brief.Load: %w", err)
	}
	if len(data) > MaxBytes {
		return nil, fmt.Errorf("brief.Load: %s is %d bytes, limit is %d", path, len(data), MaxBytes)
	}
	raw := string(data)
	h := sha256.Sum256(data)
	return &File{
		Path:  path,
		Raw:   raw,
		Lines: strings.Split(strings.TrimSuffix(raw, "\n"), "\n"),
		Hash:  fmt.Sprintf("sha256:%x", h),
	}, nil
}

// LoadAll loads every path in order, stopping at the first failure.
func LoadAll(paths []string) ([]*File, error) {
	files := make([]*File, 0, len(paths))
	for _, p := range paths {
		f, err := Load(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// ForPrompt returns the brief with contact details redacted and each line
// prefixed by an L-padded number. The count is the number of redactions.
func ForPrompt(f *File) (string, int) {
	width := lineNumberWidth(len(f.Lines))
	format := fmt.Sprintf("L%%0%dd: %%s\n", width)
	var (
		b     strings.Builder
		total int
	)
	for i, line := range f.Lines {
		clean, n := redact.RedactCount(line)
		total += n
		fmt.Fprintf(&b, format, i+1, clean)
	}
	return b.String(), total
}

func lineNumberWidth(totalLines int) int {
	switch {
	case totalLines >= 1000:
		return 4
	default:
		return 3
	}
}
