// Package codes holds regional building-code rule tables and the comparator
// that checks design parameters against them.
//
// Tables are keyed by (region, building type). Built-in tables are embedded;
// additional tables can be loaded from YAML or TOML files and replace any
// built-in table with the same key. A pair with no table resolves to an
// empty table, so an unknown region skips code checks instead of failing.
package codes

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Requirement is one named numeric requirement. At least one of Min and Max
// is set.
type Requirement struct {
	Code          string   `yaml:"code" toml:"code"`
	Name          string   `yaml:"name" toml:"name"`
	Min           *float64 `yaml:"min,omitempty" toml:"min,omitempty"`
	Max           *float64 `yaml:"max,omitempty" toml:"max,omitempty"`
	Unit          string   `yaml:"unit" toml:"unit"`
	Mandatory     bool     `yaml:"mandatory" toml:"mandatory"`
	BuildingTypes []string `yaml:"building_types,omitempty" toml:"building_types,omitempty"`
}

// AppliesTo reports whether the requirement covers buildingType. An empty
// BuildingTypes list applies to every type.
func (r Requirement) AppliesTo(buildingType string) bool {
	if len(r.BuildingTypes) == 0 {
		return true
	}
	for _, bt := range r.BuildingTypes {
		if strings.EqualFold(bt, buildingType) {
			return true
		}
	}
	return false
}

// Table is the ordered requirement list for one (region, building type).
type Table struct {
	Region       string        `yaml:"-" toml:"-"`
	BuildingType string        `yaml:"building_type" toml:"building_type"`
	Requirements []Requirement `yaml:"requirements" toml:"requirements"`
}

// Key identifies a table. Both parts are lower-cased.
type Key struct {
	Region       string
	BuildingType string
}

func (k Key) String() string { return k.Region + "/" + k.BuildingType }

// NewKey normalizes a region/building-type pair.
func NewKey(region, buildingType string) Key {
	return Key{
		Region:       strings.ToLower(strings.TrimSpace(region)),
		BuildingType: strings.ToLower(strings.TrimSpace(buildingType)),
	}
}

// file is the on-disk layout of a rule-table document.
type file struct {
	Region string  `yaml:"region" toml:"region"`
	Tables []Table `yaml:"tables" toml:"tables"`
}

// Registry holds rule tables. It is built once at start-up and read
// concurrently by validators afterwards.
type Registry struct {
	mu     sync.RWMutex
	tables map[Key]Table
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[Key]Table)}
}

// LoadBuiltin returns a registry populated with the embedded tables.
func LoadBuiltin() (*Registry, error) {
	r := NewRegistry()
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil, fmt.Errorf("codes.LoadBuiltin: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := builtinFS.ReadFile("builtin/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("codes.LoadBuiltin: %w", err)
		}
		var f file
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("codes.LoadBuiltin: parse %q: %w", e.Name(), err)
		}
		r.registerFile(f)
	}
	return r, nil
}

// LoadFile reads a YAML (.yaml, .yml) or TOML (.toml) rule-table document and
// registers every table in it. It returns the keys that were registered.
func (r *Registry) LoadFile(path string) ([]Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("codes.LoadFile: %w", err)
	}
	var f file
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".toml":
		_, err = toml.Decode(string(data), &f)
	default:
		return nil, fmt.Errorf("codes.LoadFile: unsupported extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("codes.LoadFile: parse %s: %w", path, err)
	}
	if strings.TrimSpace(f.Region) == "" {
		return nil, fmt.Errorf("codes.LoadFile: %s: region is required", path)
	}
	return r.registerFile(f), nil
}

func (r *Registry) registerFile(f file) []Key {
	keys := make([]Key, 0, len(f.Tables))
	for _, t := range f.Tables {
		t.Region = f.Region
		keys = append(keys, r.Register(t))
	}
	return keys
}

// Register adds or replaces a table and returns its key.
func (r *Registry) Register(t Table) Key {
	k := NewKey(t.Region, t.BuildingType)
	t.Region, t.BuildingType = k.Region, k.BuildingType
	r.mu.Lock()
	r.tables[k] = t
	r.mu.Unlock()
	return k
}

// Lookup returns the table for a pair. Unknown pairs yield an empty table and
// false.
func (r *Registry) Lookup(region, buildingType string) (Table, bool) {
	k := NewKey(region, buildingType)
	if r == nil {
		return Table{Region: k.Region, BuildingType: k.BuildingType}, false
	}
	r.mu.RLock()
	t, ok := r.tables[k]
	r.mu.RUnlock()
	if !ok {
		return Table{Region: k.Region, BuildingType: k.BuildingType}, false
	}
	return t, true
}

// Keys returns every registered key in sorted order.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	keys := make([]Key, 0, len(r.tables))
	for k := range r.tables {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Region != keys[j].Region {
			return keys[i].Region < keys[j].Region
		}
		return keys[i].BuildingType < keys[j].BuildingType
	})
	return keys
}

// FormatForPrompt renders a table as text for inclusion in a generation prompt.
func FormatForPrompt(t Table) string {
	if len(t.Requirements) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Building code: %s / %s\n\n", t.Region, t.BuildingType)
	for _, req := range t.Requirements {
		if !req.AppliesTo(t.BuildingType) {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s):", req.Code, req.Name)
		if req.Min != nil {
			fmt.Fprintf(&b, " min %g %s", *req.Min, req.Unit)
		}
		if req.Max != nil {
			fmt.Fprintf(&b, " max %g %s", *req.Max, req.Unit)
		}
		if req.Mandatory {
			b.WriteString(" [mandatory]")
		}
		b.WriteString("\n")
	}
	return b.String()
}
