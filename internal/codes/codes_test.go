package codes

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/floorplan/internal/verdict"
)

func f(v float64) *float64 { return &v }

func TestLoadBuiltin(t *testing.T) {
	r, err := LoadBuiltin()
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []Key{{"us", "residential"}, {"us", "commercial"}, {"uk", "residential"}, {"de", "residential"}} {
		t.Run(k.String(), func(t *testing.T) {
			tbl, ok := r.Lookup(k.Region, k.BuildingType)
			if !ok {
				t.Fatalf("missing table %s", k)
			}
			if len(tbl.Requirements) == 0 {
				t.Fatal("table has no requirements")
			}
			if _, err := Compare(tbl, nil); err != nil {
				t.Errorf("builtin table is malformed: %v", err)
			}
		})
	}
}

func TestLookupNormalizesAndDefaults(t *testing.T) {
	r, err := LoadBuiltin()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Lookup(" US ", "Residential"); !ok {
		t.Error("lookup should be case-insensitive")
	}
	tbl, ok := r.Lookup("atlantis", "residential")
	if ok || len(tbl.Requirements) != 0 {
		t.Errorf("unknown region should resolve to an empty table, got %+v", tbl)
	}
	var nilReg *Registry
	if _, ok := nilReg.Lookup("us", "residential"); ok {
		t.Error("nil registry should return an empty table")
	}
}

func TestCompare(t *testing.T) {
	tbl := Table{
		Region:       "test",
		BuildingType: "residential",
		Requirements: []Requirement{
			{Code: "MIN_ROOM_AREA", Name: "room", Min: f(7), Unit: "m2", Mandatory: true},
			{Code: "MAX_TOTAL_AREA", Name: "total", Max: f(100), Unit: "m2"},
			{Code: "MIN_DOOR_WIDTH", Name: "door", Min: f(800), Unit: "mm", Mandatory: true, BuildingTypes: []string{"commercial"}},
			{Code: "UNMAPPED_RULE", Name: "other", Min: f(1), Unit: "x", Mandatory: true},
		},
	}
	tests := []struct {
		name   string
		params map[string]float64
		codes  []string
	}{
		{"all pass", map[string]float64{ParamRoomArea: 9, ParamTotalArea: 80}, nil},
		{"below min", map[string]float64{ParamRoomArea: 5}, []string{"MIN_ROOM_AREA"}},
		{"above max", map[string]float64{ParamTotalArea: 150}, []string{"MAX_TOTAL_AREA"}},
		{"boundary values pass", map[string]float64{ParamRoomArea: 7, ParamTotalArea: 100}, nil},
		{"non-applicable building type", map[string]float64{ParamDoorWidth: 100}, nil},
		{"missing params skipped", map[string]float64{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tbl, tt.params)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.codes) {
				t.Fatalf("got %d violations, want %d: %+v", len(got), len(tt.codes), got)
			}
			for i, v := range got {
				if v.Requirement.Code != tt.codes[i] {
					t.Errorf("violation %d = %s, want %s", i, v.Requirement.Code, tt.codes[i])
				}
			}
		})
	}
}

func TestViolationFindingSeverity(t *testing.T) {
	mandatory := Violation{Requirement: Requirement{Code: "MIN_ROOM_AREA", Mandatory: true, Unit: "m2"}, Parameter: ParamRoomArea, Value: 4, Bound: 7, BelowMin: true}
	if got := mandatory.Finding(); got.Severity != verdict.SeverityError || got.Code != "MIN_ROOM_AREA" {
		t.Errorf("mandatory finding = %+v", got)
	}
	optional := Violation{Requirement: Requirement{Code: "MAX_TOTAL_AREA", Unit: "m2"}, Parameter: ParamTotalArea, Value: 200, Bound: 100}
	got := optional.Finding()
	if got.Severity != verdict.SeverityWarning {
		t.Errorf("optional finding severity = %s", got.Severity)
	}
	if !strings.Contains(got.Message, "above the maximum") {
		t.Errorf("message = %q", got.Message)
	}
}

func TestCompareMalformed(t *testing.T) {
	tests := []struct {
		name string
		req  Requirement
	}{
		{"no bound", Requirement{Code: "MIN_ROOM_AREA"}},
		{"inverted bounds", Requirement{Code: "MIN_ROOM_AREA", Min: f(10), Max: f(5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compare(Table{Requirements: []Requirement{tt.req}}, map[string]float64{ParamRoomArea: 1})
			var me *MalformedError
			if !errors.As(err, &me) {
				t.Fatalf("expected MalformedError, got %v", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "fr.yaml")
	os.WriteFile(yamlPath, []byte(`region: FR
tables:
  - building_type: residential
    requirements:
      - code: MIN_ROOM_AREA
        name: Piece principale
        min: 9
        unit: m2
        mandatory: true
`), 0644)
	tomlPath := filepath.Join(dir, "us.toml")
	os.WriteFile(tomlPath, []byte(`region = "us"

[[tables]]
building_type = "residential"

[[tables.requirements]]
code = "MIN_ROOM_AREA"
name = "Local amendment"
min = 10.0
unit = "m2"
mandatory = true
`), 0644)

	r, err := LoadBuiltin()
	if err != nil {
		t.Fatal(err)
	}
	keys, err := r.LoadFile(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != (Key{"fr", "residential"}) {
		t.Errorf("keys = %v", keys)
	}
	if _, err := r.LoadFile(tomlPath); err != nil {
		t.Fatal(err)
	}
	tbl, _ := r.Lookup("us", "residential")
	if len(tbl.Requirements) != 1 || *tbl.Requirements[0].Min != 10 {
		t.Errorf("toml overlay should replace builtin table, got %+v", tbl)
	}

	badExt := filepath.Join(dir, "rules.json")
	os.WriteFile(badExt, []byte("{}"), 0644)
	if _, err := r.LoadFile(badExt); err == nil {
		t.Error("expected error for unsupported extension")
	}
	noRegion := filepath.Join(dir, "none.yaml")
	os.WriteFile(noRegion, []byte("tables: []\n"), 0644)
	if _, err := r.LoadFile(noRegion); err == nil {
		t.Error("expected error for missing region")
	}
}

func TestKeysSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(Table{Region: "uk", BuildingType: "residential"})
	r.Register(Table{Region: "de", BuildingType: "residential"})
	r.Register(Table{Region: "de", BuildingType: "commercial"})
	keys := r.Keys()
	want := []string{"de/commercial", "de/residential", "uk/residential"}
	for i, k := range keys {
		if k.String() != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, k, want[i])
		}
	}
}

func TestFormatForPrompt(t *testing.T) {
	r, _ := LoadBuiltin()
	tbl, _ := r.Lookup("de", "residential")
	out := FormatForPrompt(tbl)
	if !strings.Contains(out, "MIN_WINDOW_RATIO") || !strings.Contains(out, "[mandatory]") {
		t.Errorf("unexpected prompt text:\n%s", out)
	}
	if FormatForPrompt(Table{}) != "" {
		t.Error("empty table should format to empty string")
	}
}
