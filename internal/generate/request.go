package generate

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/floorplan/internal/apperr"
	"github.com/dshills/floorplan/internal/validate"
)

// Request limits.
const (
	MinRoomAreaM2     = 5.0
	MinBuildingAreaM2 = 20.0
)

// RoomSpec is one requested room.
type RoomSpec struct {
	Name   string  `yaml:"name" json:"name"`
	AreaM2 float64 `yaml:"area_m2" json:"area_m2"`
	Notes  string  `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// RoomProgram lists the rooms to place. Names are unique.
type RoomProgram struct {
	Rooms []RoomSpec `yaml:"rooms" json:"rooms"`
}

// TotalAreaM2 sums the requested room areas.
func (p RoomProgram) TotalAreaM2() float64 {
	var sum float64
	for _, r := range p.Rooms {
		sum += r.AreaM2
	}
	return sum
}

// BuildingRequirements are the building-level constraints.
type BuildingRequirements struct {
	TotalAreaM2  float64 `yaml:"total_area_m2" json:"total_area_m2"`
	Floors       int     `yaml:"floors" json:"floors"`
	Region       string  `yaml:"region" json:"region"`
	BuildingType string  `yaml:"building_type" json:"building_type"`
	Style        string  `yaml:"style,omitempty" json:"style,omitempty"`
	Budget       float64 `yaml:"budget,omitempty" json:"budget,omitempty"`
	Notes        string  `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// Request is one generation request.
type Request struct {
	Program      RoomProgram          `yaml:"program" json:"program"`
	Requirements BuildingRequirements `yaml:"requirements" json:"requirements"`
}

// Selector returns the code-table selector for the request.
func (r Request) Selector() validate.Selector {
	return validate.Selector{Region: r.Requirements.Region, BuildingType: r.Requirements.BuildingType}
}

// LoadRequest reads a YAML or JSON request file.
func LoadRequest(path string) (Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Request{}, fmt.Errorf("generate.LoadRequest: %w", err)
	}
	var req Request
	if err := yaml.Unmarshal(data, &req); err != nil {
		return Request{}, apperr.Wrap(apperr.CodeInvalidRequest, err, "parse %s", path)
	}
	return req, nil
}

// ValidateRequest checks the request before any generation work starts.
// All problems are reported together as one INVALID_REQUEST error.
func ValidateRequest(req Request) error {
	var problems []string
	rooms := req.Program.Rooms
	if len(rooms) == 0 {
		problems = append(problems, "room program is empty")
	}
	seen := make(map[string]bool, len(rooms))
	for i, r := range rooms {
		name := strings.TrimSpace(r.Name)
		switch {
		case name == "":
			problems = append(problems, fmt.Sprintf("rooms[%d]: name is required", i))
		case seen[strings.ToLower(name)]:
			problems = append(problems, fmt.Sprintf("rooms[%d]: duplicate room name %q", i, r.Name))
		}
		seen[strings.ToLower(name)] = true
		if r.AreaM2 < MinRoomAreaM2 {
			problems = append(problems, fmt.Sprintf("room %q: area %g m2 is below %g m2", r.Name, r.AreaM2, MinRoomAreaM2))
		}
	}
	total := req.Requirements.TotalAreaM2
	if total < MinBuildingAreaM2 {
		problems = append(problems, fmt.Sprintf("total area %g m2 is below %g m2", total, MinBuildingAreaM2))
	}
	if sum := req.Program.TotalAreaM2(); sum > total {
		problems = append(problems, fmt.Sprintf("room areas sum to %g m2, more than the %g m2 building", sum, total))
	}
	if req.Requirements.Floors < 1 {
		problems = append(problems, fmt.Sprintf("floor count %d must be at least 1", req.Requirements.Floors))
	}
	if len(problems) > 0 {
		return apperr.New(apperr.CodeInvalidRequest, "%s", strings.Join(problems, "; "))
	}
	return nil
}
