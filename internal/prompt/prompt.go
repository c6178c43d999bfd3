// Package prompt builds the generation prompt sent to the AI collaborator.
package prompt

import (
	"fmt"
	"strings"

	"github.com/dshills/floorplan/internal/codes"
)

// Room is one entry of the room program as it appears in the prompt.
type Room struct {
	Name   string
	AreaM2 float64
	Notes  string
}

// Brief is a line-numbered design brief attached to the request.
type Brief struct {
	Name string
	Text string
}

// BuildOpts configures prompt construction.
type BuildOpts struct {
	Rooms        []Room
	TotalAreaM2  float64
	Floors       int
	Region       string
	BuildingType string
	Style        string
	Budget       float64
	Notes        string
	CodeTable    codes.Table
	FireExitMM   float64
	Briefs       []Brief
}

// System is the system instruction for layout generation.
const System = "You are an architectural layout generator. You output only JSON floor plans in millimeter coordinates."

// Build assembles the full generation prompt.
func Build(opts BuildOpts) string {
	var b strings.Builder

	b.WriteString(`Generate a single-storey floor plan for the room program below.

You MUST output ONLY valid JSON matching the schema below. No markdown, no prose outside JSON.

`)
	b.WriteString(schemaDefinition)
	b.WriteString("\n\n")

	fireExit := opts.FireExitMM
	if fireExit <= 0 {
		fireExit = 900
	}
	fmt.Fprintf(&b, `## Rules

1. All coordinates and dimensions are millimeters; room areas are square meters.
2. Walls must be at least 100 mm long and 2200 mm high. Never emit a wall whose start equals its end.
3. Walls must not overlap; adjacent rooms share a single wall.
4. wall_index on doors and windows is a zero-based index into "walls". position_mm is the distance of the opening's center from the wall start; the opening must fit inside the wall.
5. Door widths are between 850 and 1200 mm. At least one door on an exterior wall is %.0f mm or wider.
6. Every room has a door, and every room can reach an exterior door through doors.
7. Every room is at least 5 m2. Corridors and hallways are at least 1200 mm wide.
8. Window area is at least one eighth of the floor area. Window sill plus height stays 100 mm below the wall top.
9. Set "confidence" to your own estimate in [0,1] that the plan satisfies these rules.

`, fireExit)

	if t := codes.FormatForPrompt(opts.CodeTable); t != "" {
		b.WriteString(t)
		b.WriteString("\n")
	}

	b.WriteString("## Building\n\n")
	fmt.Fprintf(&b, "- Total area: %g m2\n", opts.TotalAreaM2)
	if opts.Floors > 0 {
		fmt.Fprintf(&b, "- Floors: %d\n", opts.Floors)
	}
	if opts.Region != "" || opts.BuildingType != "" {
		fmt.Fprintf(&b, "- Region: %s, building type: %s\n", opts.Region, opts.BuildingType)
	}
	if opts.Style != "" {
		fmt.Fprintf(&b, "- Style: %s\n", opts.Style)
	}
	if opts.Budget > 0 {
		fmt.Fprintf(&b, "- Budget: %.0f\n", opts.Budget)
	}
	b.WriteString("\n## Rooms\n\n")
	for _, r := range opts.Rooms {
		fmt.Fprintf(&b, "- %s: %g m2", r.Name, r.AreaM2)
		if r.Notes != "" {
			fmt.Fprintf(&b, " (%s)", r.Notes)
		}
		b.WriteString("\n")
	}
	if opts.Notes != "" {
		fmt.Fprintf(&b, "\n<notes>\n%s\n</notes>\n", strings.TrimSpace(opts.Notes))
	}
	for _, br := range opts.Briefs {
		fmt.Fprintf(&b, "\n## Design brief: %s\n\n%s", br.Name, br.Text)
	}
	return b.String()
}

const schemaDefinition = `## Output JSON Schema

{
  "walls": [
    {"start": {"x": 0, "y": 0}, "end": {"x": 4000, "y": 0}, "kind": "exterior|interior", "height_mm": 2700, "thickness_mm": 200}
  ],
  "doors": [
    {"wall_index": 0, "position_mm": 2000, "width_mm": 900, "height_mm": 2100}
  ],
  "windows": [
    {"wall_index": 0, "position_mm": 1000, "width_mm": 1200, "height_mm": 1400, "sill_height_mm": 900}
  ],
  "rooms": [
    {"name": "Living", "area_m2": 12.0, "boundary_wall_indices": [0, 1, 2, 3]}
  ],
  "confidence": 0.0,
  "compliance_notes": ["..."]
}`
