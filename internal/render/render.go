// Package render produces Markdown output from a validated layout.
package render

import (
	"fmt"
	"strings"

	"github.com/dshills/floorplan/internal/layout"
	"github.com/dshills/floorplan/internal/router"
	"github.com/dshills/floorplan/internal/verdict"
)

// Report is everything the Markdown report can show. Only Result is required.
type Report struct {
	LayoutID       string
	Source         string
	Region         string
	BuildingType   string
	Layout         *layout.Layout
	Result         verdict.Result
	IsFallback     bool
	FallbackReason string
	Review         *router.ReviewItem
}

// Markdown renders a validation report.
func Markdown(r Report) string {
	var b strings.Builder

	b.WriteString("# Floor Plan Validation\n\n")
	if r.LayoutID != "" {
		fmt.Fprintf(&b, "**Layout:** %s\n", r.LayoutID)
	}
	if r.Source != "" {
		fmt.Fprintf(&b, "**Source:** %s\n", r.Source)
	}
	if r.Region != "" || r.BuildingType != "" {
		fmt.Fprintf(&b, "**Code table:** %s / %s\n", orDash(r.Region), orDash(r.BuildingType))
	}
	fmt.Fprintf(&b, "**Status:** %s\n", r.Result.Status)
	fmt.Fprintf(&b, "**Confidence:** %.2f\n", r.Result.Confidence)
	fmt.Fprintf(&b, "**Compliance:** %.2f\n", r.Result.ComplianceScore)
	c := r.Result.Counts()
	fmt.Fprintf(&b, "**Findings:** %d critical, %d errors, %d warnings\n\n", c.Critical, c.Error, c.Warning)

	if r.IsFallback {
		b.WriteString("> Generated by the deterministic fallback grid")
		if r.FallbackReason != "" {
			fmt.Fprintf(&b, " (%s)", r.FallbackReason)
		}
		b.WriteString(". Human review is mandatory.\n\n")
	}

	all := append(append([]verdict.ValidationError(nil), r.Result.Errors...), r.Result.Warnings...)
	sections := []struct {
		title string
		sev   verdict.Severity
	}{
		{"Critical", verdict.SeverityCritical},
		{"Errors", verdict.SeverityError},
		{"Warnings", verdict.SeverityWarning},
	}
	for _, s := range sections {
		findings := filterFindings(all, s.sev)
		if len(findings) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", s.title)
		for _, f := range findings {
			renderFinding(&b, f)
		}
	}
	if len(all) == 0 {
		b.WriteString("No findings.\n\n")
	}

	if r.Layout != nil {
		renderLayout(&b, r.Layout)
	}
	if r.Review != nil {
		renderReview(&b, r.Review)
	}
	return b.String()
}

func filterFindings(findings []verdict.ValidationError, sev verdict.Severity) []verdict.ValidationError {
	var result []verdict.ValidationError
	for _, f := range findings {
		if f.Severity == sev {
			result = append(result, f)
		}
	}
	return result
}

func renderFinding(b *strings.Builder, f verdict.ValidationError) {
	fmt.Fprintf(b, "### %s", f.Code)
	if f.Location != "" {
		fmt.Fprintf(b, " at `%s`", f.Location)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(b, "%s\n\n", f.Message)
	if f.Suggestion != "" {
		fmt.Fprintf(b, "**Suggestion:** %s\n\n", f.Suggestion)
	}
}

func renderLayout(b *strings.Builder, l *layout.Layout) {
	b.WriteString("## Layout\n\n")
	fmt.Fprintf(b, "%d walls, %d doors, %d windows, %.2f m2 floor area, %.2f m2 glazing\n\n",
		len(l.Walls), len(l.Doors), len(l.Windows), l.TotalFloorAreaM2(), l.TotalWindowAreaM2())
	if len(l.Rooms) > 0 {
		b.WriteString("| Room | Area (m2) | Walls |\n|---|---|---|\n")
		for _, r := range l.Rooms {
			idx := make([]string, len(r.BoundaryWallIndices))
			for i, w := range r.BoundaryWallIndices {
				idx[i] = fmt.Sprint(w)
			}
			fmt.Fprintf(b, "| %s | %.2f | %s |\n", r.Name, r.AreaM2, strings.Join(idx, ", "))
		}
		b.WriteString("\n")
	}
	if len(l.ComplianceNotes) > 0 {
		b.WriteString("**Notes:**\n")
		for _, n := range l.ComplianceNotes {
			fmt.Fprintf(b, "- %s\n", n)
		}
		b.WriteString("\n")
	}
}

func renderReview(b *strings.Builder, it *router.ReviewItem) {
	b.WriteString("## Review\n\n")
	fmt.Fprintf(b, "**Item:** %s\n", it.ID)
	fmt.Fprintf(b, "**Status:** %s\n", it.Status)
	fmt.Fprintf(b, "**Priority:** %s (score %d)\n", it.Priority, it.Score)
	if it.ReviewerID != "" {
		fmt.Fprintf(b, "**Reviewer:** %s\n", it.ReviewerID)
	}
	if it.AutoApproved {
		b.WriteString("**Auto-approved:** yes\n")
	}
	fmt.Fprintf(b, "**Deadline:** %s\n", it.Deadline.Format("2006-01-02 15:04 MST"))
	if len(it.FeedbackHistory) > 0 {
		b.WriteString("\n")
	}
	for _, fb := range it.FeedbackHistory {
		fmt.Fprintf(b, "**Feedback from %s:** rating %d/5", fb.ReviewerID, fb.Rating)
		if fb.Comments != "" {
			fmt.Fprintf(b, ", %q", fb.Comments)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
