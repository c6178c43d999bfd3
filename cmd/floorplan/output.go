package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/dshills/floorplan/internal/router"
	"github.com/dshills/floorplan/internal/verdict"
)

// writeOutput writes s to path, or to w when path is empty.
func writeOutput(w io.Writer, path, s string) error {
	if path == "" {
		_, err := io.WriteString(w, s)
		return err
	}
	if err := os.WriteFile(path, []byte(s), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func marshalJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal output: %w", err)
	}
	return string(data) + "\n", nil
}

func printJSON(w io.Writer, v any) error {
	s, err := marshalJSON(v)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}

func findingsTable(w io.Writer, res verdict.Result) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Severity", "Code", "Location", "Message"})
	for _, f := range append(append([]verdict.ValidationError(nil), res.Errors...), res.Warnings...) {
		tw.AppendRow(table.Row{f.Severity, f.Code, f.Location, f.Message})
	}
	tw.AppendFooter(table.Row{"", "Status", res.Status, fmt.Sprintf("confidence %.2f, compliance %.2f", res.Confidence, res.ComplianceScore)})
	tw.Render()
}

func itemsTable(w io.Writer, items []router.ReviewItem) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Layout", "Status", "Priority", "Reviewer", "Confidence", "Deadline"})
	for _, it := range items {
		tw.AppendRow(table.Row{
			it.ID, it.LayoutID, it.Status, it.Priority, it.ReviewerID,
			fmt.Sprintf("%.2f", it.GenerationConfidence), it.Deadline.Local().Format("2006-01-02 15:04"),
		})
	}
	tw.Render()
}

func workloadTable(w io.Writer, ws []router.ReviewerWorkload) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Reviewer", "Name", "Workload"})
	for _, r := range ws {
		tw.AppendRow(table.Row{r.ID, r.Name, fmt.Sprintf("%d/%d", r.Workload, r.Max)})
	}
	tw.Render()
}

func parseFormat(s string) (string, error) {
	switch f := strings.ToLower(s); f {
	case "md", "json", "table":
		return f, nil
	default:
		return "", exitError(exitInput, "unknown format: %s", s)
	}
}
