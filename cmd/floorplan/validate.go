package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dshills/floorplan/internal/layout"
	"github.com/dshills/floorplan/internal/render"
	"github.com/dshills/floorplan/internal/router"
	"github.com/dshills/floorplan/internal/store"
	"github.com/dshills/floorplan/internal/validate"
	"github.com/dshills/floorplan/internal/verdict"
)

type validateFlags struct {
	format       string
	out          string
	failOnReject bool
	submit       bool
	workers      int
}

type validateOutput struct {
	File     string             `json:"file"`
	LayoutID string             `json:"layout_id,omitempty"`
	Hash     string             `json:"hash"`
	Result   verdict.Result     `json:"result"`
	Review   *router.ReviewItem `json:"review,omitempty"`
}

func newValidateCmd() *cobra.Command {
	f := &validateFlags{}

	cmd := &cobra.Command{
		Use:   "validate <layout.json>...",
		Short: "Validate existing layouts against geometry, space, code, safety and accessibility rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.format, "format", "md", "Output format: md, json or table")
	flags.StringVar(&f.out, "out", "", "Output file path (default: stdout)")
	flags.BoolVar(&f.failOnReject, "fail-on-reject", false, "Exit 2 if any layout is rejected")
	flags.BoolVar(&f.submit, "submit", false, "Store the layouts and route them to human review")
	flags.IntVar(&f.workers, "workers", 4, "Layouts validated in parallel")
	return cmd
}

func runValidate(cmd *cobra.Command, paths []string, f *validateFlags) error {
	ctx := cmd.Context()
	a := appFromContext(ctx)
	logger := loggerFromContext(ctx)

	format, err := parseFormat(f.format)
	if err != nil {
		return err
	}

	layouts := make([]*layout.Layout, len(paths))
	items := make([]validate.Item, len(paths))
	for i, p := range paths {
		l, err := layout.Load(p)
		if err != nil {
			return exitError(exitInput, "failed to load layout: %v", err)
		}
		layouts[i] = l
		items[i] = validate.Item{Layout: l, Selector: a.selector()}
	}

	v, err := a.validator()
	if err != nil {
		return err
	}
	start := time.Now()
	results, err := validate.Batch(ctx, v, items, f.workers)
	if err != nil {
		return err
	}
	logger.Debug("validated layouts", "count", len(results), "duration", time.Since(start))

	outs := make([]validateOutput, len(paths))
	for i, p := range paths {
		outs[i] = validateOutput{File: filepath.Base(p), Hash: layout.Hash(layouts[i]), Result: results[i]}
	}

	if f.submit {
		if err := submitLayouts(ctx, a, layouts, outs); err != nil {
			return err
		}
	}

	var output string
	switch format {
	case "json":
		if output, err = marshalJSON(outs); err != nil {
			return err
		}
	case "table":
		var b strings.Builder
		for _, o := range outs {
			fmt.Fprintf(&b, "%s\n", o.File)
			findingsTable(&b, o.Result)
		}
		output = b.String()
	default:
		parts := make([]string, len(outs))
		for i, o := range outs {
			parts[i] = render.Markdown(render.Report{
				LayoutID:     o.LayoutID,
				Source:       o.File,
				Region:       a.cfg.Region,
				BuildingType: a.cfg.BuildingType,
				Layout:       layouts[i],
				Result:       o.Result,
				Review:       o.Review,
			})
		}
		output = strings.Join(parts, "\n---\n\n")
	}
	if err := writeOutput(cmd.OutOrStdout(), f.out, output); err != nil {
		return err
	}

	if f.failOnReject {
		var rejected []string
		for _, o := range outs {
			if o.Result.Status == verdict.StatusRejected {
				rejected = append(rejected, o.File)
			}
		}
		if len(rejected) > 0 {
			return exitError(exitRejected, "rejected: %s", strings.Join(rejected, ", "))
		}
	}
	return nil
}

// submitLayouts stores each validated layout and routes it to review.
func submitLayouts(ctx context.Context, a *app, layouts []*layout.Layout, outs []validateOutput) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	for i, l := range layouts {
		id := uuid.NewString()
		err := s.SaveLayout(ctx, store.LayoutRecord{
			ID:           id,
			Hash:         outs[i].Hash,
			Region:       a.cfg.Region,
			BuildingType: a.cfg.BuildingType,
			Provider:     "import",
			Layout:       l,
			Result:       outs[i].Result,
			CreatedAt:    time.Now(),
		})
		if err != nil {
			return err
		}
		var it router.ReviewItem
		err = a.withQueue(ctx, s, func(r *router.Router) error {
			var err error
			it, err = r.Submit(ctx, router.Submission{
				LayoutID:             id,
				Result:               outs[i].Result,
				GenerationConfidence: l.Confidence,
				RoomCount:            len(l.Rooms),
			})
			return err
		})
		if err != nil {
			return exitFor(err)
		}
		outs[i].LayoutID = id
		outs[i].Review = &it
	}
	return nil
}
