package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/floorplan/internal/brief"
	"github.com/dshills/floorplan/internal/generate"
	"github.com/dshills/floorplan/internal/llm"
	"github.com/dshills/floorplan/internal/render"
	"github.com/dshills/floorplan/internal/router"
	"github.com/dshills/floorplan/internal/store"
	"github.com/dshills/floorplan/internal/verdict"
)

type generateFlags struct {
	format       string
	out          string
	layoutOut    string
	noSubmit     bool
	failOnReject bool
	requireModel bool
	briefs       []string
}

type generateOutput struct {
	*generate.Output
	Review *router.ReviewItem `json:"review,omitempty"`
}

func newGenerateCmd() *cobra.Command {
	f := &generateFlags{}

	cmd := &cobra.Command{
		Use:   "generate <request.yaml>",
		Short: "Generate a layout from a room program, validate it and route it to review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.format, "format", "md", "Output format: md, json or table")
	flags.StringVar(&f.out, "out", "", "Report file path (default: stdout)")
	flags.StringVar(&f.layoutOut, "layout-out", "", "Write the generated layout JSON to this file")
	flags.BoolVar(&f.noSubmit, "no-submit", false, "Store the layout without routing it to review")
	flags.BoolVar(&f.failOnReject, "fail-on-reject", false, "Exit 2 if the layout is rejected")
	flags.StringArrayVar(&f.briefs, "brief", nil, "Design brief file to include in the prompt (repeatable)")
	flags.BoolVar(&f.requireModel, "require-model", false, "Fail instead of using the fallback grid when no model provider is configured")
	return cmd
}

func runGenerate(cmd *cobra.Command, reqPath string, f *generateFlags) error {
	ctx := cmd.Context()
	a := appFromContext(ctx)
	logger := loggerFromContext(ctx)

	format, err := parseFormat(f.format)
	if err != nil {
		return err
	}

	req, err := generate.LoadRequest(reqPath)
	if err != nil {
		return exitError(exitInput, "failed to load request: %v", err)
	}
	if req.Requirements.Region == "" {
		req.Requirements.Region = a.cfg.Region
	}
	if req.Requirements.BuildingType == "" {
		req.Requirements.BuildingType = a.cfg.BuildingType
	}
	if err := generate.ValidateRequest(req); err != nil {
		return exitFor(err)
	}
	briefs, err := brief.LoadAll(f.briefs)
	if err != nil {
		return exitError(exitInput, "failed to load brief: %v", err)
	}

	provider, err := llm.ResolveProvider(ctx, a.cfg.Model)
	if err != nil {
		if f.requireModel {
			return exitError(exitProvider, "model provider error: %v", err)
		}
		logger.Warn("no model provider, using fallback grid", "err", err)
		provider = nil
	} else {
		logger.Debug("using provider", "provider", provider.Name(), "model", a.cfg.Model)
	}

	v, err := a.validator()
	if err != nil {
		return err
	}
	o := generate.New(provider, v, logger)
	o.Settings = a.cfg.LLMSettings()
	o.Timeout = a.cfg.Timeout
	o.Briefs = briefs

	out, err := o.Generate(ctx, req)
	if err != nil {
		return exitFor(err)
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	err = s.SaveLayout(ctx, store.LayoutRecord{
		ID:           out.ID,
		Region:       out.Selector.Region,
		BuildingType: out.Selector.BuildingType,
		Provider:     out.Provider,
		IsFallback:   out.IsFallback,
		Layout:       out.Layout,
		Result:       out.Result,
		Request:      reqJSON,
		CreatedAt:    out.CreatedAt,
	})
	if err != nil {
		return err
	}

	res := generateOutput{Output: out}
	if !f.noSubmit {
		var it router.ReviewItem
		err := a.withQueue(ctx, s, func(r *router.Router) error {
			var err error
			it, err = r.Submit(ctx, router.Submission{
				LayoutID:             out.ID,
				Result:               out.Result,
				GenerationConfidence: out.GenerationConfidence(),
				IsFallback:           out.IsFallback,
				RoomCount:            len(out.Layout.Rooms),
				Budget:               req.Requirements.Budget,
			})
			return err
		})
		if err != nil {
			return exitFor(err)
		}
		res.Review = &it
	}

	if f.layoutOut != "" {
		data, err := marshalJSON(out.Layout)
		if err != nil {
			return err
		}
		if err := writeOutput(cmd.OutOrStdout(), f.layoutOut, data); err != nil {
			return err
		}
	}

	var output string
	switch format {
	case "json":
		if output, err = marshalJSON(res); err != nil {
			return err
		}
	case "table":
		var b strings.Builder
		fmt.Fprintf(&b, "Layout %s (%s)\n", out.ID, out.Provider)
		findingsTable(&b, out.Result)
		if res.Review != nil {
			itemsTable(&b, []router.ReviewItem{*res.Review})
		}
		output = b.String()
	default:
		output = render.Markdown(render.Report{
			LayoutID:       out.ID,
			Source:         out.Provider,
			Region:         out.Selector.Region,
			BuildingType:   out.Selector.BuildingType,
			Layout:         out.Layout,
			Result:         out.Result,
			IsFallback:     out.IsFallback,
			FallbackReason: out.FallbackReason,
			Review:         res.Review,
		})
	}
	if err := writeOutput(cmd.OutOrStdout(), f.out, output); err != nil {
		return err
	}

	if f.failOnReject && out.Result.Status == verdict.StatusRejected {
		return exitError(exitRejected, "layout %s rejected", out.ID)
	}
	return nil
}
