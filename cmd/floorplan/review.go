package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dshills/floorplan/internal/layout"
	"github.com/dshills/floorplan/internal/patch"
	"github.com/dshills/floorplan/internal/render"
	"github.com/dshills/floorplan/internal/router"
	"github.com/dshills/floorplan/internal/store"
)

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Work the human review queue",
	}
	cmd.AddCommand(newReviewListCmd())
	cmd.AddCommand(newReviewShowCmd())
	cmd.AddCommand(newReviewFeedbackCmd())
	cmd.AddCommand(newReviewResubmitCmd())
	cmd.AddCommand(newReviewDiffCmd())
	cmd.AddCommand(newReviewAssignCmd())
	cmd.AddCommand(newReviewCleanupCmd())
	cmd.AddCommand(newReviewWorkloadCmd())
	return cmd
}

// withRouter opens the store, restores the queue and runs fn, retrying on
// concurrent queue changes.
func withRouter(ctx context.Context, fn func(ctx context.Context, s *store.Store, r *router.Router) error) error {
	a := appFromContext(ctx)
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return a.withQueue(ctx, s, func(r *router.Router) error {
		return fn(ctx, s, r)
	})
}

func newReviewListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List review items, most urgent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := router.Status(strings.ToUpper(status))
			if st != "" && !st.Valid() {
				return exitError(exitInput, "unknown status: %s", status)
			}
			return withRouter(cmd.Context(), func(ctx context.Context, _ *store.Store, r *router.Router) error {
				items := r.List(st)
				if appFromContext(ctx).json {
					return printJSON(cmd.OutOrStdout(), items)
				}
				itemsTable(cmd.OutOrStdout(), items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only items in this status (e.g. pending, in_review)")
	return cmd
}

func newReviewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show a review item with its layout report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRouter(cmd.Context(), func(ctx context.Context, s *store.Store, r *router.Router) error {
				it, err := r.Get(args[0])
				if err != nil {
					return exitFor(err)
				}
				rec, err := s.GetLayout(ctx, it.LayoutID)
				if err != nil {
					return exitFor(err)
				}
				if appFromContext(ctx).json {
					events, err := s.Events(ctx, it.ID)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), map[string]any{"item": it, "layout": rec.Layout, "result": rec.Result, "events": events})
				}
				md := render.Markdown(render.Report{
					LayoutID:     rec.ID,
					Source:       rec.Provider,
					Region:       rec.Region,
					BuildingType: rec.BuildingType,
					Layout:       rec.Layout,
					Result:       rec.Result,
					IsFallback:   rec.IsFallback,
					Review:       &it,
				})
				_, err = fmt.Fprint(cmd.OutOrStdout(), md)
				return err
			})
		},
	}
}

func newReviewFeedbackCmd() *cobra.Command {
	var (
		reviewer string
		rating   int
		approve  bool
		comments string
	)
	cmd := &cobra.Command{
		Use:   "feedback <item-id>",
		Short: "Record a reviewer decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reviewer == "" {
				return exitError(exitInput, "--reviewer is required")
			}
			return withRouter(cmd.Context(), func(ctx context.Context, _ *store.Store, r *router.Router) error {
				it, err := r.SubmitFeedback(ctx, args[0], router.Feedback{
					ReviewerID: reviewer,
					Rating:     rating,
					Approved:   approve,
					Comments:   comments,
				})
				if err != nil {
					return exitFor(err)
				}
				if appFromContext(ctx).json {
					return printJSON(cmd.OutOrStdout(), it)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", it.ID, it.Status)
				return err
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&reviewer, "reviewer", "", "Reviewer id (must match the assignment)")
	flags.IntVar(&rating, "rating", 0, "Rating from 1 to 5; 2 or lower rejects")
	flags.BoolVar(&approve, "approve", false, "Approve the layout")
	flags.StringVar(&comments, "comments", "", "Comments for the designer")
	return cmd
}

func newReviewResubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resubmit <item-id> <layout.json>",
		Short: "Submit a revised layout for an item that needs revision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := appFromContext(ctx)
			l, err := layout.Load(args[1])
			if err != nil {
				return exitError(exitInput, "failed to load layout: %v", err)
			}
			v, err := a.validator()
			if err != nil {
				return err
			}

			id := uuid.NewString()
			return withRouter(ctx, func(ctx context.Context, s *store.Store, r *router.Router) error {
				prev, err := r.Get(args[0])
				if err != nil {
					return exitFor(err)
				}
				old, err := s.GetLayout(ctx, prev.LayoutID)
				if err != nil {
					return exitFor(err)
				}
				sel := a.selector()
				if old.Region != "" || old.BuildingType != "" {
					sel.Region, sel.BuildingType = old.Region, old.BuildingType
				}
				res := v.Validate(l, sel)

				err = s.SaveLayout(ctx, store.LayoutRecord{
					ID:           id,
					Region:       sel.Region,
					BuildingType: sel.BuildingType,
					Provider:     "revision",
					Layout:       l,
					Result:       res,
					Request:      old.Request,
					CreatedAt:    time.Now(),
				})
				if err != nil {
					return err
				}
				it, err := r.Resubmit(ctx, prev.ID, router.Submission{
					LayoutID:             id,
					Result:               res,
					GenerationConfidence: l.Confidence,
					RoomCount:            len(l.Rooms),
					Budget:               prev.Budget,
				})
				if err != nil {
					return exitFor(err)
				}
				if a.json {
					return printJSON(cmd.OutOrStdout(), it)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: %s (%s)\n", prev.ID, it.ID, it.Status, res.Status)
				return err
			})
		},
	}
}

func newReviewDiffCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "diff <item-id>",
		Short: "Show what a revision changed relative to the layout it replaced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRouter(cmd.Context(), func(ctx context.Context, s *store.Store, r *router.Router) error {
				it, err := r.Get(args[0])
				if err != nil {
					return exitFor(err)
				}
				if it.ParentID == "" {
					return exitError(exitInput, "%s is not a revision", it.ID)
				}
				parent, err := r.Get(it.ParentID)
				if err != nil {
					return exitFor(err)
				}
				from, err := s.GetLayout(ctx, parent.LayoutID)
				if err != nil {
					return exitFor(err)
				}
				to, err := s.GetLayout(ctx, it.LayoutID)
				if err != nil {
					return exitFor(err)
				}
				diff, err := patch.Unified(parent.ID, from.Layout, it.ID, to.Layout)
				if err != nil {
					return err
				}
				if outPath != "" {
					return patch.WriteFile(diff, outPath)
				}
				if diff == "" {
					diff = "no changes\n"
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), diff)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "Write the diff to a file instead of stdout")
	return cmd
}

func newReviewAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign",
		Short: "Assign waiting items to reviewers with spare capacity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRouter(cmd.Context(), func(ctx context.Context, _ *store.Store, r *router.Router) error {
				assigned, err := r.AssignPending(ctx)
				if err != nil {
					return err
				}
				if appFromContext(ctx).json {
					return printJSON(cmd.OutOrStdout(), assigned)
				}
				itemsTable(cmd.OutOrStdout(), assigned)
				return nil
			})
		},
	}
}

func newReviewCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge finished items older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRouter(cmd.Context(), func(ctx context.Context, s *store.Store, r *router.Router) error {
				ids := r.Cleanup(ctx)
				n, err := s.DeleteItems(ctx, ids)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %d review items\n", n)
				return err
			})
		},
	}
}

func newReviewWorkloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workload",
		Short: "Show reviewer workloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRouter(cmd.Context(), func(ctx context.Context, _ *store.Store, r *router.Router) error {
				ws := r.Pool.Snapshot()
				if appFromContext(ctx).json {
					return printJSON(cmd.OutOrStdout(), ws)
				}
				workloadTable(cmd.OutOrStdout(), ws)
				return nil
			})
		},
	}
}
