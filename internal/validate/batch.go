package validate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/floorplan/internal/layout"
	"github.com/dshills/floorplan/internal/verdict"
)

// Item is one layout queued for batch validation.
type Item struct {
	Layout   *layout.Layout
	Selector Selector
}

// Batch validates independent layouts in parallel with at most limit
// workers (limit <= 0 means unbounded). Results are in input order. Only
// cancellation of ctx before a layout starts produces an error; a started
// validation always runs to completion.
func Batch(ctx context.Context, v *Validator, items []Item, limit int) ([]verdict.Result, error) {
	results := make([]verdict.Result, len(items))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, it := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = v.Validate(it.Layout, it.Selector)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
