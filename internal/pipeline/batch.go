package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/specsync/internal/config"
	"github.com/yourorg/specsync/pkg/types"
)

// Summary aggregates a ReconcileAll call. Results follows the order of the
// targets; entries for targets that never started are nil.
type Summary struct {
	Results   []*Result
	Written   int64
	Unchanged int64
	Failed    int64
}

// ReconcileAll runs targets concurrently, at most Concurrency at a time. The
// first failure cancels the remaining targets and is returned.
func (r *Runner) ReconcileAll(ctx context.Context, targets []config.Target) (*Summary, error) {
	limit := r.Concurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	results := make([]*Result, len(targets))
	var written, unchanged, failed atomic.Int64

	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.Run(gctx, t)
			results[i] = res
			if err != nil {
				failed.Inc()
				return fmt.Errorf("target %s: %w", t.Name, err)
			}
			switch res.Run.Status {
			case types.RunUnchanged:
				unchanged.Inc()
			default:
				written.Inc()
			}
			return nil
		})
	}
	err := g.Wait()

	return &Summary{
		Results:   results,
		Written:   written.Load(),
		Unchanged: unchanged.Load(),
		Failed:    failed.Load(),
	}, err
}
