package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
)

// BatchResult pairs a submitted board with its run outcome.
type BatchResult struct {
	Board   domain.BoardSource `json:"board"`
	Outcome *Outcome           `json:"outcome,omitempty"`
	Err     error              `json:"-"`
}

// RunAll runs every board on its own controller run, at most concurrency at
// a time (the configured value when concurrency <= 0). Results keep input
// order. One board failing never cancels the others; the returned error
// joins every per-board error.
func (c *Controller) RunAll(ctx context.Context, boards []domain.BoardSource, concurrency int) ([]BatchResult, error) {
	if concurrency <= 0 {
		concurrency = c.cfg.Concurrency
	}
	results := make([]BatchResult, len(boards))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, b := range boards {
		g.Go(func() error {
			out, err := c.Run(ctx, b)
			results[i] = BatchResult{Board: b, Outcome: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("board %q: %w", r.Board.Name, r.Err))
		}
	}
	return results, errors.Join(errs...)
}
