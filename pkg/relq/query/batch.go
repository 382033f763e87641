package query

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// EvaluateBatch evaluates qs concurrently against the same store and returns
// results in input order. Config.Parallelism caps the number of queries in
// flight. The first error cancels the remaining queries and is returned with
// no results.
func (e *Engine) EvaluateBatch(ctx context.Context, qs []Query) ([]*Result, error) {
	results := make([]*Result, len(qs))

	g, ctx := errgroup.WithContext(ctx)
	if e.cfg.Parallelism > 0 {
		g.SetLimit(e.cfg.Parallelism)
	}
	for i, q := range qs {
		g.Go(func() error {
			res, err := e.Evaluate(ctx, q)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
