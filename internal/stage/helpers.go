package stage

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ForEach runs fn for every item with at most workers in flight. The first
// error cancels the remaining work and is returned; per-record problems should
// be recorded by fn rather than returned.
func ForEach[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T) error) error {
	if workers <= 0 {
		workers = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for _, item := range items {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			return fn(groupCtx, item)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
