package workflow

import (
	"context"
	"log/slog"
	"sync/atomic"

	"metaledger/internal/logging"
)

// runCounter forwards warnings and errors to the counter of the run in
// progress. Stage loggers are built once, so the per-run counter is swapped
// underneath them.
type runCounter struct {
	current atomic.Pointer[logging.LevelCounter]
}

func (c *runCounter) start() *logging.LevelCounter {
	counter := logging.NewLevelCounter()
	c.current.Store(counter)
	return counter
}

func (c *runCounter) stop() {
	c.current.Store(nil)
}

func (c *runCounter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn
}

func (c *runCounter) Handle(ctx context.Context, record slog.Record) error {
	if counter := c.current.Load(); counter != nil {
		return counter.Handle(ctx, record)
	}
	return nil
}

func (c *runCounter) WithAttrs([]slog.Attr) slog.Handler { return c }

func (c *runCounter) WithGroup(string) slog.Handler { return c }
