package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type fanoutHandler struct {
	handlers []slog.Handler
}

func newFanoutHandler(handlers ...slog.Handler) slog.Handler {
	filtered := handlers[:0]
	for _, h := range handlers {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	if len(filtered) == 0 {
		return slog.DiscardHandler
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &fanoutHandler{handlers: append([]slog.Handler(nil), filtered...)}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for idx, handler := range h.handlers {
		// Only call Handle on handlers that accept this log level
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		rec := record
		if idx < len(h.handlers)-1 {
			rec = record.Clone()
		}
		if err := handler.Handle(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

// TeeLogger duplicates log output from base into the provided handlers.
func TeeLogger(base *slog.Logger, handlers ...slog.Handler) *slog.Logger {
	if base == nil {
		return slog.New(newFanoutHandler(handlers...))
	}
	all := append([]slog.Handler{base.Handler()}, handlers...)
	return slog.New(newFanoutHandler(all...))
}

// LevelCounter is a handler that only counts WARN and ERROR records. Tee it
// beside the real handler to report anomaly totals in a run summary.
type LevelCounter struct {
	warns  atomic.Int64
	errors atomic.Int64
}

// NewLevelCounter returns an empty counter.
func NewLevelCounter() *LevelCounter {
	return &LevelCounter{}
}

func (c *LevelCounter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn
}

func (c *LevelCounter) Handle(_ context.Context, record slog.Record) error {
	switch {
	case record.Level >= slog.LevelError:
		c.errors.Add(1)
	case record.Level >= slog.LevelWarn:
		c.warns.Add(1)
	}
	return nil
}

func (c *LevelCounter) WithAttrs([]slog.Attr) slog.Handler { return c }

func (c *LevelCounter) WithGroup(string) slog.Handler { return c }

// Warnings reports the number of WARN records seen.
func (c *LevelCounter) Warnings() int64 { return c.warns.Load() }

// Errors reports the number of ERROR records seen.
func (c *LevelCounter) Errors() int64 { return c.errors.Load() }
