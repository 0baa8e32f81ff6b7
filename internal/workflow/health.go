package workflow

import (
	"context"

	"metaledger/internal/stage"
)

// Health reports every configured stage's readiness.
func (r *Runner) Health(ctx context.Context) []stage.Health {
	handlers := r.stages.Ordered()
	out := make([]stage.Health, 0, len(handlers))
	for _, h := range handlers {
		out = append(out, h.HealthCheck(ctx))
	}
	return out
}
