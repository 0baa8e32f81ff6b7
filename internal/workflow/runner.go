package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"metaledger/internal/config"
	"metaledger/internal/ledger"
	"metaledger/internal/logging"
	"metaledger/internal/metrics"
	"metaledger/internal/preflight"
	"metaledger/internal/services"
	"metaledger/internal/stage"
)

// Runner executes pipeline stages under the run lock.
type Runner struct {
	cfg     *config.Config
	store   *ledger.Store
	logger  *slog.Logger
	metrics *metrics.Recorder
	stages  StageSet
	counts  *runCounter

	skipPreflight bool
}

// RunnerOption configures optional Runner behavior.
type RunnerOption func(*Runner)

// WithStages replaces the handlers built from configuration.
func WithStages(set StageSet) RunnerOption {
	return func(r *Runner) { r.stages = set }
}

// WithMetrics records stage and ledger metrics on rec.
func WithMetrics(rec *metrics.Recorder) RunnerOption {
	return func(r *Runner) { r.metrics = rec }
}

// WithoutPreflight skips the readiness checks.
func WithoutPreflight() RunnerOption {
	return func(r *Runner) { r.skipPreflight = true }
}

// NewRunner wires a runner. Unless WithStages is given, handlers are built
// from cfg.
func NewRunner(cfg *config.Config, store *ledger.Store, logger *slog.Logger, opts ...RunnerOption) (*Runner, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	counts := &runCounter{}
	r := &Runner{cfg: cfg, store: store, logger: logging.TeeLogger(logger, counts), counts: counts}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.stages.Ordered()) == 0 {
		set, err := BuildStages(cfg, store, r.logger, r.metrics)
		if err != nil {
			return nil, err
		}
		r.stages = set
	}
	return r, nil
}

// Stages returns the handlers the runner executes.
func (r *Runner) Stages() StageSet {
	return r.stages
}

// Run executes every configured stage in order.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	return r.execute(ctx, r.stages.Ordered())
}

// RunStage executes a single stage by name under the same lock and logging as
// a full run.
func (r *Runner) RunStage(ctx context.Context, name string) (Summary, error) {
	handler, ok := r.stages.Lookup(name)
	if !ok {
		return Summary{}, services.Wrap(services.ErrConfiguration, "workflow", "run stage", fmt.Sprintf("stage %q is not configured", name), nil)
	}
	return r.execute(ctx, []stage.Handler{handler})
}

func (r *Runner) execute(ctx context.Context, handlers []stage.Handler) (Summary, error) {
	summary := Summary{RunID: uuid.NewString(), Started: time.Now().UTC()}
	ctx = services.WithRunID(ctx, summary.RunID)

	logger := logging.WithContext(ctx, r.logger)

	lock, err := acquireLock(r.cfg.LockPath())
	if err != nil {
		return summary, err
	}
	counter := r.counts.start()
	defer r.counts.stop()
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	logger.Info("workflow run started",
		logging.Int("stages", len(handlers)),
		logging.String("lock", r.cfg.LockPath()),
		logging.String(logging.FieldEventType, "run_start"),
	)

	if !r.skipPreflight {
		if err := r.runPreflightChecks(ctx, logger, handlers); err != nil {
			summary.finish(counter)
			return summary, err
		}
	}

	var stageErrs []error
	for _, handler := range handlers {
		if err := ctx.Err(); err != nil {
			stageErrs = append(stageErrs, err)
			break
		}
		stageSummary, err := handler.Run(ctx)
		if stageSummary.Stage == "" {
			stageSummary.Stage = handler.Name()
		}
		summary.Stages = append(summary.Stages, stageSummary)
		r.metrics.StageFinished(stageSummary.Stage, stageSummary.Duration)
		if err == nil {
			continue
		}
		stageErrs = append(stageErrs, fmt.Errorf("%s: %w", handler.Name(), err))
		if services.IsFatal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logging.ErrorWithContext(logger, "workflow run aborted", "run_aborted",
				logging.StageName(handler.Name()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, hintFor(err)),
			)
			break
		}
		logging.WarnWithContext(logger, "stage failed, continuing", "stage_failed",
			logging.StageName(handler.Name()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stage candidates are retried on the next run"),
		)
	}

	r.recordLedgerMetrics(ctx, logger)
	summary.finish(counter)
	runErr := errors.Join(stageErrs...)
	logger.Info("workflow run finished",
		logging.Duration("duration", summary.Duration),
		logging.Int64("warnings", summary.Warnings),
		logging.Int64("errors", summary.Errors),
		logging.Bool("ok", runErr == nil),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	return summary, runErr
}

// runPreflightChecks fails the run on a local problem. Index reachability is
// only checked when a transmit stage is in handlers, and an unreachable index is
// left for the transmitter to report as a transport failure.
func (r *Runner) runPreflightChecks(ctx context.Context, logger *slog.Logger, handlers []stage.Handler) error {
	var failures []string
	for _, res := range preflight.RunLocal(ctx, r.cfg, r.store) {
		if res.Passed {
			logPreflightPassed(logger, res)
			continue
		}
		logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", res.Name),
			logging.String("detail", res.Detail),
			logging.String(logging.FieldErrorHint, "fix the reported issue and rerun"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", res.Name, res.Detail))
	}
	if len(failures) > 0 {
		return services.Wrap(services.ErrConfiguration, "workflow", "preflight", strings.Join(failures, "; "), nil)
	}

	metadata, supplemental := false, false
	for _, h := range handlers {
		switch h.Name() {
		case stage.NameTransmit:
			metadata = true
		case stage.NameTransmitSupplemental:
			supplemental = true
		}
	}
	for _, res := range preflight.RunIndex(ctx, r.cfg, metadata, supplemental) {
		if res.Passed {
			logPreflightPassed(logger, res)
			continue
		}
		logging.WarnWithContext(logger, "index service unreachable before transmission", "preflight_index_unreachable",
			logging.String("check", res.Name),
			logging.String("detail", res.Detail),
			logging.String(logging.FieldErrorHint, "check index.endpoint and network connectivity"),
			logging.String(logging.FieldImpact, "earlier stages still run; transmission aborts if the service stays down"),
		)
	}
	return nil
}

func logPreflightPassed(logger *slog.Logger, res preflight.Result) {
	logger.Debug("preflight check passed",
		logging.String("check", res.Name),
		logging.String("detail", res.Detail),
		logging.String(logging.FieldEventType, "preflight_passed"),
	)
}

func (r *Runner) recordLedgerMetrics(ctx context.Context, logger *slog.Logger) {
	if r.metrics == nil {
		return
	}
	stats, err := r.store.Stats(context.WithoutCancel(ctx))
	if err != nil {
		logger.Warn("failed to read ledger stats", logging.Error(err))
	} else {
		byStatus := make(map[string]int, len(stats.Transmission))
		for status, n := range stats.Transmission {
			byStatus[string(status)] = n
		}
		r.metrics.LedgerRows(byStatus)
	}
	r.metrics.RunFinished(time.Now())
	if err := r.metrics.WriteTextfile(r.cfg.Metrics.Textfile); err != nil {
		logger.Warn("failed to write metrics textfile",
			logging.String("path", r.cfg.Metrics.Textfile),
			logging.Error(err),
		)
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrTransport):
		return "check index.endpoint and network connectivity, then rerun"
	case errors.Is(err, services.ErrConfiguration):
		return "fix the configuration or schema files, then rerun"
	default:
		return "rerun once the cause is resolved"
	}
}
