package validate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"metaledger/internal/document"
	"metaledger/internal/ledger"
	"metaledger/internal/logging"
	"metaledger/internal/metrics"
	"metaledger/internal/services"
	"metaledger/internal/stage"
)

// Store is the slice of the ledger the validation stages use.
type Store interface {
	SourceValidationCandidates(ctx context.Context) ([]*ledger.Record, error)
	TargetValidationCandidates(ctx context.Context) ([]*ledger.Record, error)
	MarkSourceValidation(ctx context.Context, id string, passed bool, at time.Time) error
	MarkTargetValidation(ctx context.Context, id string, passed bool, at time.Time) error
}

// Outcome labels tallied by the validation stages.
const (
	OutcomePassed = "passed"
	OutcomeFailed = "failed"
	OutcomeError  = "error"
)

type side struct {
	name       string
	metric     string
	candidates func(Store, context.Context) ([]*ledger.Record, error)
	payload    func(*ledger.Record) document.Document
	mark       func(Store, context.Context, string, bool, time.Time) error
	onFailure  string
}

var sourceSide = side{
	name:       stage.NameValidateSource,
	metric:     "source",
	candidates: Store.SourceValidationCandidates,
	payload:    func(r *ledger.Record) document.Document { return r.SourceMetadata },
	mark:       Store.MarkSourceValidation,
	onFailure:  "record inactivated; fix the source data and re-extract",
}

var targetSide = side{
	name:       stage.NameValidateTarget,
	metric:     "target",
	candidates: Store.TargetValidationCandidates,
	payload:    func(r *ledger.Record) document.Document { return r.TargetMetadata },
	mark:       Store.MarkTargetValidation,
	onFailure:  "record stays active; fix the target mapping and re-run transform",
}

// Stage validates one side of every candidate row.
type Stage struct {
	side    side
	store   Store
	req     *Requirements
	logger  *slog.Logger
	workers int
	metrics *metrics.Recorder
	now     func() time.Time
}

// Option customizes a Stage.
type Option func(*Stage)

// WithWorkers bounds per-record concurrency.
func WithWorkers(n int) Option { return func(s *Stage) { s.workers = n } }

// WithMetrics records outcomes on rec.
func WithMetrics(rec *metrics.Recorder) Option { return func(s *Stage) { s.metrics = rec } }

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(s *Stage) { s.now = now } }

// NewSourceStage validates source payloads. Failures inactivate the row.
func NewSourceStage(store Store, req *Requirements, logger *slog.Logger, opts ...Option) *Stage {
	return newStage(sourceSide, store, req, logger, opts)
}

// NewTargetStage validates target payloads. Failures clear the status and
// keep the row Active.
func NewTargetStage(store Store, req *Requirements, logger *slog.Logger, opts ...Option) *Stage {
	return newStage(targetSide, store, req, logger, opts)
}

func newStage(sd side, store Store, req *Requirements, logger *slog.Logger, opts []Option) *Stage {
	s := &Stage{
		side:    sd,
		store:   store,
		req:     req,
		logger:  logging.NewComponentLogger(logger, sd.name),
		workers: 1,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Stage) Name() string { return s.side.name }

func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.req == nil || len(s.req.Fields(Required)) == 0 {
		return stage.Unhealthy(s.side.name, "no required fields declared")
	}
	return stage.Healthy(s.side.name)
}

// Run validates every candidate once. Per-record store errors are logged and
// tallied; only context cancellation stops the run.
func (s *Stage) Run(ctx context.Context) (stage.Summary, error) {
	started := time.Now()
	ctx = services.WithStage(ctx, s.side.name)
	logger := logging.WithContext(ctx, s.logger)

	if s.req == nil {
		return stage.Summary{}, services.Wrap(services.ErrConfiguration, s.side.name, "load requirements", "no requirement document", nil)
	}
	records, err := s.side.candidates(s.store, ctx)
	if err != nil {
		return stage.Summary{}, services.Wrap(services.ErrTransient, s.side.name, "select candidates", "", err)
	}
	logger.Info("validation started", logging.Int("candidates", len(records)), logging.String(logging.FieldEventType, "stage_start"))

	var tally stage.Tally
	err = stage.ForEach(ctx, s.workers, records, func(ctx context.Context, rec *ledger.Record) error {
		label := s.validate(ctx, rec)
		tally.Add(label)
		s.metrics.Validated(s.side.metric, label)
		return nil
	})
	summary := tally.Summary(s.side.name, started)
	logger.Info("validation finished",
		logging.Outcomes(summary.Counts),
		logging.Duration("duration", summary.Duration),
		logging.String(logging.FieldEventType, "stage_complete"),
	)
	return summary, err
}

func (s *Stage) validate(ctx context.Context, rec *ledger.Record) string {
	ctx = services.WithRecordID(ctx, rec.ID)
	logger := logging.WithContext(ctx, s.logger).With(logging.KeyHash(rec.SourceKeyHash))

	result := Check(s.side.payload(rec), s.req)
	if len(result.MissingRecommended) > 0 {
		logger.Info("recommended fields missing",
			logging.String("fields", strings.Join(result.MissingRecommended, ",")),
			logging.String(logging.FieldEventType, "recommended_missing"),
		)
	}
	if !result.Passed {
		logging.WarnWithContext(logger, "required fields missing", "required_missing",
			logging.String("fields", strings.Join(result.MissingRequired, ",")),
			logging.String(logging.FieldErrorHint, "populate the listed fields upstream"),
			logging.String(logging.FieldImpact, s.side.onFailure),
		)
	}

	if err := s.side.mark(s.store, ctx, rec.ID, result.Passed, s.now()); err != nil {
		logging.ErrorWithContext(logger, "record validation not saved", "validation_store_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("row will be retried by the next %s run", s.side.name)),
		)
		return OutcomeError
	}
	if result.Passed {
		return OutcomePassed
	}
	return OutcomeFailed
}
