package extract

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"metaledger/internal/config"
	"metaledger/internal/document"
	"metaledger/internal/keyhash"
	"metaledger/internal/ledger"
	"metaledger/internal/logging"
	"metaledger/internal/metrics"
	"metaledger/internal/rules"
	"metaledger/internal/services"
	"metaledger/internal/source"
	"metaledger/internal/stage"
)

// Outcome labels tallied by the extractor, in addition to the ledger
// outcomes inserted, superseded, and unchanged.
const (
	OutcomeSkipped = "skipped"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Store is the slice of the ledger the extractor uses.
type Store interface {
	Upsert(ctx context.Context, ex ledger.Extraction) (ledger.Outcome, *ledger.Record, error)
}

// Extractor prepares raw records and upserts them.
type Extractor struct {
	Store      Store
	SystemName string
	Rules      []rules.Rule
	KeySpec    keyhash.KeySpec
	Logger     *slog.Logger
	Workers    int
	Metrics    *metrics.Recorder
	Now        func() time.Time
}

// NewFromConfig wires an extractor from the [source], [keys], [[overrides]],
// and [workflow] sections.
func NewFromConfig(cfg *config.Config, store Store, logger *slog.Logger, rec *metrics.Recorder) (*Extractor, error) {
	overrides, err := rules.FromConfig(cfg.Overrides)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stage.NameExtract, "load overrides", "", err)
	}
	return &Extractor{
		Store:      store,
		SystemName: cfg.Source.SystemName,
		Rules:      overrides,
		KeySpec:    keyhash.KeySpec{Fields: cfg.Keys.SourceFields, Separator: cfg.Keys.Separator},
		Logger:     logger,
		Workers:    cfg.Workflow.Workers,
		Metrics:    rec,
	}, nil
}

type prepared struct {
	position int
	doc      document.Document
	key      keyhash.Key
	hash     string
}

// Run reads the whole feed and upserts it. Unreadable records and records
// without a complete key are logged and counted; only a failing connector or
// a cancelled context returns an error.
func (e *Extractor) Run(ctx context.Context, conn source.Connector) (stage.Summary, error) {
	started := time.Now()
	ctx = services.WithStage(ctx, stage.NameExtract)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(e.Logger, stage.NameExtract))
	extractedAt := e.now().UTC()

	var tally stage.Tally
	groups, order, err := e.collect(ctx, logger, conn, &tally)
	if err != nil {
		return tally.Summary(stage.NameExtract, started), err
	}
	logger.Info("extraction started",
		logging.String("source", conn.Name()),
		logging.Int("keys", len(order)),
		logging.String(logging.FieldEventType, "stage_start"),
	)

	batches := make([][]prepared, 0, len(order))
	for _, hash := range order {
		batches = append(batches, groups[hash])
	}
	err = stage.ForEach(ctx, e.Workers, batches, func(ctx context.Context, batch []prepared) error {
		for _, rec := range batch {
			label := e.upsert(ctx, logger, rec, extractedAt)
			tally.Add(label)
			e.Metrics.Extracted(label)
		}
		return nil
	})

	summary := tally.Summary(stage.NameExtract, started)
	logger.Info("extraction finished",
		logging.Outcomes(summary.Counts),
		logging.Duration("duration", summary.Duration),
		logging.String(logging.FieldEventType, "stage_complete"),
	)
	return summary, err
}

// Stage binds the extractor to a connector so it can run as a workflow stage.
func (e *Extractor) Stage(conn source.Connector) stage.Handler {
	return boundStage{extractor: e, conn: conn}
}

func (e *Extractor) collect(ctx context.Context, logger *slog.Logger, conn source.Connector, tally *stage.Tally) (map[string][]prepared, []string, error) {
	groups := make(map[string][]prepared)
	var order []string
	position := 0
	for doc, err := range conn.Records(ctx) {
		position++
		if err != nil {
			var recErr *source.RecordError
			if errors.As(err, &recErr) {
				logging.WarnWithContext(logger, "unreadable source record", "source_record_invalid",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "fix the record in the source feed"),
					logging.String(logging.FieldImpact, "record skipped"),
				)
				tally.Add(OutcomeInvalid)
				e.Metrics.Extracted(OutcomeInvalid)
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			return nil, nil, services.Wrap(services.ErrConfiguration, stage.NameExtract, "read source", conn.Name(), err)
		}

		rec, err := e.prepare(doc)
		if err != nil {
			var missing *keyhash.MissingKeyFieldError
			if errors.As(err, &missing) {
				logging.WarnWithContext(logger, "source record missing key field", "source_key_missing",
					logging.Int("position", position),
					logging.String("field", missing.Field),
					logging.String(logging.FieldErrorHint, "populate the key fields in the source feed"),
					logging.String(logging.FieldImpact, "record skipped"),
				)
				tally.Add(OutcomeSkipped)
				e.Metrics.Extracted(OutcomeSkipped)
				continue
			}
			logging.ErrorWithContext(logger, "source record not prepared", "source_record_failed",
				logging.Int("position", position),
				logging.Error(err),
			)
			tally.Add(OutcomeError)
			e.Metrics.Extracted(OutcomeError)
			continue
		}
		rec.position = position
		if _, seen := groups[rec.key.Hash]; !seen {
			order = append(order, rec.key.Hash)
		}
		groups[rec.key.Hash] = append(groups[rec.key.Hash], rec)
	}
	return groups, order, nil
}

// prepare stamps, rewrites, keys, and hashes one raw record.
func (e *Extractor) prepare(raw document.Document) (prepared, error) {
	doc := raw.Clone()
	if doc == nil {
		doc = document.Document{}
	}
	if e.SystemName != "" {
		doc[keyhash.FieldSourceSystem] = e.SystemName
	}
	doc = rules.Apply(doc, e.Rules)

	spec := e.KeySpec
	if len(spec.Fields) == 0 {
		spec = keyhash.DefaultSourceSpec()
	}
	key, err := keyhash.DeriveKey(doc, spec)
	if err != nil {
		return prepared{}, err
	}
	hash, err := keyhash.ContentHash(doc)
	if err != nil {
		return prepared{}, err
	}
	return prepared{doc: doc, key: key, hash: hash}, nil
}

func (e *Extractor) upsert(ctx context.Context, logger *slog.Logger, rec prepared, extractedAt time.Time) string {
	outcome, row, err := e.Store.Upsert(ctx, ledger.Extraction{
		Metadata:    rec.doc,
		Key:         rec.key.Value,
		KeyHash:     rec.key.Hash,
		Hash:        rec.hash,
		ExtractedAt: extractedAt,
	})
	if err != nil {
		logging.ErrorWithContext(logger, "ledger upsert failed", "extract_store_failed",
			logging.Int("position", rec.position),
			logging.KeyHash(rec.key.Hash),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "record is picked up again by the next extract run"),
		)
		return OutcomeError
	}
	if outcome != ledger.OutcomeUnchanged {
		logger.Debug("ledger row written",
			logging.RecordID(row.ID),
			logging.KeyHash(rec.key.Hash),
			logging.String("outcome", string(outcome)),
		)
	}
	return string(outcome)
}

func (e *Extractor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

type boundStage struct {
	extractor *Extractor
	conn      source.Connector
}

func (b boundStage) Name() string { return stage.NameExtract }

func (b boundStage) Run(ctx context.Context) (stage.Summary, error) {
	return b.extractor.Run(ctx, b.conn)
}

func (b boundStage) HealthCheck(context.Context) stage.Health {
	if b.conn == nil {
		return stage.Unhealthy(stage.NameExtract, "no source connector")
	}
	return stage.Healthy(stage.NameExtract)
}
