package transform

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"metaledger/internal/document"
	"metaledger/internal/keyhash"
	"metaledger/internal/ledger"
	"metaledger/internal/logging"
	"metaledger/internal/metrics"
	"metaledger/internal/services"
	"metaledger/internal/stage"
)

// Outcome labels tallied by the transformer.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeError     = "error"
)

// Store is the slice of the ledger the transformer uses.
type Store interface {
	TransformationCandidates(ctx context.Context) ([]*ledger.Record, error)
	SaveTransformation(ctx context.Context, id string, tf ledger.Transformation) (bool, error)
	UpsertSupplemental(ctx context.Context, ex ledger.SupplementalExtraction) (ledger.Outcome, error)
	RetireSupplemental(ctx context.Context, keyHash string, at time.Time) (bool, error)
}

// Stage transforms every Active, source-validated row.
type Stage struct {
	Store   Store
	Mapping *Mapping
	// TargetKey derives the target key; rows whose target lacks a key field
	// reuse the source key.
	TargetKey keyhash.KeySpec
	Logger    *slog.Logger
	Workers   int
	Metrics   *metrics.Recorder
	Now       func() time.Time
}

func (s *Stage) Name() string { return stage.NameTransform }

func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.Mapping == nil {
		return stage.Unhealthy(stage.NameTransform, "target mapping not loaded")
	}
	return stage.Healthy(stage.NameTransform)
}

func (s *Stage) Run(ctx context.Context) (stage.Summary, error) {
	started := time.Now()
	if s.Mapping == nil {
		return stage.Summary{}, services.Wrap(services.ErrConfiguration, stage.NameTransform, "load mapping", "target mapping not loaded", nil)
	}
	ctx = services.WithStage(ctx, stage.NameTransform)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(s.Logger, stage.NameTransform))

	records, err := s.Store.TransformationCandidates(ctx)
	if err != nil {
		return stage.Summary{}, services.Wrap(services.ErrTransient, stage.NameTransform, "select candidates", "", err)
	}
	logger.Info("transformation started", logging.Int("candidates", len(records)), logging.String(logging.FieldEventType, "stage_start"))

	var tally stage.Tally
	err = stage.ForEach(ctx, s.Workers, records, func(ctx context.Context, rec *ledger.Record) error {
		label := s.transform(ctx, logger, rec)
		tally.Add(label)
		s.Metrics.Transformed(label)
		return nil
	})
	summary := tally.Summary(stage.NameTransform, started)
	logger.Info("transformation finished",
		logging.Outcomes(summary.Counts),
		logging.Duration("duration", summary.Duration),
		logging.String(logging.FieldEventType, "stage_complete"),
	)
	return summary, err
}

func (s *Stage) transform(ctx context.Context, logger *slog.Logger, rec *ledger.Record) string {
	logger = logger.With(logging.RecordID(rec.ID), logging.KeyHash(rec.SourceKeyHash))
	now := s.now()

	target := s.Mapping.Map(rec.SourceMetadata)
	hash, err := keyhash.ContentHash(target)
	if err != nil {
		logging.ErrorWithContext(logger, "target hash failed", "transform_failed", logging.Error(err))
		return OutcomeError
	}

	key := keyhash.Key{Value: rec.SourceKey, Hash: rec.SourceKeyHash}
	if len(s.TargetKey.Fields) > 0 {
		derived, err := keyhash.DeriveKey(target, s.TargetKey)
		switch {
		case err == nil:
			key = derived
		case errors.Is(err, keyhash.ErrMissingKeyField):
			logger.Debug("target key incomplete, using source key", logging.Error(err))
		default:
			logging.ErrorWithContext(logger, "target key derivation failed", "transform_failed", logging.Error(err))
			return OutcomeError
		}
	}

	changed, err := s.Store.SaveTransformation(ctx, rec.ID, ledger.Transformation{
		Metadata:      target,
		Key:           key.Value,
		KeyHash:       key.Hash,
		Hash:          hash,
		TransformedAt: now,
	})
	if err != nil {
		logging.ErrorWithContext(logger, "transformation not saved", "transform_store_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "row will be retried by the next transform run"),
		)
		return OutcomeError
	}

	if supplemental := s.Mapping.Supplemental(rec.SourceMetadata); len(supplemental) > 0 {
		if err := s.storeSupplemental(ctx, rec, supplemental, now); err != nil {
			logging.WarnWithContext(logger, "supplemental record not saved", "supplemental_store_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "unmapped fields will not be sent until the next transform run"),
			)
		}
	} else if retired, err := s.Store.RetireSupplemental(ctx, rec.SourceKeyHash, now); err != nil {
		logging.WarnWithContext(logger, "stale supplemental record not retired", "supplemental_retire_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "previous unmapped fields may still be sent"),
		)
	} else if retired {
		logger.Debug("supplemental record retired")
	}

	if changed {
		logger.Debug("target changed", logging.String("target_hash", hash))
		return OutcomeChanged
	}
	return OutcomeUnchanged
}

func (s *Stage) storeSupplemental(ctx context.Context, rec *ledger.Record, doc document.Document, now time.Time) error {
	hash, err := keyhash.ContentHash(doc)
	if err != nil {
		return err
	}
	_, err = s.Store.UpsertSupplemental(ctx, ledger.SupplementalExtraction{
		RecordID:      rec.ID,
		Metadata:      doc,
		Key:           rec.SourceKey,
		KeyHash:       rec.SourceKeyHash,
		Hash:          hash,
		ExtractedAt:   rec.ExtractedAt,
		TransformedAt: now,
	})
	return err
}

func (s *Stage) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
