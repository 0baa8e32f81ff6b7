package logging

import (
	"context"
	"log/slog"

	"metaledger/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldRecordID is the standardized structured logging key for ledger row identifiers.
	FieldRecordID = "record_id"
	// FieldKeyHash is the standardized structured logging key for source or target key hashes.
	FieldKeyHash = "key_hash"
	// FieldRunID is the standardized structured logging key for workflow run correlation identifiers.
	FieldRunID = "run_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldImpact states what a warning means for the ledger.
	FieldImpact = "impact"
	// FieldStatusCode carries an index service response code.
	FieldStatusCode = "status_code"
	// FieldOutcomes groups a stage's outcome tallies.
	FieldOutcomes = "outcomes"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if id, ok := services.RecordIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRecordID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, len(fields))
	for i, field := range fields {
		args[i] = field
	}
	return logger.With(args...)
}
