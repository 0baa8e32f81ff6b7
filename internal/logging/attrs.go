package logging

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// RecordID tags a line with a ledger row identifier.
func RecordID(id string) Attr { return slog.String(FieldRecordID, id) }

// KeyHash tags a line with a source or target key hash.
func KeyHash(hash string) Attr { return slog.String(FieldKeyHash, hash) }

// StageName tags a line with a pipeline stage.
func StageName(name string) Attr { return slog.String(FieldStage, name) }

// StatusCode tags a line with an index service response code.
func StatusCode(code int) Attr { return slog.Int(FieldStatusCode, code) }

// Outcomes groups a stage's per-outcome tallies, in label order, under
// FieldOutcomes.
func Outcomes(counts map[string]int) Attr {
	attrs := make([]any, 0, len(counts))
	for _, label := range slices.Sorted(maps.Keys(counts)) {
		attrs = append(attrs, slog.Int(label, counts[label]))
	}
	return slog.Group(FieldOutcomes, attrs...)
}

func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags logger with a component name. A nil logger
// discards.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefault(attrs, FieldEventType, eventType)
	attrs = withDefault(attrs, FieldErrorHint, "check logs for details")
	attrs = withDefault(attrs, FieldImpact, "record left for a later run")
	logger.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}

// ErrorWithContext logs an error that always carries event_type and
// error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefault(attrs, FieldEventType, eventType)
	attrs = withDefault(attrs, FieldErrorHint, "check logs for details")
	logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}

func withDefault(attrs []Attr, key, value string) []Attr {
	if slices.ContainsFunc(attrs, func(a Attr) bool { return a.Key == key }) {
		return attrs
	}
	return append(attrs, slog.String(key, value))
}
