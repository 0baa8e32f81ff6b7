package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// jsonTimeLayout matches the fixed-width stamps the ledger stores, at
// millisecond precision.
const jsonTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// newJSONHandler writes one object per line for log shippers. Durations are
// emitted as <key>_ms floats and every line names the service.
func newJSONHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	})
	return handler.WithAttrs([]slog.Attr{slog.String("service", "metaledger")})
}

func replaceJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch attr.Key {
		case slog.TimeKey:
			if attr.Value.Kind() == slog.KindTime {
				return slog.String("ts", attr.Value.Time().UTC().Format(jsonTimeLayout))
			}
			attr.Key = "ts"
			return attr
		case slog.LevelKey:
			return slog.String("level", strings.ToLower(attr.Value.String()))
		case slog.SourceKey:
			if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
				return slog.String("caller", fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
			}
			return attr
		}
	}
	if attr.Value.Kind() == slog.KindDuration {
		ms := float64(attr.Value.Duration().Microseconds()) / 1000
		return slog.Float64(attr.Key+"_ms", ms)
	}
	return attr
}
