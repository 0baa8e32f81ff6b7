package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	consoleTimeLayout = "2006-01-02 15:04:05"
	shortRecordID     = 8
	shortKeyHash      = 12
)

// consoleHandler renders one line per record for operators:
//
//	2026-03-01 12:00:05 WARN  transmit/transmit-supplemental: record rejected rec=1a2b3c4d key=2e08c9810d5c status_code=400 (transmission_rejected)
//	    hint: fix the payload and re-extract
//	    impact: row stays Failed until its content changes
//
// Component and stage form the scope, outcome tallies are bracketed after the
// message, and identifiers are shortened. The run id is left to the JSON
// output.
type consoleHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     slog.Leveler
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newConsoleHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// consoleLine collects the parts of a record before rendering.
type consoleLine struct {
	component string
	stage     string
	recordID  string
	keyHash   string
	eventType string
	hint      string
	impact    string
	outcomes  []kv
	fields    []kv
}

func (l *consoleLine) add(key string, value slog.Value) {
	switch key {
	case FieldComponent:
		l.component = attrString(value)
	case FieldStage:
		l.stage = attrString(value)
	case FieldRecordID:
		l.recordID = attrString(value)
	case FieldKeyHash:
		l.keyHash = attrString(value)
	case FieldEventType:
		l.eventType = attrString(value)
	case FieldErrorHint:
		l.hint = attrString(value)
	case FieldImpact:
		l.impact = attrString(value)
	case FieldRunID:
	default:
		l.fields = append(l.fields, kv{key: key, value: value})
	}
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}

	var line consoleLine
	for _, attr := range h.attrs {
		h.collect(&line, nil, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		h.collect(&line, h.groups, attr)
		return true
	})

	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var buf bytes.Buffer
	buf.Grow(160 + len(line.fields)*24)
	buf.WriteString(timestamp.UTC().Format(consoleTimeLayout))
	buf.WriteByte(' ')
	fmt.Fprintf(&buf, "%-5s ", levelLabel(record.Level))

	if scope := line.scope(); scope != "" {
		buf.WriteString(scope)
		buf.WriteString(": ")
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		buf.WriteString(msg)
	} else {
		buf.WriteString("(no message)")
	}

	if len(line.outcomes) > 0 {
		buf.WriteString(" [")
		for i, item := range line.outcomes {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(item.key)
			buf.WriteByte('=')
			buf.WriteString(formatValue(item.value))
		}
		buf.WriteByte(']')
	}
	if line.recordID != "" {
		buf.WriteString(" rec=")
		buf.WriteString(shorten(line.recordID, shortRecordID))
	}
	if line.keyHash != "" {
		buf.WriteString(" key=")
		buf.WriteString(shorten(line.keyHash, shortKeyHash))
	}
	for _, item := range line.fields {
		buf.WriteByte(' ')
		buf.WriteString(item.key)
		buf.WriteByte('=')
		buf.WriteString(formatValue(item.value))
	}

	if h.addSource {
		if src := record.Source(); src != nil {
			buf.WriteString(" [")
			buf.WriteString(filepath.Base(src.File))
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(src.Line))
			buf.WriteByte(']')
		}
	}

	if record.Level >= slog.LevelWarn {
		if line.eventType != "" {
			buf.WriteString(" (")
			buf.WriteString(line.eventType)
			buf.WriteByte(')')
		}
		if line.hint != "" {
			buf.WriteString("\n    hint: ")
			buf.WriteString(line.hint)
		}
		if line.impact != "" {
			buf.WriteString("\n    impact: ")
			buf.WriteString(line.impact)
		}
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (l *consoleLine) scope() string {
	switch {
	case l.component == "":
		return l.stage
	case l.stage == "" || l.stage == l.component:
		return l.component
	default:
		return l.component + "/" + l.stage
	}
}

// collect routes attr into line. Only top-level attrs are recognised as
// domain fields; anything under a group is flattened to dotted keys.
func (h *consoleHandler) collect(line *consoleLine, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		if len(prefix) == 0 && attr.Key == FieldOutcomes {
			for _, item := range attr.Value.Group() {
				line.outcomes = append(line.outcomes, kv{key: item.Key, value: item.Value.Resolve()})
			}
			return
		}
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		for _, item := range attr.Value.Group() {
			h.collect(line, next, item)
		}
		return
	}
	if len(prefix) > 0 {
		line.fields = append(line.fields, kv{key: strings.Join(append(append([]string(nil), prefix...), attr.Key), "."), value: attr.Value})
		return
	}
	line.add(attr.Key, attr.Value)
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	for i := len(h.groups) - 1; i >= 0; i-- {
		attrs = []slog.Attr{{Key: h.groups[i], Value: slog.GroupValue(attrs...)}}
	}
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

type kv struct {
	key   string
	value slog.Value
}

func shorten(value string, n int) string {
	if len(value) <= n {
		return value
	}
	return value[:n]
}

func attrString(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	default:
		return quoteIfNeeded(attrString(v))
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
