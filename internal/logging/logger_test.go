package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"metaledger/internal/config"
	"metaledger/internal/logging"
	"metaledger/internal/services"
)

func newFileLogger(t *testing.T, format, level string) (*logging.Options, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), format+".log")
	return &logging.Options{Format: format, Level: level, Outputs: []string{path}}, path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func decodeJSONLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &entry); err != nil {
		t.Fatalf("decode json log %q: %v", line, err)
	}
	return entry
}

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = "console"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("ledger opened", logging.RecordID("0b6f7c1e-77aa-4c0e-9d7e-1f7a5b3c2d10"))

	entry := decodeJSONLine(t, readLog(t, cfg.LogPath()))
	if entry["msg"] != "ledger opened" || entry["service"] != "metaledger" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["record_id"] != "0b6f7c1e-77aa-4c0e-9d7e-1f7a5b3c2d10" {
		t.Fatalf("expected full record id in file log, got %v", entry["record_id"])
	}
	if ts, _ := entry["ts"].(string); len(ts) != len("2006-01-02T15:04:05.000Z") {
		t.Fatalf("expected fixed-width timestamp, got %q", ts)
	}
}

func TestConsoleLoggerRendersScopeAndShortIdentifiers(t *testing.T) {
	opts, path := newFileLogger(t, "console", "info")
	logger, err := logging.New(*opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "transmit").Info("record transmitted",
		logging.StageName("transmit-supplemental"),
		logging.RecordID("0b6f7c1e-77aa-4c0e-9d7e-1f7a5b3c2d10"),
		logging.KeyHash("2e08c9810d5cb3127761ec4a974b2d5d"),
		logging.StatusCode(201),
		logging.String("body", "two words"),
	)
	logger.Debug("hidden")

	line := readLog(t, path)
	for _, want := range []string{
		" INFO  transmit/transmit-supplemental: record transmitted",
		" rec=0b6f7c1e ",
		" key=2e08c9810d5c ",
		"status_code=201",
		`body="two words"`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	for _, unwanted := range []string{"hidden", ".go:", "component=", "record_id="} {
		if strings.Contains(line, unwanted) {
			t.Fatalf("did not expect %q in %q", unwanted, line)
		}
	}
}

func TestConsoleLoggerBracketsStageOutcomes(t *testing.T) {
	opts, path := newFileLogger(t, "console", "info")
	logger, err := logging.New(*opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "extract").Info("extraction finished",
		logging.Outcomes(map[string]int{"unchanged": 4, "inserted": 2, "superseded": 1}),
		logging.Duration("duration", 1500*time.Millisecond),
	)

	line := readLog(t, path)
	if !strings.Contains(line, "extract: extraction finished [inserted=2 superseded=1 unchanged=4] duration=1.5s") {
		t.Fatalf("unexpected outcome rendering %q", line)
	}
}

func TestConsoleWarningCarriesHintAndImpact(t *testing.T) {
	opts, path := newFileLogger(t, "console", "info")
	logger, err := logging.New(*opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(logger, "record rejected", "transmission_rejected",
		logging.StatusCode(400),
		logging.String(logging.FieldErrorHint, "fix the payload"),
	)

	lines := strings.Split(strings.TrimRight(readLog(t, path), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected message, hint and impact lines, got %q", lines)
	}
	if !strings.HasSuffix(lines[0], "status_code=400 (transmission_rejected)") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if lines[1] != "    hint: fix the payload" {
		t.Fatalf("unexpected hint line %q", lines[1])
	}
	if lines[2] != "    impact: record left for a later run" {
		t.Fatalf("unexpected impact line %q", lines[2])
	}
}

func TestJSONLoggerShapesDomainFields(t *testing.T) {
	opts, path := newFileLogger(t, "json", "warning")
	logger, err := logging.New(*opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logging.ErrorWithContext(logger, "transmission failed", "transport_failure",
		logging.Error(errors.New("connection refused")),
		logging.Outcomes(map[string]int{"failed": 1}),
		logging.Duration("duration", 250*time.Millisecond),
	)

	entry := decodeJSONLine(t, readLog(t, path))
	if entry["level"] != "error" || entry["msg"] != "transmission failed" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["event_type"] != "transport_failure" || entry["error_hint"] != "check logs for details" {
		t.Fatalf("expected enforced context fields, got %v", entry)
	}
	if entry["error"] != "connection refused" {
		t.Fatalf("unexpected error field %v", entry["error"])
	}
	if entry["duration_ms"] != 250.0 {
		t.Fatalf("expected duration_ms=250, got %v", entry["duration_ms"])
	}
	outcomes, ok := entry["outcomes"].(map[string]any)
	if !ok || outcomes["failed"] != 1.0 {
		t.Fatalf("expected nested outcomes, got %v", entry["outcomes"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsRunStageAndRecord(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithStage(ctx, "validate-source")
	ctx = services.WithRecordID(ctx, "rec-9")

	consoleOpts, consolePath := newFileLogger(t, "console", "info")
	jsonOpts, jsonPath := newFileLogger(t, "json", "info")
	for _, opts := range []*logging.Options{consoleOpts, jsonOpts} {
		logger, err := logging.New(*opts)
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		logging.WithContext(ctx, logger).Info("validated")
	}

	console := readLog(t, consolePath)
	if !strings.Contains(console, "validate-source: validated rec=rec-9") {
		t.Fatalf("unexpected console line %q", console)
	}
	if strings.Contains(console, "run-1") {
		t.Fatalf("expected run id to stay out of console output, got %q", console)
	}

	entry := decodeJSONLine(t, readLog(t, jsonPath))
	for key, want := range map[string]string{"run_id": "run-1", "stage": "validate-source", "record_id": "rec-9"} {
		if entry[key] != want {
			t.Fatalf("%s = %v, want %q", key, entry[key], want)
		}
	}
}

func TestConsoleGroupsApplyOnlyToLaterAttrs(t *testing.T) {
	opts, path := newFileLogger(t, "console", "info")
	logger, err := logging.New(*opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.With(logging.String("schema", "target")).
		WithGroup("field").
		With(logging.String("path", "Course.CourseCode")).
		Info("requirement missing", logging.String("level", "Required"))

	line := readLog(t, path)
	for _, want := range []string{" schema=target", " field.path=Course.CourseCode", " field.level=Required"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}
