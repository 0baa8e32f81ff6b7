package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"metaledger/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Outputs lists "stdout", "stderr" or file paths. Defaults to stderr so
	// command output on stdout stays parseable.
	Outputs []string
	// Source adds the caller to every line. Debug level always does.
	Source bool
}

// New constructs a logger writing Format to every output.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	addSource := opts.Source || level <= slog.LevelDebug

	outputs := opts.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	writer, err := openWriters(outputs)
	if err != nil {
		return nil, err
	}

	handler, err := newHandler(opts.Format, writer, level, addSource)
	if err != nil {
		return nil, err
	}
	return slog.New(handler), nil
}

// NewFromConfig logs to stderr in the configured format. When a log directory
// is set, metaledger.log additionally receives every line as JSON.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}

	level := parseLevel(cfg.Logging.Level)
	addSource := level <= slog.LevelDebug
	terminal, err := newHandler(cfg.Logging.Format, os.Stderr, level, addSource)
	if err != nil {
		return nil, err
	}
	if cfg.Paths.LogDir == "" {
		return slog.New(terminal), nil
	}

	file, err := openLogFile(cfg.LogPath())
	if err != nil {
		return nil, err
	}
	return slog.New(newFanoutHandler(terminal, newJSONHandler(file, level, addSource))), nil
}

func newHandler(format string, w io.Writer, level slog.Leveler, addSource bool) (slog.Handler, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console":
		return newConsoleHandler(w, level, addSource), nil
	case "json":
		return newJSONHandler(w, level, addSource), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", format)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openWriters(outputs []string) (io.Writer, error) {
	seen := make(map[string]struct{}, len(outputs))
	writers := make([]io.Writer, 0, len(outputs))
	for _, output := range outputs {
		output = strings.TrimSpace(output)
		if output == "" {
			continue
		}
		if _, ok := seen[output]; ok {
			continue
		}
		seen[output] = struct{}{}

		switch output {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			file, err := openLogFile(output)
			if err != nil {
				return nil, err
			}
			writers = append(writers, file)
		}
	}

	switch len(writers) {
	case 0:
		return os.Stderr, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}
