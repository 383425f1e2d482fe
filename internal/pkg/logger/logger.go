// Package logger provides structured logging utilities.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with additional context.
type Logger struct {
	*slog.Logger
}

// New creates a new logger with the specified level and format.
// Logs go to stderr so that reports printed on stdout stay machine-readable.
func New(level, format string) *Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter creates a logger that writes to w.
func NewWithWriter(w io.Writer, level, format string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDataset returns a logger with dataset context.
func (l *Logger) WithDataset(name string) *Logger {
	return &Logger{
		Logger: l.With("dataset", name),
	}
}

// WithSplit returns a logger with split context (train, valid, test).
func (l *Logger) WithSplit(split string) *Logger {
	return &Logger{
		Logger: l.With("split", split),
	}
}

// WithPolicy returns a logger with aggregation policy context.
func (l *Logger) WithPolicy(policy string) *Logger {
	return &Logger{
		Logger: l.With("policy", policy),
	}
}

// WithRun returns a logger tagged with a run identifier.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{
		Logger: l.With("run_id", runID),
	}
}

// WithError returns a logger with error context.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.With("error", err.Error()),
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the default logger.
func Default() *Logger {
	return New("info", "text")
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return NewWithWriter(io.Discard, "error", "text")
}
