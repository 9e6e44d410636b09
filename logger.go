package rowquant

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with rowquant-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithKind adds a kind (encoding format) field to the logger.
func (l *Logger) WithKind(kind Kind) *Logger {
	return &Logger{
		Logger: l.Logger.With("kind", string(kind)),
	}
}

// WithShape adds rows and cols fields to the logger.
func (l *Logger) WithShape(rows, cols int) *Logger {
	return &Logger{
		Logger: l.Logger.With("rows", rows, "cols", cols),
	}
}

// LogEncode logs an encode call.
func (l *Logger) LogEncode(ctx context.Context, kind Kind, rows, cols int, d time.Duration, err error) {
	l.logCall(ctx, "encode", kind, rows, cols, d, err)
}

// LogDecode logs a decode call.
func (l *Logger) LogDecode(ctx context.Context, kind Kind, rows, cols int, d time.Duration, err error) {
	l.logCall(ctx, "decode", kind, rows, cols, d, err)
}

func (l *Logger) logCall(ctx context.Context, op string, kind Kind, rows, cols int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"kind", string(kind),
			"rows", rows,
			"cols", cols,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, op+" completed",
			"kind", string(kind),
			"rows", rows,
			"cols", cols,
			"duration", d,
		)
	}
}

// LogAcquire logs a rejected resource acquisition.
func (l *Logger) LogAcquire(ctx context.Context, resource string, amount int64, err error) {
	l.WarnContext(ctx, "resource acquisition rejected",
		"resource", resource,
		"amount", amount,
		"error", err,
	)
}
