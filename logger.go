package spfresh

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with index-specific helpers.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithHead adds a head field to the logger.
func (l *Logger) WithHead(head uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("head", head),
	}
}

// LogBuild logs a build.
func (l *Logger) LogBuild(ctx context.Context, vectors, heads int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"vectors", vectors,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build completed",
			"vectors", vectors,
			"heads", heads,
			"elapsed", elapsed,
		)
	}
}

// LogAdd logs an add batch.
func (l *Logger) LogAdd(ctx context.Context, count int, staged bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"count", count,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "add completed",
			"count", count,
			"staged", staged,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound, heads int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
			"heads", heads,
		)
	}
}

// LogSave logs a snapshot save.
func (l *Logger) LogSave(ctx context.Context, version uint64, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot save failed",
			"version", version,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"version", version,
			"bytes", bytes,
		)
	}
}

// LogLoad logs a snapshot load.
func (l *Logger) LogLoad(ctx context.Context, version uint64, vectors int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot load failed",
			"version", version,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot loaded",
			"version", version,
			"vectors", vectors,
		)
	}
}

// LogSplit logs a posting list split.
func (l *Logger) LogSplit(ctx context.Context, head uint32, size int, into [2]uint32, err error) {
	if err != nil {
		l.WarnContext(ctx, "posting split failed",
			"head", head,
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "posting split",
			"head", head,
			"size", size,
			"left", into[0],
			"right", into[1],
		)
	}
}
