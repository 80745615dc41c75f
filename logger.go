package behold

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/behold/indexer"
	"github.com/hupe1980/behold/model"
)

// Logger wraps slog.Logger with behold-specific context.
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
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithLabel adds a label field to the logger.
func (l *Logger) WithLabel(label string) *Logger {
	return &Logger{Logger: l.Logger.With("label", label)}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{Logger: l.Logger.With("count", count)}
}

// LogSearch logs a completed query.
func (l *Logger) LogSearch(ctx context.Context, resp *model.Response) {
	attrs := []any{"size", resp.Size}
	if r := resp.BeholdResult; r != nil {
		attrs = append(attrs, "candidates", len(r.Candidates), "valid", r.Valid)
		if r.Top != nil {
			attrs = append(attrs, "label", r.Top.Label, "score", r.Top.Score)
		}
	}
	if v := resp.VoyResult; v != nil {
		attrs = append(attrs,
			"fallback_label", v.Label,
			"fallback_valid", v.Valid,
			"fallback_similarity", v.Similarity,
		)
	}
	l.DebugContext(ctx, "search completed", attrs...)
}

// LogReload logs a catalog reload.
func (l *Logger) LogReload(ctx context.Context, records, signatures int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "reload failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "catalog loaded",
			"records", records,
			"signatures", signatures,
		)
	}
}

// LogBuild logs an index build pass.
func (l *Logger) LogBuild(ctx context.Context, stats indexer.BuildStats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"seen", stats.Seen,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build completed",
			"seen", stats.Seen,
			"skipped", stats.Skipped,
			"empty", stats.Empty,
			"indexed", stats.Indexed,
		)
	}
}
