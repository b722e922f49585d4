package ringbus

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with bus-specific context.
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
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithPipeline adds a pipeline field to the logger.
func (l *Logger) WithPipeline(p Pipeline) *Logger {
	return &Logger{
		Logger: l.Logger.With("pipeline", p.String()),
	}
}

// WithShard adds a shard field to the logger.
func (l *Logger) WithShard(shard int) *Logger {
	return &Logger{
		Logger: l.Logger.With("shard", shard),
	}
}

// WithWorker adds a worker field to the logger.
func (l *Logger) WithWorker(id int) *Logger {
	return &Logger{
		Logger: l.Logger.With("worker", id),
	}
}

// LogOpen logs bus construction.
func (l *Logger) LogOpen(ctx context.Context, pipelines, shards int) {
	l.InfoContext(ctx, "bus opened",
		"pipelines", pipelines,
		"shards", shards,
	)
}

// LogClose logs bus teardown.
func (l *Logger) LogClose(ctx context.Context, released int, err error) {
	if err != nil {
		l.WarnContext(ctx, "bus closed with release errors",
			"released", released,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "bus closed",
			"released", released,
		)
	}
}

// LogTaskFailure logs a task whose processing failed. The cursor has
// already been released.
func (l *Logger) LogTaskFailure(ctx context.Context, p Pipeline, cursor int64, err error) {
	l.ErrorContext(ctx, "task failed",
		"pipeline", p.String(),
		"cursor", cursor,
		"error", err,
	)
}

// LogStall logs a pipeline whose consumers have not advanced.
func (l *Logger) LogStall(ctx context.Context, s ShardStats, stalledFor time.Duration) {
	l.WarnContext(ctx, "pipeline stalled",
		"pipeline", s.Pipeline.String(),
		"shard", s.Shard,
		"lag", s.Lag,
		"capacity", s.Capacity,
		"stalled_for", stalledFor,
	)
}
