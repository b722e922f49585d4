package ringbus

import (
	"log/slog"

	"github.com/hupe1980/ringbus/ring"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	waitStrategy     ring.WaitStrategy
}

// Option configures Bus construction.
type Option func(*options)

func applyOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	return o
}

// WithMetricsCollector configures a metrics collector for bus events.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &ringbus.BasicMetricsCollector{}
//	bus, _ := ringbus.New(config.Default(), ringbus.WithMetricsCollector(metrics))
//	// ... use bus ...
//	stats := metrics.GetStats()
//	fmt.Printf("Waits: %d, Avg wait: %dns\n", stats.WaitCount, stats.WaitAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := ringbus.NewJSONLogger(slog.LevelInfo)
//	bus, _ := ringbus.New(config.Default(), ringbus.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithWaitStrategy replaces the strategy built from the configuration. Every
// sequence of the bus shares it.
func WithWaitStrategy(ws ring.WaitStrategy) Option {
	return func(o *options) {
		o.waitStrategy = ws
	}
}
