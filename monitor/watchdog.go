// Package monitor watches bus pipelines for stalled consumers.
//
// A shard is stalled when it has published tasks that no consumer stage has
// retired for longer than the stall threshold. Stalls are reported to an
// optional handler on every check and logged at a limited rate.
package monitor

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/ringbus"
)

const (
	DefaultInterval   = time.Second
	DefaultStallAfter = 5 * time.Second
)

// Stall describes one stalled shard.
type Stall struct {
	Stats ringbus.ShardStats
	For   time.Duration
}

type shardKey struct {
	pipeline ringbus.Pipeline
	shard    int
}

type progress struct {
	retired int64
	since   time.Time
}

// Watchdog samples bus stats and detects stalls.
type Watchdog struct {
	bus        *ringbus.Bus
	interval   time.Duration
	stallAfter time.Duration
	limiter    *rate.Limiter
	logger     *ringbus.Logger
	onStall    func(Stall)

	last  map[shardKey]progress
	stats []ringbus.ShardStats
}

// Option configures a Watchdog.
type Option func(*Watchdog)

// WithInterval sets how often Run checks the bus.
func WithInterval(d time.Duration) Option {
	return func(w *Watchdog) { w.interval = d }
}

// WithStallAfter sets how long retirement may stand still while tasks are
// pending.
func WithStallAfter(d time.Duration) Option {
	return func(w *Watchdog) { w.stallAfter = d }
}

// WithLogRate limits stall log lines to r per second with the given burst.
func WithLogRate(r rate.Limit, burst int) Option {
	return func(w *Watchdog) { w.limiter = rate.NewLimiter(r, burst) }
}

// WithStallHandler is called for every stall found by a check.
func WithStallHandler(fn func(Stall)) Option {
	return func(w *Watchdog) { w.onStall = fn }
}

// WithLogger overrides the bus logger.
func WithLogger(l *ringbus.Logger) Option {
	return func(w *Watchdog) { w.logger = l }
}

// New creates a watchdog for b.
func New(b *ringbus.Bus, opts ...Option) *Watchdog {
	w := &Watchdog{
		bus:        b,
		interval:   DefaultInterval,
		stallAfter: DefaultStallAfter,
		limiter:    rate.NewLimiter(rate.Every(10*time.Second), 1),
		logger:     b.Logger(),
		last:       make(map[shardKey]progress),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Check samples every shard once at now and returns the stalled ones.
// Check is not safe for concurrent use.
func (w *Watchdog) Check(ctx context.Context, now time.Time) []Stall {
	if w.bus.Closed() {
		return nil
	}
	w.stats = w.bus.AppendStats(w.stats[:0])

	var stalls []Stall
	for _, s := range w.stats {
		k := shardKey{pipeline: s.Pipeline, shard: s.Shard}
		prev, seen := w.last[k]
		if !seen || s.Retired != prev.retired || s.Lag == 0 {
			w.last[k] = progress{retired: s.Retired, since: now}
			continue
		}
		if d := now.Sub(prev.since); d >= w.stallAfter {
			stalls = append(stalls, Stall{Stats: s, For: d})
		}
	}

	for _, st := range stalls {
		if w.onStall != nil {
			w.onStall(st)
		}
		if w.limiter.AllowN(now, 1) {
			w.logger.LogStall(ctx, st.Stats, st.For)
		}
	}
	return stalls
}

// Run checks the bus every interval until ctx ends or the bus closes.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if w.bus.Closed() {
				return ringbus.ErrClosed
			}
			w.Check(ctx, now)
		}
	}
}
