package ringbus

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting bus metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus; see the prommetrics package.
type MetricsCollector interface {
	// RecordWait is called after a producer had to idle for a full ring.
	RecordWait(p Pipeline, duration time.Duration)

	// RecordTaskFailure is called when a consumer reports a failed task.
	RecordTaskFailure(p Pipeline, err error)

	// RecordClose is called once when the bus is closed. released is the
	// number of queues released, err joins the swallowed release errors.
	RecordClose(released int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordWait(Pipeline, time.Duration) {}
func (NoopMetricsCollector) RecordTaskFailure(Pipeline, error)  {}
func (NoopMetricsCollector) RecordClose(int, error)             {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	WaitCount      atomic.Int64
	WaitTotalNanos atomic.Int64
	TaskFailures   atomic.Int64
	CloseCount     atomic.Int64
	CloseReleased  atomic.Int64
	CloseErrors    atomic.Int64

	failures [numPipelines]atomic.Int64
}

// RecordWait implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWait(_ Pipeline, duration time.Duration) {
	b.WaitCount.Add(1)
	b.WaitTotalNanos.Add(duration.Nanoseconds())
}

// RecordTaskFailure implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTaskFailure(p Pipeline, _ error) {
	b.TaskFailures.Add(1)
	if p.Valid() {
		b.failures[p].Add(1)
	}
}

// RecordClose implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClose(released int, err error) {
	b.CloseCount.Add(1)
	b.CloseReleased.Add(int64(released))
	if err != nil {
		b.CloseErrors.Add(1)
	}
}

// Failures returns the failure count recorded for p.
func (b *BasicMetricsCollector) Failures(p Pipeline) int64 {
	if !p.Valid() {
		return 0
	}
	return b.failures[p].Load()
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		WaitCount:     b.WaitCount.Load(),
		WaitAvgNanos:  b.getAvgWaitNanos(),
		TaskFailures:  b.TaskFailures.Load(),
		CloseCount:    b.CloseCount.Load(),
		CloseReleased: b.CloseReleased.Load(),
		CloseErrors:   b.CloseErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgWaitNanos() int64 {
	count := b.WaitCount.Load()
	if count == 0 {
		return 0
	}
	return b.WaitTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	WaitCount     int64
	WaitAvgNanos  int64
	TaskFailures  int64
	CloseCount    int64
	CloseReleased int64
	CloseErrors   int64
}
