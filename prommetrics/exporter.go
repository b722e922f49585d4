// Package prommetrics exports bus metrics to Prometheus.
//
// An Exporter is both a ringbus.MetricsCollector, recording wait, failure
// and close events as they happen, and a prometheus.Collector that reads
// every shard's positions from the attached bus at scrape time.
package prommetrics

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/ringbus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "ringbus"

// Exporter implements ringbus.MetricsCollector and prometheus.Collector.
type Exporter struct {
	bus atomic.Pointer[ringbus.Bus]

	waits       *prometheus.HistogramVec
	failures    *prometheus.CounterVec
	closes      prometheus.Counter
	closeErrors prometheus.Counter

	capacity  *prometheus.Desc
	claimed   *prometheus.Desc
	published *prometheus.Desc
	retired   *prometheus.Desc
	lag       *prometheus.Desc
	listeners *prometheus.Desc

	mu    sync.Mutex
	stats []ringbus.ShardStats
}

var (
	_ ringbus.MetricsCollector = (*Exporter)(nil)
	_ prometheus.Collector     = (*Exporter)(nil)
)

// New creates an exporter. An empty namespace means DefaultNamespace.
func New(namespace string) *Exporter {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	labels := []string{"pipeline", "shard"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pipeline", name), help, labels, nil)
	}

	return &Exporter{
		waits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "producer_wait_seconds",
			Help:      "Time producers spent waiting for a free slot",
			Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
		}, []string{"pipeline"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_failures_total",
			Help:      "Total number of tasks whose processing failed",
		}, []string{"pipeline"}),
		closes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closes_total",
			Help:      "Total number of bus closes",
		}),
		closeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "close_errors_total",
			Help:      "Total number of closes that swallowed release errors",
		}),
		capacity:  desc("capacity", "Ring capacity in slots"),
		claimed:   desc("claimed_position", "Producer claim cursor"),
		published: desc("published_position", "Contiguous producer publish frontier"),
		retired:   desc("retired_position", "Position of the slowest consumer stage"),
		lag:       desc("lag", "Published but not yet retired tasks"),
		listeners: desc("listeners", "Fan-out members"),
	}
}

// Attach makes Collect report b's positions. Passing nil detaches.
func (e *Exporter) Attach(b *ringbus.Bus) { e.bus.Store(b) }

// Register registers the exporter with reg.
func (e *Exporter) Register(reg prometheus.Registerer) error {
	return reg.Register(e)
}

// RecordWait implements ringbus.MetricsCollector.
func (e *Exporter) RecordWait(p ringbus.Pipeline, d time.Duration) {
	e.waits.WithLabelValues(p.String()).Observe(d.Seconds())
}

// RecordTaskFailure implements ringbus.MetricsCollector.
func (e *Exporter) RecordTaskFailure(p ringbus.Pipeline, _ error) {
	e.failures.WithLabelValues(p.String()).Inc()
}

// RecordClose implements ringbus.MetricsCollector.
func (e *Exporter) RecordClose(_ int, err error) {
	e.closes.Inc()
	if err != nil {
		e.closeErrors.Inc()
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	e.waits.Describe(ch)
	e.failures.Describe(ch)
	e.closes.Describe(ch)
	e.closeErrors.Describe(ch)
	for _, d := range []*prometheus.Desc{e.capacity, e.claimed, e.published, e.retired, e.lag, e.listeners} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.waits.Collect(ch)
	e.failures.Collect(ch)
	e.closes.Collect(ch)
	e.closeErrors.Collect(ch)

	b := e.bus.Load()
	if b == nil || b.Closed() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = b.AppendStats(e.stats[:0])
	for _, s := range e.stats {
		labels := []string{s.Pipeline.String(), strconv.Itoa(s.Shard)}
		gauge := func(d *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
		}
		gauge(e.capacity, float64(s.Capacity))
		gauge(e.claimed, float64(s.Claimed))
		gauge(e.published, float64(s.Published))
		gauge(e.retired, float64(s.Retired))
		gauge(e.lag, float64(s.Lag))
		if s.Listeners > 0 || s.Pipeline.Topology() == ringbus.TopologyBroadcast {
			gauge(e.listeners, float64(s.Listeners))
		}
	}
}

// Handler serves the metrics gathered from reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
