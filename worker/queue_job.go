package worker

import (
	"context"
	"fmt"

	"github.com/hupe1980/ringbus"
	"github.com/hupe1980/ringbus/ring"
)

// DefaultBatch is the number of tasks a QueueJob drains per Run.
const DefaultBatch = 16

// Handler processes one task in place. A returned error is logged and
// counted; the cursor is released either way.
type Handler[T any] func(ctx context.Context, cursor int64, t *T) error

// QueueJob drains a (queue, sub sequence) pair. It is safe to assign to
// several workers when sub is a multi-consumer sequence.
type QueueJob[T any] struct {
	pipeline ringbus.Pipeline
	queue    *ring.RingQueue[T]
	sub      ring.Sequence
	handle   Handler[T]
	batch    int

	logger  *ringbus.Logger
	metrics ringbus.MetricsCollector

	// fanOut is set when the job joined a broadcast group.
	fanOut *ring.FanOut
}

// JobOption configures a QueueJob.
type JobOption func(*jobOptions)

type jobOptions struct {
	batch   int
	logger  *ringbus.Logger
	metrics ringbus.MetricsCollector
}

// WithBatch caps the tasks drained per Run.
func WithBatch(n int) JobOption {
	return func(o *jobOptions) { o.batch = n }
}

// WithJobLogger sets the logger task failures are reported to.
func WithJobLogger(l *ringbus.Logger) JobOption {
	return func(o *jobOptions) { o.logger = l }
}

// WithJobMetrics sets the collector task failures are counted in.
func WithJobMetrics(m ringbus.MetricsCollector) JobOption {
	return func(o *jobOptions) { o.metrics = m }
}

// NewQueueJob creates a job draining q through sub. p labels failures.
func NewQueueJob[T any](p ringbus.Pipeline, q *ring.RingQueue[T], sub ring.Sequence, h Handler[T], opts ...JobOption) *QueueJob[T] {
	o := jobOptions{batch: DefaultBatch}
	for _, opt := range opts {
		opt(&o)
	}
	if o.batch < 1 {
		o.batch = 1
	}
	if o.logger == nil {
		o.logger = ringbus.NoopLogger()
	}
	if o.metrics == nil {
		o.metrics = ringbus.NoopMetricsCollector{}
	}
	return &QueueJob[T]{
		pipeline: p,
		queue:    q,
		sub:      sub,
		handle:   h,
		batch:    o.batch,
		logger:   o.logger.WithPipeline(p),
		metrics:  o.metrics,
	}
}

// ForPipeline creates a job for one bus shard, using the bus logger and
// metrics. For broadcast pipelines the job joins the fan-out as a new
// listener; Close leaves it.
func ForPipeline[T any](b *ringbus.Bus, p ringbus.Pipeline, shard int, h Handler[T], opts ...JobOption) (*QueueJob[T], error) {
	q, err := ringbus.LookupQueue[T](b, p, shard)
	if err != nil {
		return nil, err
	}
	ep, err := b.Endpoint(p, shard)
	if err != nil {
		return nil, err
	}

	opts = append([]JobOption{WithJobLogger(b.Logger()), WithJobMetrics(b.Metrics())}, opts...)
	if ep.Sub != nil {
		return NewQueueJob(p, q, ep.Sub, h, opts...), nil
	}
	if ep.FanOut == nil {
		return nil, fmt.Errorf("%s has no consumer stage", p)
	}
	listener := ep.FanOut.AddConsumer()
	j := NewQueueJob(p, q, listener, h, opts...)
	j.fanOut = ep.FanOut
	return j, nil
}

// Run drains up to the batch size and reports whether any task was seen.
func (j *QueueJob[T]) Run(ctx context.Context, _ int) bool {
	n := 0
	for ; n < j.batch; n++ {
		c := j.sub.Next()
		if c == ring.Unavailable {
			break
		}
		j.process(ctx, c)
	}
	return n > 0
}

func (j *QueueJob[T]) process(ctx context.Context, c int64) {
	defer j.sub.Done(c)
	if err := j.handle(ctx, c, j.queue.Get(c)); err != nil {
		j.logger.LogTaskFailure(ctx, j.pipeline, c, err)
		j.metrics.RecordTaskFailure(j.pipeline, err)
	}
}

// Pending reports whether the next position has been published.
func (j *QueueJob[T]) Pending() bool {
	return Pending(j.sub)
}

// Pending reports whether seq's next position is available upstream.
func Pending(seq ring.Sequence) bool {
	cur := seq.Current()
	return seq.Barrier().Available(cur+1) > cur
}

// Sequence returns the sequence the job consumes through.
func (j *QueueJob[T]) Sequence() ring.Sequence { return j.sub }

// Close leaves the fan-out the job joined, if any.
func (j *QueueJob[T]) Close() error {
	if j.fanOut != nil {
		if seq, ok := j.sub.(*ring.SCSequence); ok {
			j.fanOut.Remove(seq)
		}
		j.fanOut = nil
	}
	return nil
}
