package ringbus

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/ringbus/config"
	"github.com/hupe1980/ringbus/ring"
)

// Bus owns every pipeline: one ring queue per shard plus the sequences that
// coordinate it. It is built once from a Config, shared by reference, and
// torn down with Close. All accessors are safe from any goroutine.
type Bus struct {
	cfg       config.Config
	wait      ring.WaitStrategy
	pipelines [numPipelines][]*shard

	logger  *Logger
	metrics MetricsCollector
	closed  atomic.Bool
}

// New validates cfg and wires every enabled pipeline.
func New(cfg config.Config, opts ...Option) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)

	wait := o.waitStrategy
	if wait == nil {
		wait = ring.NewWaitStrategy(cfg.WaitConfig())
	}

	b := &Bus{
		cfg:     cfg,
		wait:    wait,
		logger:  o.logger,
		metrics: o.metricsCollector,
	}

	enabled, total := 0, 0
	for _, p := range Pipelines() {
		capacity := p.capacity(cfg)
		if capacity == 0 {
			continue
		}
		n := p.shards(cfg)
		shards := make([]*shard, n)
		for i := range shards {
			s, err := newShard(p, capacity, wait)
			if err != nil {
				b.release()
				return nil, fmt.Errorf("%s shard %d: %w", p, i, err)
			}
			shards[i] = s
		}
		b.pipelines[p] = shards
		enabled++
		total += n
	}

	b.logger.LogOpen(context.Background(), enabled, total)
	return b, nil
}

// Config returns the configuration the bus was built from.
func (b *Bus) Config() config.Config { return b.cfg }

// WaitStrategy returns the strategy shared by every sequence of the bus.
func (b *Bus) WaitStrategy() ring.WaitStrategy { return b.wait }

// Logger returns the bus logger.
func (b *Bus) Logger() *Logger { return b.logger }

// Metrics returns the bus metrics collector.
func (b *Bus) Metrics() MetricsCollector { return b.metrics }

// Closed reports whether Close has been called.
func (b *Bus) Closed() bool { return b.closed.Load() }

// Enabled reports whether p was constructed.
func (b *Bus) Enabled(p Pipeline) bool {
	return p.Valid() && b.pipelines[p] != nil
}

// ShardCount returns the number of shards of p: the configured reduce shard
// count for PageFrameReduce, 1 for other pipelines, 0 when p is disabled.
func (b *Bus) ShardCount(p Pipeline) int {
	if !p.Valid() {
		return 0
	}
	return len(b.pipelines[p])
}

func (b *Bus) shard(p Pipeline, i int) *shard {
	if !p.Valid() {
		return nil
	}
	shards := b.pipelines[p]
	if i < 0 || i >= len(shards) {
		return nil
	}
	return shards[i]
}

// Endpoint is the queue and the sequences of one pipeline shard. Fields a
// topology does not use are nil.
type Endpoint struct {
	Pipeline Pipeline
	Shard    int
	Queue    any
	Pub      ring.Sequence
	Sub      ring.Sequence
	FanOut   *ring.FanOut
	Cleanup  ring.Sequence
}

// Endpoint looks up one shard and reports why it is unusable.
func (b *Bus) Endpoint(p Pipeline, i int) (Endpoint, error) {
	if !p.Valid() {
		return Endpoint{}, fmt.Errorf("%w: %d", ErrUnknownPipeline, int(p))
	}
	if b.closed.Load() {
		return Endpoint{}, ErrClosed
	}
	if b.pipelines[p] == nil {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrPipelineDisabled, p)
	}
	s := b.shard(p, i)
	if s == nil {
		return Endpoint{}, fmt.Errorf("%w: %s has %d shards, got %d", ErrShardOutOfRange, p, len(b.pipelines[p]), i)
	}
	return Endpoint{
		Pipeline: p,
		Shard:    i,
		Queue:    s.queue,
		Pub:      s.pub,
		Sub:      s.sub,
		FanOut:   s.fanOut,
		Cleanup:  s.cleanup,
	}, nil
}

// PubSequence returns the producer sequence of p's shard, or nil.
func (b *Bus) PubSequence(p Pipeline, i int) ring.Sequence {
	if s := b.shard(p, i); s != nil {
		return s.pub
	}
	return nil
}

// SubSequence returns the consumer sequence of p's shard, or nil. Broadcast
// pipelines have no sub sequence; listeners join the FanOut instead.
func (b *Bus) SubSequence(p Pipeline, i int) ring.Sequence {
	if s := b.shard(p, i); s != nil {
		return s.sub
	}
	return nil
}

// FanOut returns the broadcast group of p's shard, or nil. For
// PageFrameReduce this is the collect fan-out.
func (b *Bus) FanOut(p Pipeline, i int) *ring.FanOut {
	if s := b.shard(p, i); s != nil {
		return s.fanOut
	}
	return nil
}

// CleanupSequence returns the cleanup sequence of p's shard, or nil. Only
// PageFrameReduce has one.
func (b *Bus) CleanupSequence(p Pipeline, i int) ring.Sequence {
	if s := b.shard(p, i); s != nil {
		return s.cleanup
	}
	return nil
}

// Capacity returns the ring capacity of p's shard, or 0.
func (b *Bus) Capacity(p Pipeline, i int) int {
	if s := b.shard(p, i); s != nil {
		return s.capacity
	}
	return 0
}

// Queue returns p's ring queue for shard i. It returns nil when p is
// disabled, i is out of range, or T is not p's record type.
func Queue[T any](b *Bus, p Pipeline, i int) *ring.RingQueue[T] {
	s := b.shard(p, i)
	if s == nil {
		return nil
	}
	q, _ := s.queue.(*ring.RingQueue[T])
	return q
}

// LookupQueue is Queue with an error describing why no queue was found.
func LookupQueue[T any](b *Bus, p Pipeline, i int) (*ring.RingQueue[T], error) {
	ep, err := b.Endpoint(p, i)
	if err != nil {
		return nil, err
	}
	q, ok := ep.Queue.(*ring.RingQueue[T])
	if !ok {
		return nil, &ErrQueueType{Pipeline: p, Want: typeName[T]()}
	}
	return q, nil
}

func typeName[T any]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}
