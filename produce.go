package ringbus

import (
	"context"
	"time"

	"github.com/hupe1980/ringbus/ring"
)

// Produce claims a slot on p's shard, lets fill write the record and
// publishes it. When the ring is full it idles per the bus wait strategy and
// records the wait with the metrics collector. If fill panics the slot is
// still published so the pipeline keeps moving.
func Produce[T any](ctx context.Context, b *Bus, p Pipeline, shard int, fill func(*T)) (int64, error) {
	ep, err := b.Endpoint(p, shard)
	if err != nil {
		return ring.Unavailable, err
	}
	q, ok := ep.Queue.(*ring.RingQueue[T])
	if !ok {
		return ring.Unavailable, &ErrQueueType{Pipeline: p, Want: typeName[T]()}
	}

	c := ep.Pub.Next()
	if c == ring.Unavailable {
		start := time.Now()
		c, err = ep.Pub.Claim(ctx)
		b.metrics.RecordWait(p, time.Since(start))
		if err != nil {
			return ring.Unavailable, err
		}
	}
	defer ep.Pub.Done(c)
	fill(q.Get(c))
	return c, nil
}

// TryProduce is Produce without waiting. It reports false when the ring is
// full or the shard is unusable.
func TryProduce[T any](b *Bus, p Pipeline, shard int, fill func(*T)) bool {
	s := b.shard(p, shard)
	if s == nil || b.closed.Load() {
		return false
	}
	q, ok := s.queue.(*ring.RingQueue[T])
	if !ok {
		return false
	}
	return ring.TryProduce(s.pub, q, fill)
}
