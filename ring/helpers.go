package ring

import (
	"context"
	"fmt"
)

// Produce claims a position on pub, lets fill write the record in place and
// publishes it. It blocks per the wait strategy while the ring is full.
//
// If fill panics the position is still published, since a claimed but
// unpublished position stalls every stage behind pub. Consumers then see
// whatever fill wrote before panicking.
func Produce[T any](ctx context.Context, pub Sequence, q *RingQueue[T], fill func(*T)) (int64, error) {
	c, err := pub.Claim(ctx)
	if err != nil {
		return Unavailable, err
	}
	defer pub.Done(c)
	fill(q.Get(c))
	return c, nil
}

// TryProduce is Produce without waiting. It reports false when the ring is
// full. A panicking fill publishes the position, as with Produce.
func TryProduce[T any](pub Sequence, q *RingQueue[T], fill func(*T)) bool {
	c := pub.Next()
	if c == Unavailable {
		return false
	}
	defer pub.Done(c)
	fill(q.Get(c))
	return true
}

// TryConsume processes at most one record. The cursor is released even if fn
// panics, because an unreleased cursor stalls every stage gated behind sub.
func TryConsume[T any](sub Sequence, q *RingQueue[T], fn func(cursor int64, t *T)) bool {
	c := sub.Next()
	if c == Unavailable {
		return false
	}
	defer sub.Done(c)
	fn(c, q.Get(c))
	return true
}

// Consume waits for the next record and processes it.
func Consume[T any](ctx context.Context, sub Sequence, q *RingQueue[T], fn func(cursor int64, t *T)) error {
	c, err := sub.Claim(ctx)
	if err != nil {
		return err
	}
	defer sub.Done(c)
	fn(c, q.Get(c))
	return nil
}

// ProduceBatch claims n consecutive positions, fills each in order and
// publishes the whole range at once. n must be in [1, q.Capacity()]. A
// panicking fill publishes the whole range, as with Produce.
func ProduceBatch[T any](ctx context.Context, pub Sequence, q *RingQueue[T], n int, fill func(cursor int64, t *T)) (lo, hi int64, err error) {
	if n < 1 || n > q.Capacity() {
		return Unavailable, Unavailable, fmt.Errorf("%w: %d", ErrInvalidClaim, n)
	}
	ws := pub.WaitStrategy()
	for attempt := 0; ; attempt++ {
		if lo, hi = pub.NextN(n); lo != Unavailable {
			break
		}
		if err := ws.Idle(ctx, attempt, nil); err != nil {
			return Unavailable, Unavailable, err
		}
	}
	defer pub.DoneRange(lo, hi)
	for c := lo; c <= hi; c++ {
		fill(c, q.Get(c))
	}
	return lo, hi, nil
}
