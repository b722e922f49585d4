package ring

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

// ErrInvalidCapacity is returned for a ring capacity outside [1, MaxCapacity].
var ErrInvalidCapacity = errors.New("ring: invalid capacity")

// ErrInvalidClaim is returned for a batch claim outside [1, Capacity].
var ErrInvalidClaim = errors.New("ring: invalid claim size")

// RingQueue is a fixed, power-of-two array of reusable task records.
//
// Records are allocated once at construction and overwritten in place; a slot
// is recycled implicitly when a producer claims position p+Capacity. Callers
// must only touch a record after claiming, or being granted visibility of,
// its position.
type RingQueue[T any] struct {
	mask   int64
	buf    []T
	closed atomic.Bool
}

// NewRingQueue allocates a queue of capacity slots, rounded up to the next
// power of two. init, when non-nil, runs once per slot; use it to
// pre-allocate per-record buffers.
func NewRingQueue[T any](capacity int, init func(*T)) (*RingQueue[T], error) {
	if capacity < 1 || capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	n := CeilPow2(capacity)
	q := &RingQueue[T]{
		mask: int64(n - 1),
		buf:  make([]T, n),
	}
	if init != nil {
		for i := range q.buf {
			init(&q.buf[i])
		}
	}
	return q, nil
}

// Get returns the record currently representing position.
func (q *RingQueue[T]) Get(position int64) *T {
	return &q.buf[position&q.mask]
}

// Capacity returns the number of slots.
func (q *RingQueue[T]) Capacity() int { return int(q.mask + 1) }

// Mask returns Capacity-1.
func (q *RingQueue[T]) Mask() int64 { return q.mask }

// Close releases the records. Records implementing io.Closer are closed and
// their errors joined. The slots themselves stay addressable, so Get on a
// closed queue returns released records instead of panicking. Close must not
// race with producers or consumers; calls after the first are no-ops.
func (q *RingQueue[T]) Close() error {
	if q == nil || !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for i := range q.buf {
		if c, ok := any(&q.buf[i]).(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("slot %d: %w", i, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Closed reports whether Close has been called.
func (q *RingQueue[T]) Closed() bool { return q.closed.Load() }
