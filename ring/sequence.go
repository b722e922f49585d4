package ring

import (
	"context"
	"math"
	"math/bits"
)

// Unavailable is returned by Next when the gating barrier does not grant a
// position yet: the ring is full for producers, or empty for consumers.
//
// Every sequence starts at -1, so no valid claim ever equals Unavailable.
const Unavailable int64 = -1

// MaxCapacity is the largest ring capacity accepted by the package.
const MaxCapacity = 1 << 30

// Barrier is the read side of a sequence: the highest position a role has
// completed.
type Barrier interface {
	// Available returns the highest position p >= lo-1 such that every
	// position in [lo, p] has been completed. Sequences that complete in order
	// ignore lo and return their current value.
	Available(lo int64) int64

	// Current returns the raw cursor without side effects: the published
	// position for single-writer sequences, the claim counter for
	// multi-writer ones.
	Current() int64

	// WaitStrategy returns the strategy used to park on this barrier.
	WaitStrategy() WaitStrategy
}

// Gated is anything that can be placed behind a barrier and, in turn, gate
// the next stage.
type Gated interface {
	Barrier
	SetBarrier(b Barrier)

	// Then gates next on this stage and returns next, so pipelines read
	// left to right: pub.Then(sub).Then(pub).
	Then(next Gated) Gated
}

// Sequence is a position cursor coordinating one producer or consumer role
// against a RingQueue.
type Sequence interface {
	Gated

	// Next reserves the next position or returns Unavailable. It never blocks.
	Next() int64

	// NextN reserves n consecutive positions and returns the inclusive range.
	// Both values are Unavailable when the range cannot be granted.
	NextN(n int) (lo, hi int64)

	// Claim blocks, according to the wait strategy, until Next succeeds or
	// ctx ends.
	Claim(ctx context.Context) (int64, error)

	// Done publishes cursor. Must be called only after the slot is fully
	// written (producers) or fully processed (consumers).
	Done(cursor int64)

	// DoneRange publishes every position in [lo, hi].
	DoneRange(lo, hi int64)

	// Barrier returns the upstream barrier this sequence is gated on.
	Barrier() Barrier

	// SetCurrent repositions the cursor. Only valid while nothing is in flight.
	SetCurrent(value int64)

	// Clear resets the cursor to -1.
	Clear()
}

// openBarrier never gates anything.
type openBarrier struct{}

func (openBarrier) Available(int64) int64      { return math.MaxInt64 }
func (openBarrier) Current() int64             { return math.MaxInt64 }
func (openBarrier) WaitStrategy() WaitStrategy { return noopWait{} }

// OpenBarrier is the barrier of a sequence that has not been wired yet.
var OpenBarrier Barrier = openBarrier{}

type noopWait struct{}

func (noopWait) Idle(ctx context.Context, _ int, _ func() bool) error { return ctx.Err() }
func (noopWait) Signal()                                              {}

// CeilPow2 rounds n up to the next power of two. Values below 1 become 1.
func CeilPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func cycleOf(capacity int) int64 {
	if capacity > MaxCapacity {
		capacity = MaxCapacity
	}
	return int64(CeilPow2(capacity))
}

type claimer interface {
	Next() int64
	ready() bool
}

// claimSlow is the idle loop behind Claim, entered only after a failed Next.
func claimSlow(ctx context.Context, s claimer, ws WaitStrategy) (int64, error) {
	for attempt := 0; ; attempt++ {
		if err := ws.Idle(ctx, attempt, s.ready); err != nil {
			return Unavailable, err
		}
		if c := s.Next(); c != Unavailable {
			return c, nil
		}
	}
}
