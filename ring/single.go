package ring

import (
	"context"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// SPSequence is a single-producer sequence. Its value is the last published
// position; Next is a plain read checked against the barrier.
type SPSequence struct {
	_     cpu.CacheLinePad
	value atomic.Int64
	_     cpu.CacheLinePad

	// cache is the producer-local copy of the barrier's last reported
	// position, refreshed only when a claim would cross it.
	cache   int64
	cycle   int64
	barrier Barrier
	wait    WaitStrategy
}

// NewSPSequence creates a single-producer sequence for a ring of capacity
// slots (rounded up to a power of two).
func NewSPSequence(capacity int, wait WaitStrategy) *SPSequence {
	s := &SPSequence{
		cycle:   cycleOf(capacity),
		barrier: OpenBarrier,
		wait:    orNoop(wait),
	}
	s.Clear()
	return s
}

// Next returns value+1 when the slot it maps to has been retired by the
// barrier. It does not advance the sequence; Done does.
func (s *SPSequence) Next() int64 {
	next := s.value.Load() + 1
	if !s.granted(next - s.cycle) {
		return Unavailable
	}
	return next
}

// NextN reserves [value+1, value+n].
func (s *SPSequence) NextN(n int) (int64, int64) {
	if n < 1 || int64(n) > s.cycle {
		return Unavailable, Unavailable
	}
	lo := s.value.Load() + 1
	hi := lo + int64(n) - 1
	if !s.granted(hi - s.cycle) {
		return Unavailable, Unavailable
	}
	return lo, hi
}

func (s *SPSequence) granted(lo int64) bool {
	if lo > s.cache {
		s.cache = s.barrier.Available(lo)
		if lo > s.cache {
			return false
		}
	}
	return true
}

func (s *SPSequence) ready() bool {
	lo := s.value.Load() + 1 - s.cycle
	return lo <= s.barrier.Available(lo)
}

// Claim blocks until Next succeeds.
func (s *SPSequence) Claim(ctx context.Context) (int64, error) {
	if c := s.Next(); c != Unavailable {
		return c, nil
	}
	return claimSlow(ctx, s, s.wait)
}

// Done publishes cursor.
func (s *SPSequence) Done(cursor int64) {
	s.value.Store(cursor)
	s.wait.Signal()
}

// DoneRange publishes [lo, hi]. Single writers complete in order, so only hi
// is stored.
func (s *SPSequence) DoneRange(_, hi int64) { s.Done(hi) }

func (s *SPSequence) Available(int64) int64 { return s.value.Load() }
func (s *SPSequence) Current() int64        { return s.value.Load() }

func (s *SPSequence) WaitStrategy() WaitStrategy { return s.wait }
func (s *SPSequence) Barrier() Barrier           { return s.barrier }

// SetBarrier gates the producer on b, normally the last consumer stage. The
// cached barrier position is dropped so the next claim re-reads b.
func (s *SPSequence) SetBarrier(b Barrier) {
	if b == nil {
		b = OpenBarrier
	}
	s.barrier = b
	s.cache = -1
}

func (s *SPSequence) SetCurrent(value int64) {
	s.value.Store(value)
	s.cache = -1
}

func (s *SPSequence) Clear() { s.SetCurrent(-1) }

func (s *SPSequence) Then(next Gated) Gated {
	next.SetBarrier(s)
	return next
}

// SCSequence is a single-consumer sequence. Its value is the last position
// the consumer finished. SCSequences are also the members of a FanOut.
type SCSequence struct {
	_     cpu.CacheLinePad
	value atomic.Int64
	_     cpu.CacheLinePad

	cache   int64
	barrier Barrier
	wait    WaitStrategy
}

// NewSCSequence creates a single-consumer sequence.
func NewSCSequence(wait WaitStrategy) *SCSequence {
	s := &SCSequence{
		barrier: OpenBarrier,
		wait:    orNoop(wait),
	}
	s.Clear()
	return s
}

// Next returns value+1 once the barrier has published it.
func (s *SCSequence) Next() int64 {
	next := s.value.Load() + 1
	if !s.granted(next) {
		return Unavailable
	}
	return next
}

// NextN returns [value+1, value+n] once all of it is published.
func (s *SCSequence) NextN(n int) (int64, int64) {
	if n < 1 {
		return Unavailable, Unavailable
	}
	lo := s.value.Load() + 1
	hi := lo + int64(n) - 1
	if !s.granted(hi) {
		return Unavailable, Unavailable
	}
	return lo, hi
}

func (s *SCSequence) granted(hi int64) bool {
	if hi > s.cache {
		s.cache = s.barrier.Available(s.value.Load() + 1)
		if hi > s.cache {
			return false
		}
	}
	return true
}

func (s *SCSequence) ready() bool {
	next := s.value.Load() + 1
	return next <= s.barrier.Available(next)
}

// Claim blocks until Next succeeds.
func (s *SCSequence) Claim(ctx context.Context) (int64, error) {
	if c := s.Next(); c != Unavailable {
		return c, nil
	}
	return claimSlow(ctx, s, s.wait)
}

// Done marks cursor consumed, releasing it to whoever is gated on s.
func (s *SCSequence) Done(cursor int64) {
	s.value.Store(cursor)
	s.wait.Signal()
}

func (s *SCSequence) DoneRange(_, hi int64) { s.Done(hi) }

func (s *SCSequence) Available(int64) int64 { return s.value.Load() }
func (s *SCSequence) Current() int64        { return s.value.Load() }

func (s *SCSequence) WaitStrategy() WaitStrategy { return s.wait }
func (s *SCSequence) Barrier() Barrier           { return s.barrier }

func (s *SCSequence) SetBarrier(b Barrier) {
	if b == nil {
		b = OpenBarrier
	}
	s.barrier = b
	s.cache = -1
}

func (s *SCSequence) SetCurrent(value int64) {
	s.value.Store(value)
	s.cache = -1
}

func (s *SCSequence) Clear() { s.SetCurrent(-1) }

func (s *SCSequence) Then(next Gated) Gated {
	next.SetBarrier(s)
	return next
}

func orNoop(w WaitStrategy) WaitStrategy {
	if w == nil {
		return noopWait{}
	}
	return w
}
