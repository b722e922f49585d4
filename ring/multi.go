package ring

import (
	"context"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// commitFlags records, per slot, the last position completed in it. A
// position p is complete once flags[p&mask] == p; the contiguous run of
// complete positions starting at some lo is the commit frontier seen by
// readers. Claims and commits are therefore separate: a claimed but unwritten
// slot still holds the previous lap's position.
type commitFlags struct {
	mask  int64
	slots []atomic.Int64
}

func newCommitFlags(cycle int64) *commitFlags {
	f := &commitFlags{
		mask:  cycle - 1,
		slots: make([]atomic.Int64, cycle),
	}
	f.reset(-1)
	return f
}

// reset marks every position in (value-cycle, value] complete.
func (f *commitFlags) reset(value int64) {
	n := int64(len(f.slots))
	for i := int64(0); i < n; i++ {
		p := value - i
		f.slots[p&f.mask].Store(p)
	}
}

func (f *commitFlags) publish(cursor int64) {
	f.slots[cursor&f.mask].Store(cursor)
}

// available scans forward from lo. It stops within one lap because a slot
// cannot hold both p and p+cycle.
func (f *commitFlags) available(lo int64) int64 {
	p := lo
	for f.slots[p&f.mask].Load() == p {
		p++
	}
	return p - 1
}

// MPSequence is a multi-producer sequence. Producers race on the claim
// counter with compare-and-swap; publication is per slot.
type MPSequence struct {
	_     cpu.CacheLinePad
	value atomic.Int64
	_     cpu.CacheLinePad
	cache atomic.Int64
	_     cpu.CacheLinePad

	flags   *commitFlags
	cycle   int64
	barrier Barrier
	wait    WaitStrategy
}

// NewMPSequence creates a multi-producer sequence for a ring of capacity
// slots (rounded up to a power of two).
func NewMPSequence(capacity int, wait WaitStrategy) *MPSequence {
	cycle := cycleOf(capacity)
	s := &MPSequence{
		flags:   newCommitFlags(cycle),
		cycle:   cycle,
		barrier: OpenBarrier,
		wait:    orNoop(wait),
	}
	s.Clear()
	return s
}

// Next claims the next position. A lost compare-and-swap is retried here and
// never reported to the caller.
func (s *MPSequence) Next() int64 {
	for {
		current := s.value.Load()
		next := current + 1
		if !s.granted(next - s.cycle) {
			return Unavailable
		}
		if s.value.CompareAndSwap(current, next) {
			return next
		}
	}
}

// NextN claims n consecutive positions exclusively.
func (s *MPSequence) NextN(n int) (int64, int64) {
	if n < 1 || int64(n) > s.cycle {
		return Unavailable, Unavailable
	}
	for {
		current := s.value.Load()
		hi := current + int64(n)
		if !s.granted(hi - s.cycle) {
			return Unavailable, Unavailable
		}
		if s.value.CompareAndSwap(current, hi) {
			return current + 1, hi
		}
	}
}

func (s *MPSequence) granted(lo int64) bool {
	if lo > s.cache.Load() {
		av := s.barrier.Available(lo)
		s.cache.Store(av)
		if lo > av {
			return false
		}
	}
	return true
}

func (s *MPSequence) ready() bool {
	lo := s.value.Load() + 1 - s.cycle
	return lo <= s.barrier.Available(lo)
}

// Claim blocks until Next succeeds.
func (s *MPSequence) Claim(ctx context.Context) (int64, error) {
	if c := s.Next(); c != Unavailable {
		return c, nil
	}
	return claimSlow(ctx, s, s.wait)
}

// Done commits cursor. Commits may arrive out of order; readers only ever
// see the contiguous prefix.
func (s *MPSequence) Done(cursor int64) {
	s.flags.publish(cursor)
	s.wait.Signal()
}

func (s *MPSequence) DoneRange(lo, hi int64) {
	for p := lo; p <= hi; p++ {
		s.flags.publish(p)
	}
	s.wait.Signal()
}

// Available returns the commit frontier reachable from lo.
func (s *MPSequence) Available(lo int64) int64 { return s.flags.available(lo) }

// Current returns the claim counter.
func (s *MPSequence) Current() int64 { return s.value.Load() }

func (s *MPSequence) WaitStrategy() WaitStrategy { return s.wait }
func (s *MPSequence) Barrier() Barrier           { return s.barrier }

func (s *MPSequence) SetBarrier(b Barrier) {
	if b == nil {
		b = OpenBarrier
	}
	s.barrier = b
	s.cache.Store(-1)
}

// SetCurrent moves both the claim counter and the commit frontier to value.
func (s *MPSequence) SetCurrent(value int64) {
	s.flags.reset(value)
	s.value.Store(value)
	s.cache.Store(-1)
}

func (s *MPSequence) Clear() { s.SetCurrent(-1) }

func (s *MPSequence) Then(next Gated) Gated {
	next.SetBarrier(s)
	return next
}

// MCSequence is a multi-consumer sequence: consumers compete for positions,
// each position is handed to exactly one of them. Completion is recorded per
// slot so that downstream stages only advance over finished work.
type MCSequence struct {
	_     cpu.CacheLinePad
	value atomic.Int64
	_     cpu.CacheLinePad
	cache atomic.Int64
	_     cpu.CacheLinePad

	flags   *commitFlags
	barrier Barrier
	wait    WaitStrategy
}

// NewMCSequence creates a multi-consumer sequence for a ring of capacity
// slots (rounded up to a power of two).
func NewMCSequence(capacity int, wait WaitStrategy) *MCSequence {
	s := &MCSequence{
		flags:   newCommitFlags(cycleOf(capacity)),
		barrier: OpenBarrier,
		wait:    orNoop(wait),
	}
	s.Clear()
	return s
}

// Next claims the next published position or returns Unavailable without
// blocking, so worker loops can keep servicing cancellation and shutdown.
func (s *MCSequence) Next() int64 {
	for {
		current := s.value.Load()
		next := current + 1
		if !s.granted(next) {
			return Unavailable
		}
		if s.value.CompareAndSwap(current, next) {
			return next
		}
	}
}

// NextN claims n consecutive published positions.
func (s *MCSequence) NextN(n int) (int64, int64) {
	if n < 1 {
		return Unavailable, Unavailable
	}
	for {
		current := s.value.Load()
		hi := current + int64(n)
		if !s.granted(hi) {
			return Unavailable, Unavailable
		}
		if s.value.CompareAndSwap(current, hi) {
			return current + 1, hi
		}
	}
}

func (s *MCSequence) granted(hi int64) bool {
	if hi > s.cache.Load() {
		av := s.barrier.Available(s.value.Load() + 1)
		s.cache.Store(av)
		if hi > av {
			return false
		}
	}
	return true
}

func (s *MCSequence) ready() bool {
	next := s.value.Load() + 1
	return next <= s.barrier.Available(next)
}

// Claim blocks until Next succeeds.
func (s *MCSequence) Claim(ctx context.Context) (int64, error) {
	if c := s.Next(); c != Unavailable {
		return c, nil
	}
	return claimSlow(ctx, s, s.wait)
}

// Done marks cursor processed.
func (s *MCSequence) Done(cursor int64) {
	s.flags.publish(cursor)
	s.wait.Signal()
}

func (s *MCSequence) DoneRange(lo, hi int64) {
	for p := lo; p <= hi; p++ {
		s.flags.publish(p)
	}
	s.wait.Signal()
}

// Available returns the highest contiguously processed position from lo.
func (s *MCSequence) Available(lo int64) int64 { return s.flags.available(lo) }

// Current returns the claim counter.
func (s *MCSequence) Current() int64 { return s.value.Load() }

func (s *MCSequence) WaitStrategy() WaitStrategy { return s.wait }
func (s *MCSequence) Barrier() Barrier           { return s.barrier }

func (s *MCSequence) SetBarrier(b Barrier) {
	if b == nil {
		b = OpenBarrier
	}
	s.barrier = b
	s.cache.Store(-1)
}

func (s *MCSequence) SetCurrent(value int64) {
	s.flags.reset(value)
	s.value.Store(value)
	s.cache.Store(-1)
}

func (s *MCSequence) Clear() { s.SetCurrent(-1) }

func (s *MCSequence) Then(next Gated) Gated {
	next.SetBarrier(s)
	return next
}
