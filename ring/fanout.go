package ring

import (
	"slices"
	"sync"
	"sync/atomic"
)

// FanOut is a broadcast consumer group. Every member observes every published
// position, and whatever is gated on the FanOut (a producer or a cleanup
// stage) only advances past the slowest member.
//
// Membership is copy-on-write: readers load one pointer and never lock.
// Joining and leaving are serialised by a mutex and must happen at
// checkpoints, not while the joining member has a claim in flight.
type FanOut struct {
	mu    sync.Mutex
	state atomic.Pointer[fanOutState]
	wait  WaitStrategy
}

type fanOutState struct {
	upstream Barrier
	members  []*SCSequence
	gate     *SequenceBarrier
}

var _ Gated = (*FanOut)(nil)

// NewFanOut creates an empty group.
func NewFanOut(wait WaitStrategy) *FanOut {
	f := &FanOut{wait: orNoop(wait)}
	f.state.Store(&fanOutState{upstream: OpenBarrier})
	return f
}

// AddConsumer creates a member positioned at the group's low-water mark.
func (f *FanOut) AddConsumer() *SCSequence {
	seq := NewSCSequence(f.wait)
	f.Add(seq)
	return seq
}

// Add joins seq to the group. seq is gated on the group's upstream barrier
// and repositioned at the low-water mark: the slowest member, or the
// upstream cursor when the group is empty. It never lands behind a slot that
// has already been retired.
func (f *FanOut) Add(seq *SCSequence) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := f.state.Load()
	seq.SetBarrier(st.upstream)
	seq.SetCurrent(st.lowWater())

	members := append(slices.Clip(st.members), seq)
	f.state.Store(newFanOutState(st.upstream, members, f.wait))
}

// Remove detaches seq. It reports whether seq was a member.
func (f *FanOut) Remove(seq *SCSequence) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := f.state.Load()
	i := slices.Index(st.members, seq)
	if i < 0 {
		return false
	}
	members := slices.Delete(slices.Clone(st.members), i, i+1)
	f.state.Store(newFanOutState(st.upstream, members, f.wait))
	return true
}

// Len returns the number of members.
func (f *FanOut) Len() int { return len(f.state.Load().members) }

// Members returns a snapshot of the current members.
func (f *FanOut) Members() []*SCSequence {
	return slices.Clone(f.state.Load().members)
}

// Available returns the minimum member position. An empty group is
// transparent and reports its upstream.
func (f *FanOut) Available(lo int64) int64 {
	st := f.state.Load()
	if st.gate == nil {
		return st.upstream.Available(lo)
	}
	return st.gate.Available(lo)
}

// Current returns the low-water mark.
func (f *FanOut) Current() int64 { return f.state.Load().lowWater() }

func (f *FanOut) WaitStrategy() WaitStrategy { return f.wait }

// Barrier returns the upstream barrier members are gated on.
func (f *FanOut) Barrier() Barrier { return f.state.Load().upstream }

// SetBarrier gates the group, and every current member, on b.
func (f *FanOut) SetBarrier(b Barrier) {
	if b == nil {
		b = OpenBarrier
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	st := f.state.Load()
	for _, m := range st.members {
		m.SetBarrier(b)
	}
	f.state.Store(newFanOutState(b, st.members, f.wait))
}

func (f *FanOut) Then(next Gated) Gated {
	next.SetBarrier(f)
	return next
}

func newFanOutState(upstream Barrier, members []*SCSequence, wait WaitStrategy) *fanOutState {
	st := &fanOutState{upstream: upstream, members: members}
	if len(members) > 0 {
		gating := make([]Barrier, len(members))
		for i, m := range members {
			gating[i] = m
		}
		st.gate = NewSequenceBarrier(wait, gating...)
	}
	return st
}

func (st *fanOutState) lowWater() int64 {
	if st.gate == nil {
		if st.upstream == OpenBarrier {
			return -1
		}
		return st.upstream.Current()
	}
	return st.gate.Current()
}
