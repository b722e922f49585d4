package ring

import (
	"context"
	"math"
)

// SequenceBarrier combines several upstream barriers. The position it
// reports is the minimum across all of them and is recomputed on every call.
type SequenceBarrier struct {
	gating []Barrier
	wait   WaitStrategy
}

var _ Barrier = (*SequenceBarrier)(nil)

// NewSequenceBarrier gates on every barrier in gating. The barriers stay
// owned by their pipelines.
func NewSequenceBarrier(wait WaitStrategy, gating ...Barrier) *SequenceBarrier {
	return &SequenceBarrier{
		gating: append([]Barrier(nil), gating...),
		wait:   orNoop(wait),
	}
}

// Available returns min(g.Available(lo)) over the gating barriers.
func (b *SequenceBarrier) Available(lo int64) int64 {
	lowest := int64(math.MaxInt64)
	for _, g := range b.gating {
		if v := g.Available(lo); v < lowest {
			lowest = v
		}
	}
	return lowest
}

// AvailableUpTo returns the largest position <= desired that a consumer whose
// next position is lo may read.
func (b *SequenceBarrier) AvailableUpTo(lo, desired int64) int64 {
	return min(desired, b.Available(lo))
}

// WaitFor idles until lo is available and returns the highest available
// position, which may exceed lo.
func (b *SequenceBarrier) WaitFor(ctx context.Context, lo int64) (int64, error) {
	var ready func() bool
	for attempt := 0; ; attempt++ {
		if av := b.Available(lo); av >= lo {
			return av, nil
		}
		if ready == nil {
			ready = func() bool { return b.Available(lo) >= lo }
		}
		if err := b.wait.Idle(ctx, attempt, ready); err != nil {
			return Unavailable, err
		}
	}
}

// Current returns the minimum raw cursor of the gating barriers.
func (b *SequenceBarrier) Current() int64 {
	lowest := int64(math.MaxInt64)
	for _, g := range b.gating {
		if v := g.Current(); v < lowest {
			lowest = v
		}
	}
	return lowest
}

func (b *SequenceBarrier) WaitStrategy() WaitStrategy { return b.wait }

// Len returns the number of gating barriers.
func (b *SequenceBarrier) Len() int { return len(b.gating) }
