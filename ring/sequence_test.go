package ring

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type record struct {
	A int64
	B string
	C float64
}

func newWait() WaitStrategy {
	return NewWaitStrategy(DefaultWaitConfig())
}

func TestSPSC_OrderedDelivery(t *testing.T) {
	const n = 5000

	ws := newWait()
	q, err := NewRingQueue[record](8, nil)
	require.NoError(t, err)
	pub := NewSPSequence(q.Capacity(), ws)
	sub := NewSCSequence(ws)
	pub.Then(sub).Then(pub)

	g, ctx := errgroup.WithContext(t.Context())
	g.Go(func() error {
		for i := range n {
			if _, err := Produce(ctx, pub, q, func(r *record) { r.A = int64(i) }); err != nil {
				return err
			}
		}
		return nil
	})

	observed := make([]int64, 0, n)
	values := make([]int64, 0, n)
	g.Go(func() error {
		for range n {
			err := Consume(ctx, sub, q, func(c int64, r *record) {
				observed = append(observed, c)
				values = append(values, r.A)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())

	for i := range n {
		require.Equal(t, int64(i), observed[i])
		require.Equal(t, int64(i), values[i])
	}
	assert.Equal(t, sub.Current(), pub.Current())
}

func TestMPSequence_ClaimExclusivity(t *testing.T) {
	const (
		producers = 8
		claims    = 400
		capacity  = 64
	)

	ws := newWait()
	pub := NewMPSequence(capacity, ws)
	sub := NewSCSequence(ws)
	pub.Then(sub).Then(pub)

	claimed := make([][]int64, producers)
	g, ctx := errgroup.WithContext(t.Context())
	for p := range producers {
		g.Go(func() error {
			for i := range claims {
				n := 1 + (p+i)%3
				lo, hi := pub.NextN(n)
				for lo == Unavailable {
					if err := ctx.Err(); err != nil {
						return err
					}
					runtime.Gosched()
					lo, hi = pub.NextN(n)
				}
				for c := lo; c <= hi; c++ {
					claimed[p] = append(claimed[p], c)
				}
				pub.DoneRange(lo, hi)
			}
			return nil
		})
	}

	total := 0
	for p := range producers {
		for i := range claims {
			total += 1 + (p+i)%3
		}
	}

	g.Go(func() error {
		for consumed := 0; consumed < total; {
			c, err := sub.Claim(ctx)
			if err != nil {
				return err
			}
			av := pub.Available(c)
			sub.Done(av)
			consumed += int(av - c + 1)
		}
		return nil
	})
	require.NoError(t, g.Wait())

	var all []int64
	for _, c := range claimed {
		require.True(t, slices.IsSorted(c), "a producer observed a non-increasing claim")
		all = append(all, c...)
	}
	slices.Sort(all)
	require.Len(t, all, total)
	for i, c := range all {
		require.Equal(t, int64(i), c)
	}
}

func TestCapacityBoundary(t *testing.T) {
	tests := []struct {
		name  string
		build func(ws WaitStrategy) (Sequence, Sequence)
	}{
		{
			name: "single producer",
			build: func(ws WaitStrategy) (Sequence, Sequence) {
				return NewSPSequence(4, ws), NewSCSequence(ws)
			},
		},
		{
			name: "multi producer multi consumer",
			build: func(ws WaitStrategy) (Sequence, Sequence) {
				return NewMPSequence(4, ws), NewMCSequence(4, ws)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, sub := tt.build(newWait())
			pub.Then(sub).Then(pub)

			for i := range 4 {
				c := pub.Next()
				require.Equal(t, int64(i), c)
				pub.Done(c)
			}

			assert.Equal(t, Unavailable, pub.Next(), "fifth claim must wait for the consumer")

			ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
			defer cancel()
			_, err := pub.Claim(ctx)
			require.ErrorIs(t, err, context.DeadlineExceeded)

			c := sub.Next()
			require.Equal(t, int64(0), c)
			assert.Equal(t, Unavailable, pub.Next(), "claimed but unfinished slot is still in use")
			sub.Done(c)

			assert.Equal(t, int64(4), pub.Next())
		})
	}
}

func TestClaim_UnblocksWhenConsumerAdvances(t *testing.T) {
	ws := newWait()
	q, err := NewRingQueue[record](2, nil)
	require.NoError(t, err)
	pub := NewMPSequence(q.Capacity(), ws)
	sub := NewMCSequence(q.Capacity(), ws)
	pub.Then(sub).Then(pub)

	for range 2 {
		require.True(t, TryProduce(pub, q, func(r *record) {}))
	}
	require.False(t, TryProduce(pub, q, func(r *record) {}))

	claimed := make(chan int64, 1)
	go func() {
		c, err := pub.Claim(t.Context())
		if err == nil {
			pub.Done(c)
		}
		claimed <- c
	}()

	select {
	case <-claimed:
		t.Fatal("claim proceeded while the ring was full")
	case <-time.After(20 * time.Millisecond):
	}

	require.True(t, TryConsume(sub, q, func(int64, *record) {}))

	select {
	case c := <-claimed:
		assert.Equal(t, int64(2), c)
	case <-time.After(5 * time.Second):
		t.Fatal("claim did not proceed after the consumer advanced")
	}
}

func TestRoundTrip(t *testing.T) {
	for _, capacity := range []int{1, 2, 3, 16, 1000} {
		ws := newWait()
		q, err := NewRingQueue[record](capacity, nil)
		require.NoError(t, err)
		pub := NewMPSequence(q.Capacity(), ws)
		sub := NewSCSequence(ws)
		pub.Then(sub).Then(pub)

		want := record{A: 42, B: "partition-2024-01", C: 3.25}
		_, err = Produce(t.Context(), pub, q, func(r *record) { *r = want })
		require.NoError(t, err)

		var got record
		require.True(t, TryConsume(sub, q, func(_ int64, r *record) { got = *r }))
		assert.Equal(t, want, got, "capacity %d", capacity)
	}
}

func TestMPSequence_OutOfOrderCommit(t *testing.T) {
	ws := newWait()
	pub := NewMPSequence(8, ws)
	sub := NewSCSequence(ws)
	pub.Then(sub).Then(pub)

	first := pub.Next()
	second := pub.Next()
	require.Equal(t, int64(0), first)
	require.Equal(t, int64(1), second)

	pub.Done(second)
	assert.Equal(t, Unavailable, sub.Next(), "claimed but unwritten slot must not be visible")
	assert.Equal(t, int64(-1), pub.Available(0))

	pub.Done(first)
	assert.Equal(t, int64(1), pub.Available(0))
	assert.Equal(t, int64(0), sub.Next())
}

func TestMCSequence_CompletionFrontier(t *testing.T) {
	ws := newWait()
	pub := NewSPSequence(8, ws)
	sub := NewMCSequence(8, ws)
	pub.Then(sub).Then(pub)

	for range 3 {
		pub.Done(pub.Next())
	}

	a := sub.Next()
	b := sub.Next()
	require.Equal(t, int64(0), a)
	require.Equal(t, int64(1), b)

	sub.Done(b)
	assert.Equal(t, int64(-1), sub.Available(0), "position 0 still being processed")

	sub.Done(a)
	assert.Equal(t, int64(1), sub.Available(0))

	c := sub.Next()
	assert.Equal(t, int64(2), c)
	assert.Equal(t, Unavailable, sub.Next(), "non-blocking poll on an empty queue")
}

func TestMCSequence_CompetingConsumers(t *testing.T) {
	const n = 3000

	ws := newWait()
	q, err := NewRingQueue[record](32, nil)
	require.NoError(t, err)
	pub := NewMPSequence(q.Capacity(), ws)
	sub := NewMCSequence(q.Capacity(), ws)
	pub.Then(sub).Then(pub)

	var (
		mu        sync.Mutex
		seen      = make(map[int64]int)
		delivered atomic.Int64
	)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	consumers, cctx := errgroup.WithContext(ctx)
	for range 4 {
		consumers.Go(func() error {
			for {
				err := Consume(cctx, sub, q, func(_ int64, r *record) {
					mu.Lock()
					seen[r.A]++
					mu.Unlock()
					delivered.Add(1)
				})
				if err != nil {
					return nil
				}
			}
		})
	}

	producers, pctx := errgroup.WithContext(t.Context())
	for p := range 3 {
		producers.Go(func() error {
			for i := p; i < n; i += 3 {
				if _, err := Produce(pctx, pub, q, func(r *record) { r.A = int64(i) }); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, producers.Wait())

	require.Eventually(t, func() bool {
		return delivered.Load() == n
	}, 5*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, consumers.Wait())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, n)
	for v, count := range seen {
		require.Equal(t, 1, count, "value %d delivered more than once", v)
	}
}

func TestNextN(t *testing.T) {
	ws := newWait()
	pub := NewSPSequence(8, ws)
	sub := NewSCSequence(ws)
	pub.Then(sub).Then(pub)

	lo, hi := pub.NextN(0)
	assert.Equal(t, Unavailable, lo)
	assert.Equal(t, Unavailable, hi)

	lo, hi = pub.NextN(9)
	assert.Equal(t, Unavailable, lo, "range larger than the ring")

	lo, hi = pub.NextN(5)
	require.Equal(t, int64(0), lo)
	require.Equal(t, int64(4), hi)
	pub.DoneRange(lo, hi)

	lo, _ = pub.NextN(4)
	assert.Equal(t, Unavailable, lo, "only three free slots")

	lo, hi = sub.NextN(5)
	require.Equal(t, int64(0), lo)
	require.Equal(t, int64(4), hi)
	sub.DoneRange(lo, hi)

	lo, hi = pub.NextN(8)
	assert.Equal(t, int64(5), lo)
	assert.Equal(t, int64(12), hi)
}

func TestSetCurrentAndClear(t *testing.T) {
	ws := newWait()
	pub := NewMPSequence(4, ws)
	sub := NewMCSequence(4, ws)
	pub.Then(sub).Then(pub)

	pub.SetCurrent(9)
	sub.SetCurrent(9)
	assert.Equal(t, int64(9), pub.Current())
	assert.Equal(t, int64(9), pub.Available(6))
	assert.Equal(t, int64(10), pub.Next())
	assert.Equal(t, Unavailable, sub.Next())

	pub.Clear()
	sub.Clear()
	assert.Equal(t, int64(-1), pub.Current())
	assert.Equal(t, int64(-1), sub.Available(0))
	assert.Equal(t, int64(0), pub.Next())
}

func TestUnwiredSequence(t *testing.T) {
	s := NewSPSequence(4, nil)
	assert.Equal(t, OpenBarrier, s.Barrier())
	for i := range 10 {
		c := s.Next()
		require.Equal(t, int64(i), c, "a producer without consumers is never gated")
		s.Done(c)
	}
}

func TestCeilPow2(t *testing.T) {
	tests := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {2, 2}, {3, 4}, {5, 8}, {64, 64}, {65, 128},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CeilPow2(tt.in), "CeilPow2(%d)", tt.in)
	}
}
