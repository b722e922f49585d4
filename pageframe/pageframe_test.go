package pageframe

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ringbus"
	"github.com/hupe1980/ringbus/config"
	"github.com/hupe1980/ringbus/task"
	"github.com/hupe1980/ringbus/testutil"
	"github.com/hupe1980/ringbus/worker"
)

func newBus(t *testing.T, shards, capacity int, opts ...ringbus.Option) *ringbus.Bus {
	t.Helper()
	cfg := config.Default()
	cfg.PageFrameReduceShardCount = shards
	cfg.PageFrameReduceCapacity = capacity
	cfg.PageFrameDispatchCapacity = 4
	b, err := ringbus.New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func makeFrames(n int, rows int64) []task.PageFrame {
	frames := make([]task.PageFrame, n)
	for i := range frames {
		frames[i] = task.PageFrame{PartitionIndex: i / 4, RowLo: int64(i) * rows, RowHi: int64(i+1) * rows}
	}
	return frames
}

func countRows(_ context.Context, t *task.PageFrameReduceTask) error {
	t.Rows.AddRange(0, uint64(t.Frame.Rows()))
	t.Count = int64(t.Rows.GetCardinality())
	return nil
}

func TestDispatch_RoundRobinPerShardOrder(t *testing.T) {
	bus := newBus(t, 2, 8)
	seq, err := New(bus, makeFrames(10, 100), countRows)
	require.NoError(t, err)
	defer seq.Close()

	require.NoError(t, seq.Dispatch(t.Context()))
	dispatch := NewDispatchJob(bus)
	require.True(t, dispatch.Run(t.Context(), 0))
	assert.False(t, dispatch.Run(t.Context(), 0))

	total := 0
	for shard := range 2 {
		pub := bus.PageFrameReducePubSeq(shard)
		q := bus.PageFrameReduceQueue(shard)
		last := -1
		for c := int64(0); c <= pub.Current(); c++ {
			rt := q.Get(c)
			assert.Equal(t, seq.ID(), rt.SequenceID)
			assert.Greater(t, rt.FrameIndex, last, "shard %d publishes frames in dispatch order", shard)
			last = rt.FrameIndex
			total++
		}
		assert.Equal(t, int64(4), pub.Current(), "frames alternate between shards")
	}
	assert.Equal(t, 10, total)

	reduce := NewReduceJob(bus)
	for reduce.Run(t.Context(), 0) {
	}

	completions := 0
	var rows int64
	require.NoError(t, seq.Collect(t.Context(), func(rt *task.PageFrameReduceTask) error {
		completions++
		rows += rt.Count
		assert.Equal(t, task.StatusDone, rt.Status)
		return nil
	}))
	assert.Equal(t, 10, completions)
	assert.Equal(t, int64(1000), rows)

	cleanup := NewCleanupJob(bus)
	for cleanup.Run(t.Context(), 0) {
	}
	for _, s := range bus.Stats() {
		if s.Pipeline == ringbus.PageFrameReduce {
			assert.Zero(t, s.Lag, "shard %d fully recycled", s.Shard)
		}
	}
	assert.True(t, bus.PageFrameReduceQueue(0).Get(0).Rows.IsEmpty(), "cleanup clears the record")
}

func TestCollect_ConcurrentSequences(t *testing.T) {
	const (
		sequences = 3
		frames    = 50
	)
	bus := newBus(t, 2, 4)
	pool := worker.NewPool(3, worker.WithBus(bus))
	require.NoError(t, Assign(pool, bus))
	require.NoError(t, pool.Start(t.Context()))
	defer pool.Close()

	g, ctx := errgroup.WithContext(t.Context())
	for s := range sequences {
		seq, err := New(bus, makeFrames(frames, int64(s+1)), countRows)
		require.NoError(t, err)
		g.Go(func() error {
			defer seq.Close()
			if err := seq.Dispatch(ctx); err != nil {
				return err
			}
			var got atomic.Int64
			var rows int64
			if err := seq.Collect(ctx, func(rt *task.PageFrameReduceTask) error {
				if rt.SequenceID != seq.ID() {
					return fmt.Errorf("foreign frame %s", rt.SequenceID)
				}
				got.Add(1)
				rows += rt.Count
				return nil
			}); err != nil {
				return err
			}
			if got.Load() != frames || rows != int64(frames*(s+1)) {
				return fmt.Errorf("sequence %d: %d frames, %d rows", s, got.Load(), rows)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := range bus.PageFrameReduceShardCount() {
		assert.Zero(t, bus.PageFrameCollectFanOut(i).Len(), "every sequence left the fan-out")
	}
	assert.Zero(t, pool.Panics())
}

func TestCollect_RandomFrames(t *testing.T) {
	rng := testutil.NewRNG(4711)
	frames := rng.Frames(64, 512)

	bus := newBus(t, 3, 4)
	pool := worker.NewPool(2, worker.WithBus(bus))
	require.NoError(t, Assign(pool, bus))
	require.NoError(t, pool.Start(t.Context()))
	defer pool.Close()

	seq, err := New(bus, frames, countRows)
	require.NoError(t, err)
	defer seq.Close()
	require.NoError(t, seq.Dispatch(t.Context()))

	var rows int64
	seen := make(map[int]bool, len(frames))
	require.NoError(t, seq.Collect(t.Context(), func(rt *task.PageFrameReduceTask) error {
		seen[rt.FrameIndex] = true
		rows += rt.Count
		return nil
	}))
	assert.Len(t, seen, len(frames))
	assert.Equal(t, testutil.TotalRows(frames), rows, "seed %d", rng.Seed())
}

func TestCollect_ReducerFailure(t *testing.T) {
	metrics := &ringbus.BasicMetricsCollector{}
	bus := newBus(t, 2, 8, ringbus.WithMetricsCollector(metrics))
	errCorrupt := errors.New("corrupt page")

	seq, err := New(bus, makeFrames(6, 10), func(ctx context.Context, rt *task.PageFrameReduceTask) error {
		if rt.FrameIndex == 3 {
			return errCorrupt
		}
		return countRows(ctx, rt)
	})
	require.NoError(t, err)
	defer seq.Close()

	require.NoError(t, seq.Dispatch(t.Context()))
	require.True(t, NewDispatchJob(bus).Run(t.Context(), 0))
	reduce := NewReduceJob(bus)
	for reduce.Run(t.Context(), 1) {
	}

	err = seq.Collect(t.Context(), func(*task.PageFrameReduceTask) error { return nil })
	require.ErrorIs(t, err, errCorrupt)
	assert.Contains(t, err.Error(), "frame 3")
	assert.True(t, seq.IsCancelled())
	assert.Equal(t, int64(1), metrics.Failures(ringbus.PageFrameReduce))
}

func TestCollect_Cancelled(t *testing.T) {
	bus := newBus(t, 1, 4)
	pool := worker.NewPool(2, worker.WithBus(bus))
	require.NoError(t, Assign(pool, bus))
	require.NoError(t, pool.Start(t.Context()))
	defer pool.Close()

	var reduced atomic.Int64
	seq, err := New(bus, makeFrames(12, 10), func(ctx context.Context, rt *task.PageFrameReduceTask) error {
		reduced.Add(1)
		return countRows(ctx, rt)
	})
	require.NoError(t, err)
	seq.Cancel()
	require.NoError(t, seq.Dispatch(t.Context()))

	err = seq.Collect(t.Context(), func(*task.PageFrameReduceTask) error {
		t.Error("cancelled frames are not handed to the collector")
		return nil
	})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Zero(t, reduced.Load())
	require.NoError(t, seq.Close())

	// The ring keeps recycling for the next scan.
	next, err := New(bus, makeFrames(12, 10), countRows)
	require.NoError(t, err)
	defer next.Close()
	require.NoError(t, next.Dispatch(t.Context()))
	n := 0
	require.NoError(t, next.Collect(t.Context(), func(*task.PageFrameReduceTask) error {
		n++
		return nil
	}))
	assert.Equal(t, 12, n)
}

func TestCollect_ContextEnds(t *testing.T) {
	bus := newBus(t, 1, 4)
	seq, err := New(bus, makeFrames(2, 1), countRows)
	require.NoError(t, err)
	defer seq.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	err = seq.Collect(ctx, func(*task.PageFrameReduceTask) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSequence_Lifecycle(t *testing.T) {
	bus := newBus(t, 2, 4)
	seq, err := New(bus, nil, countRows)
	require.NoError(t, err)
	assert.Equal(t, 1, bus.PageFrameCollectFanOut(1).Len())
	assert.NotEqual(t, uuid.Nil, seq.ID())

	require.NoError(t, seq.Collect(t.Context(), nil), "no frames, nothing to wait for")
	require.NoError(t, seq.Close())
	require.NoError(t, seq.Close())
	assert.Zero(t, bus.PageFrameCollectFanOut(1).Len())
	assert.ErrorIs(t, seq.Dispatch(t.Context()), ringbus.ErrClosed)
	assert.ErrorIs(t, seq.Collect(t.Context(), nil), ringbus.ErrClosed)

	_, err = New(bus, nil, nil)
	assert.Error(t, err)

	cfg := config.Default()
	cfg.PageFrameDispatchCapacity = 0
	disabled, err := ringbus.New(cfg)
	require.NoError(t, err)
	defer disabled.Close()
	_, err = New(disabled, nil, countRows)
	assert.ErrorIs(t, err, ringbus.ErrPipelineDisabled)
}

func TestCollect_DispatchAborted(t *testing.T) {
	// One slot per shard: the second frame cannot be dispatched until the
	// collector consumed the first, so the dispatcher gives up when its
	// context ends.
	bus := newBus(t, 1, 1)
	seq, err := New(bus, makeFrames(4, 10), countRows)
	require.NoError(t, err)
	defer seq.Close()
	require.NoError(t, seq.Dispatch(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	require.True(t, NewDispatchJob(bus).Run(ctx, 0))
	require.True(t, seq.IsCancelled())

	collectCtx, cancelCollect := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancelCollect()
	frames := 0
	err = seq.Collect(collectCtx, func(*task.PageFrameReduceTask) error {
		frames++
		return nil
	})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.NoError(t, collectCtx.Err(), "collect returns once the dispatched frames arrived")
	assert.Equal(t, 1, frames)
}

type stubFrames struct {
	id        uuid.UUID
	cancelled atomic.Bool
}

func (s *stubFrames) ID() uuid.UUID                                           { return s.id }
func (s *stubFrames) FrameCount() int                                         { return 3 }
func (s *stubFrames) Frame(int) task.PageFrame                                { return task.PageFrame{} }
func (s *stubFrames) IsCancelled() bool                                       { return s.cancelled.Load() }
func (s *stubFrames) Cancel()                                                 { s.cancelled.Store(true) }
func (s *stubFrames) Reduce(context.Context, *task.PageFrameReduceTask) error { return nil }

func TestDispatch_ReduceDisabled(t *testing.T) {
	bus := newBus(t, 0, 0)
	require.False(t, bus.Enabled(ringbus.PageFrameReduce))

	seq := &stubFrames{id: uuid.New()}
	_, err := ringbus.Produce(t.Context(), bus, ringbus.PageFrameDispatch, 0, func(dt *task.PageFrameDispatchTask) {
		dt.Of(seq)
	})
	require.NoError(t, err)

	dispatch := NewDispatchJob(bus)
	assert.NotPanics(t, func() {
		assert.True(t, dispatch.Run(t.Context(), 0))
	})
	assert.True(t, seq.IsCancelled())
	assert.Nil(t, bus.PageFrameDispatchQueue().Get(0).Sequence, "dispatch slot cleared")
	assert.False(t, dispatch.Run(t.Context(), 0))
}
