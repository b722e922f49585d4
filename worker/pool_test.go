package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ringbus"
	"github.com/hupe1980/ringbus/config"
	"github.com/hupe1980/ringbus/ring"
	"github.com/hupe1980/ringbus/task"
)

func newBus(t *testing.T, mutate func(*config.Config), opts ...ringbus.Option) *ringbus.Bus {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	b, err := ringbus.New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestPool_Lifecycle(t *testing.T) {
	p := NewPool(2)
	assert.Equal(t, 2, p.Size())
	assert.NoError(t, p.Close(), "close before start")
	assert.ErrorIs(t, p.Start(t.Context()), ErrPoolClosed)

	p = NewPool(0)
	assert.Positive(t, p.Size())
	require.NoError(t, p.Start(t.Context()))
	assert.ErrorIs(t, p.Start(t.Context()), ErrPoolStarted)
	assert.ErrorIs(t, p.Assign(JobFunc(func(context.Context, int) bool { return false })), ErrPoolStarted)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}

func TestPool_AssignTo(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	var ran [2]atomic.Int64
	for id := range 2 {
		require.NoError(t, p.AssignTo(id, JobFunc(func(_ context.Context, workerID int) bool {
			ran[workerID].Add(1)
			return false
		})))
	}
	assert.ErrorIs(t, p.AssignTo(2, JobFunc(nil)), ErrInvalidWorker)
	assert.ErrorIs(t, p.AssignTo(-1, JobFunc(nil)), ErrInvalidWorker)

	require.NoError(t, p.Start(t.Context()))
	require.Eventually(t, func() bool {
		return ran[0].Load() > 0 && ran[1].Load() > 0
	}, 5*time.Second, time.Millisecond)
}

func TestPool_RecoversPanics(t *testing.T) {
	p := NewPool(1, WithWaitStrategy(ring.NewWaitStrategy(ring.WaitConfig{Kind: ring.WaitYield})))
	defer p.Close()

	var calls atomic.Int64
	require.NoError(t, p.Assign(JobFunc(func(context.Context, int) bool {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return false
	})))
	require.NoError(t, p.Start(t.Context()))

	require.Eventually(t, func() bool { return calls.Load() > 3 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, int64(1), p.Panics())
}

func TestPool_StopsWithContext(t *testing.T) {
	p := NewPool(2)
	ctx, cancel := context.WithCancel(t.Context())
	require.NoError(t, p.Start(ctx))
	cancel()

	done := make(chan error, 1)
	go func() { done <- p.Close() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestQueueJob_DrainsWorkQueue(t *testing.T) {
	const n = 1000
	metrics := &ringbus.BasicMetricsCollector{}
	bus := newBus(t, func(c *config.Config) { c.O3CopyCapacity = 32 }, ringbus.WithMetricsCollector(metrics))

	var copied atomic.Int64
	job, err := ForPipeline(bus, ringbus.O3Copy, 0, func(_ context.Context, _ int64, ct *task.O3CopyTask) error {
		copied.Add(ct.SrcHi - ct.SrcLo + 1)
		if ct.ColumnIndex%10 == 0 {
			err := errors.New("short write")
			ct.Complete(err)
			return err
		}
		ct.Complete(nil)
		return nil
	}, WithBatch(4))
	require.NoError(t, err)

	pool := NewPool(3, WithBus(bus))
	require.NoError(t, pool.Assign(job))
	require.NoError(t, pool.Start(t.Context()))
	defer pool.Close()

	var latch task.Latch
	latch.Add(n)
	for i := range n {
		_, err := ringbus.Produce(t.Context(), bus, ringbus.O3Copy, 0, func(ct *task.O3CopyTask) {
			ct.Of("trades", 0, i, task.BlockMerge, 0, 1, 0, nil, &latch)
		})
		require.NoError(t, err)
	}
	latch.Wait()

	assert.Equal(t, int64(2*n), copied.Load())
	require.Eventually(t, func() bool {
		return metrics.Failures(ringbus.O3Copy) == n/10
	}, 5*time.Second, time.Millisecond, "failures are recorded after the latch counts down")
	assert.Zero(t, pool.Panics())
}

func TestQueueJob_HandlerPanicReleasesCursor(t *testing.T) {
	bus := newBus(t, nil)
	q := bus.IndexerQueue()
	sub := bus.IndexerSubSeq()
	job := NewQueueJob(ringbus.ColumnIndexer, q, sub, func(context.Context, int64, *task.ColumnIndexerTask) error {
		panic("corrupt column")
	})

	require.True(t, ringbus.TryProduce(bus, ringbus.ColumnIndexer, 0, func(*task.ColumnIndexerTask) {}))
	assert.Panics(t, func() { job.Run(t.Context(), 0) })
	assert.Equal(t, int64(0), sub.Current())
	assert.Same(t, sub, job.Sequence())
	assert.False(t, job.Run(t.Context(), 0))
}

func TestForPipeline_BroadcastListener(t *testing.T) {
	bus := newBus(t, nil)
	fo := bus.TableWriterEventFanOut()

	var got []int64
	job, err := ForPipeline(bus, ringbus.TableWriterEvent, 0, func(_ context.Context, _ int64, wt *task.TableWriterTask) error {
		got = append(got, wt.Instance)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fo.Len())

	for i := range int64(3) {
		require.True(t, ringbus.TryProduce(bus, ringbus.TableWriterEvent, 0, func(wt *task.TableWriterTask) {
			wt.Of(task.EventCommandComplete, "trades", 1, i, nil)
		}))
	}
	assert.True(t, job.Run(t.Context(), 0))
	assert.Equal(t, []int64{0, 1, 2}, got)

	require.NoError(t, job.Close())
	assert.Zero(t, fo.Len())
}

func TestForPipeline_Errors(t *testing.T) {
	bus := newBus(t, func(c *config.Config) { c.LatestByCapacity = 0 })
	h := func(context.Context, int64, *task.LatestByTask) error { return nil }

	_, err := ForPipeline(bus, ringbus.LatestBy, 0, h)
	assert.ErrorIs(t, err, ringbus.ErrPipelineDisabled)

	_, err = ForPipeline(bus, ringbus.ColumnIndexer, 0, h)
	var qt *ringbus.ErrQueueType
	assert.ErrorAs(t, err, &qt)
}
