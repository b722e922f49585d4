package pageframe

import (
	"context"
	"sync/atomic"

	"github.com/hupe1980/ringbus"
	"github.com/hupe1980/ringbus/ring"
	"github.com/hupe1980/ringbus/task"
	"github.com/hupe1980/ringbus/worker"
)

// ReduceJob reduces frames from every shard, starting at the shard matching
// the worker id so workers spread across shards.
type ReduceJob struct {
	bus     *ringbus.Bus
	logger  *ringbus.Logger
	metrics ringbus.MetricsCollector
}

var (
	_ worker.Job    = (*ReduceJob)(nil)
	_ worker.Pender = (*ReduceJob)(nil)
)

func NewReduceJob(b *ringbus.Bus) *ReduceJob {
	return &ReduceJob{
		bus:     b,
		logger:  b.Logger().WithPipeline(ringbus.PageFrameReduce),
		metrics: b.Metrics(),
	}
}

// Run reduces at most one frame per shard.
func (j *ReduceJob) Run(ctx context.Context, workerID int) bool {
	n := j.bus.PageFrameReduceShardCount()
	useful := false
	for k := range n {
		shard := (workerID + k) % n
		if j.reduceOne(ctx, shard) {
			useful = true
		}
	}
	return useful
}

func (j *ReduceJob) reduceOne(ctx context.Context, shard int) bool {
	sub := j.bus.PageFrameReduceSubSeq(shard)
	c := sub.Next()
	if c == ring.Unavailable {
		return false
	}
	defer sub.Done(c)

	t := j.bus.PageFrameReduceQueue(shard).Get(c)
	switch {
	case t.Sequence == nil:
		t.Complete(nil)
	case t.Sequence.IsCancelled():
		t.Cancel()
	default:
		err := t.Sequence.Reduce(ctx, t)
		t.Complete(err)
		if err != nil {
			j.logger.WithShard(shard).LogTaskFailure(ctx, ringbus.PageFrameReduce, c, err)
			j.metrics.RecordTaskFailure(ringbus.PageFrameReduce, err)
		}
	}
	return true
}

func (j *ReduceJob) Pending() bool {
	for shard := range j.bus.PageFrameReduceShardCount() {
		if worker.Pending(j.bus.PageFrameReduceSubSeq(shard)) {
			return true
		}
	}
	return false
}

// CleanupJob clears reduce slots that every collector has passed, returning
// them to the producers.
type CleanupJob struct {
	bus *ringbus.Bus
}

var (
	_ worker.Job    = (*CleanupJob)(nil)
	_ worker.Pender = (*CleanupJob)(nil)
)

func NewCleanupJob(b *ringbus.Bus) *CleanupJob { return &CleanupJob{bus: b} }

func (j *CleanupJob) Run(_ context.Context, workerID int) bool {
	n := j.bus.PageFrameReduceShardCount()
	useful := false
	for k := range n {
		shard := (workerID + k) % n
		if ring.TryConsume(j.bus.PageFrameCleanupSubSeq(shard), j.bus.PageFrameReduceQueue(shard), func(_ int64, t *task.PageFrameReduceTask) {
			t.Clear()
		}) {
			useful = true
		}
	}
	return useful
}

func (j *CleanupJob) Pending() bool {
	for shard := range j.bus.PageFrameReduceShardCount() {
		if worker.Pending(j.bus.PageFrameCleanupSubSeq(shard)) {
			return true
		}
	}
	return false
}

// DispatchJob expands dispatch tasks into reduce tasks. Frames go to shards
// round-robin; while the target shard is full the dispatcher reduces and
// cleans up frames itself instead of waiting.
type DispatchJob struct {
	bus     *ringbus.Bus
	reduce  *ReduceJob
	cleanup *CleanupJob
	next    atomic.Uint64
}

var (
	_ worker.Job    = (*DispatchJob)(nil)
	_ worker.Pender = (*DispatchJob)(nil)
)

func NewDispatchJob(b *ringbus.Bus) *DispatchJob {
	return &DispatchJob{
		bus:     b,
		reduce:  NewReduceJob(b),
		cleanup: NewCleanupJob(b),
	}
}

// aborter is implemented by sequences that can be told how many of their
// frames were dispatched before dispatch gave up.
type aborter interface {
	abort(dispatched int)
}

// Run dispatches at most one sequence. With the reduce pipeline disabled the
// task is dropped and the sequence aborted with no frames dispatched.
func (j *DispatchJob) Run(ctx context.Context, workerID int) bool {
	sub := j.bus.PageFrameDispatchSubSeq()
	q := j.bus.PageFrameDispatchQueue()

	c := sub.Next()
	if c == ring.Unavailable {
		return false
	}
	t := q.Get(c)
	seq := t.Sequence
	t.Clear()
	sub.Done(c)

	switch {
	case seq == nil:
	case j.bus.PageFrameReduceShardCount() == 0:
		abort(seq, 0)
	default:
		j.dispatch(ctx, workerID, seq)
	}
	return true
}

func (j *DispatchJob) dispatch(ctx context.Context, workerID int, seq task.FrameSequence) {
	shards := uint64(j.bus.PageFrameReduceShardCount())
	ws := j.bus.WaitStrategy()

	for i := range seq.FrameCount() {
		shard := int(j.next.Add(1) % shards)
		pub := j.bus.PageFrameReducePubSeq(shard)
		q := j.bus.PageFrameReduceQueue(shard)

		ready := func() bool {
			lo := pub.Current() + 1 - int64(q.Capacity())
			return pub.Barrier().Available(lo) >= lo || j.reduce.Pending() || j.cleanup.Pending()
		}

		c := pub.Next()
		for attempt := 0; c == ring.Unavailable; c = pub.Next() {
			stole := j.reduce.Run(ctx, workerID)
			if j.cleanup.Run(ctx, workerID) {
				stole = true
			}
			if stole {
				attempt = 0
				continue
			}
			if err := ws.Idle(ctx, attempt, ready); err != nil {
				// Frames i and later never reach the collector.
				abort(seq, i)
				return
			}
			attempt++
		}
		q.Get(c).Of(seq, i)
		pub.Done(c)
	}
}

func abort(seq task.FrameSequence, dispatched int) {
	switch s := seq.(type) {
	case aborter:
		s.abort(dispatched)
	case interface{ Cancel() }:
		s.Cancel()
	}
}

func (j *DispatchJob) Pending() bool {
	return worker.Pending(j.bus.PageFrameDispatchSubSeq())
}

// Assign adds the dispatch, reduce and cleanup jobs to every worker of pool.
func Assign(pool *worker.Pool, b *ringbus.Bus) error {
	for _, j := range []worker.Job{NewDispatchJob(b), NewReduceJob(b), NewCleanupJob(b)} {
		if err := pool.Assign(j); err != nil {
			return err
		}
	}
	return nil
}
