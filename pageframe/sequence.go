package pageframe

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"github.com/hupe1980/ringbus"
	"github.com/hupe1980/ringbus/ring"
	"github.com/hupe1980/ringbus/task"
)

// ErrCancelled is returned by Collect when the sequence was cancelled before
// every frame was reduced.
var ErrCancelled = errors.New("page frame sequence cancelled")

// Reducer processes t.Frame and writes its result into t.
type Reducer func(ctx context.Context, t *task.PageFrameReduceTask) error

// Sequence is one scan split into page frames.
type Sequence struct {
	id      uuid.UUID
	bus     *ringbus.Bus
	frames  []task.PageFrame
	reducer Reducer

	collectors []*ring.SCSequence
	// expected is the number of frames Collect waits for; it drops below
	// len(frames) when dispatch is aborted.
	expected  atomic.Int64
	cancelled atomic.Bool
	closed    atomic.Bool
}

var _ task.FrameSequence = (*Sequence)(nil)

// New creates a sequence and joins it to every reduce shard's collect
// fan-out. Close must be called once the sequence is collected, otherwise
// the reduce rings stop recycling.
func New(b *ringbus.Bus, frames []task.PageFrame, reducer Reducer) (*Sequence, error) {
	if !b.Enabled(ringbus.PageFrameDispatch) {
		return nil, fmt.Errorf("%w: %s", ringbus.ErrPipelineDisabled, ringbus.PageFrameDispatch)
	}
	if !b.Enabled(ringbus.PageFrameReduce) {
		return nil, fmt.Errorf("%w: %s", ringbus.ErrPipelineDisabled, ringbus.PageFrameReduce)
	}
	if reducer == nil {
		return nil, errors.New("pageframe: nil reducer")
	}

	s := &Sequence{
		id:         uuid.New(),
		bus:        b,
		frames:     frames,
		reducer:    reducer,
		collectors: make([]*ring.SCSequence, b.PageFrameReduceShardCount()),
	}
	s.expected.Store(int64(len(frames)))
	for i := range s.collectors {
		s.collectors[i] = b.PageFrameCollectFanOut(i).AddConsumer()
	}
	return s, nil
}

func (s *Sequence) ID() uuid.UUID              { return s.id }
func (s *Sequence) FrameCount() int            { return len(s.frames) }
func (s *Sequence) Frame(i int) task.PageFrame { return s.frames[i] }
func (s *Sequence) IsCancelled() bool          { return s.cancelled.Load() }

// Cancel makes reducers skip the remaining frames. Their slots still flow
// through collect and cleanup.
func (s *Sequence) Cancel() { s.cancelled.Store(true) }

// abort cancels the sequence after only its first n frames were dispatched.
// Collect then stops once those n frames arrived.
func (s *Sequence) abort(n int) {
	s.expected.Store(int64(n))
	s.Cancel()
	s.bus.WaitStrategy().Signal()
}

func (s *Sequence) Reduce(ctx context.Context, t *task.PageFrameReduceTask) error {
	return s.reducer(ctx, t)
}

// Dispatch hands the sequence to the dispatch pipeline.
func (s *Sequence) Dispatch(ctx context.Context) error {
	if s.closed.Load() {
		return ringbus.ErrClosed
	}
	_, err := ringbus.Produce(ctx, s.bus, ringbus.PageFrameDispatch, 0, func(t *task.PageFrameDispatchTask) {
		t.Of(s)
	})
	return err
}

// Collect hands every reduced frame of this sequence to fn, in completion
// order, and returns once all frames have arrived. Frames of other sequences
// are skipped. If fn fails the sequence is cancelled, the remaining frames
// are drained without calling fn, and the first error is returned. When
// dispatch was aborted part way, Collect returns ErrCancelled once the frames
// that were dispatched have arrived.
func (s *Sequence) Collect(ctx context.Context, fn func(t *task.PageFrameReduceTask) error) error {
	if s.closed.Load() {
		return ringbus.ErrClosed
	}

	var (
		seen     = roaring.New()
		firstErr error
		ws       = s.bus.WaitStrategy()
	)
	remaining := func() bool { return seen.GetCardinality() < uint64(s.expected.Load()) }
	ready := func() bool { return !remaining() || s.pending() }

	for attempt := 0; remaining(); {
		progressed := false
		for shard, c := range s.collectors {
			cursor := c.Next()
			if cursor == ring.Unavailable {
				continue
			}
			progressed = true
			t := s.bus.PageFrameReduceQueue(shard).Get(cursor)
			if t.SequenceID == s.id && seen.CheckedAdd(uint32(t.FrameIndex)) {
				if firstErr == nil {
					if err := s.result(t, fn); err != nil {
						firstErr = err
						s.Cancel()
					}
				}
			}
			c.Done(cursor)
		}
		if progressed {
			attempt = 0
			continue
		}
		if err := ws.Idle(ctx, attempt, ready); err != nil {
			return err
		}
		attempt++
	}
	if firstErr == nil && seen.GetCardinality() < uint64(len(s.frames)) {
		return ErrCancelled
	}
	return firstErr
}

func (s *Sequence) result(t *task.PageFrameReduceTask, fn func(*task.PageFrameReduceTask) error) error {
	switch t.Status {
	case task.StatusFailed:
		return fmt.Errorf("frame %d: %w", t.FrameIndex, t.Err)
	case task.StatusCancelled:
		return ErrCancelled
	}
	return fn(t)
}

func (s *Sequence) pending() bool {
	for _, c := range s.collectors {
		cur := c.Current()
		if c.Barrier().Available(cur+1) > cur {
			return true
		}
	}
	return false
}

// Close leaves the collect fan-outs. It is idempotent.
func (s *Sequence) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	for i, c := range s.collectors {
		if fo := s.bus.PageFrameCollectFanOut(i); fo != nil {
			fo.Remove(c)
		}
	}
	return nil
}
