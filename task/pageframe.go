package task

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
)

// PageFrame is a bounded slice [RowLo, RowHi) of one partition of a scan.
type PageFrame struct {
	PartitionIndex int
	RowLo          int64
	RowHi          int64
}

// Rows returns the number of rows in the frame.
func (f PageFrame) Rows() int64 { return f.RowHi - f.RowLo }

// FrameSequence is one scan split into page frames. It is implemented by the
// query side; reduce workers only see it through this interface.
type FrameSequence interface {
	ID() uuid.UUID
	FrameCount() int
	Frame(i int) PageFrame
	IsCancelled() bool
	// Reduce processes t.Frame and writes the result into t in place.
	Reduce(ctx context.Context, t *PageFrameReduceTask) error
}

// PageFrameDispatchTask asks a dispatcher to scatter a frame sequence across
// the reduce shards.
type PageFrameDispatchTask struct {
	Sequence FrameSequence
}

func (t *PageFrameDispatchTask) Of(seq FrameSequence) { t.Sequence = seq }

func (t *PageFrameDispatchTask) Clear() { t.Sequence = nil }

// PageFrameReduceTask is one frame of work. Reducers fill Rows (frame-relative
// offsets of matching rows) and optionally Value/Count; collectors read them
// back once the collect fan-out publishes the slot.
type PageFrameReduceTask struct {
	Outcome

	Sequence   FrameSequence
	SequenceID uuid.UUID
	FrameIndex int
	Frame      PageFrame

	Rows  *roaring.Bitmap
	Value float64
	Count int64
}

// Init allocates the per-slot row bitmap. Pass it as the ring queue's init
// hook so every slot owns exactly one bitmap for its lifetime.
func (t *PageFrameReduceTask) Init() { t.Rows = roaring.New() }

// Of prepares the task for frame i of seq.
func (t *PageFrameReduceTask) Of(seq FrameSequence, i int) {
	t.Outcome.clear()
	t.Sequence = seq
	t.SequenceID = seq.ID()
	t.FrameIndex = i
	t.Frame = seq.Frame(i)
	t.Value = 0
	t.Count = 0
	if t.Rows != nil {
		t.Rows.Clear()
	}
}

// Clear recycles the record, keeping the bitmap's storage.
func (t *PageFrameReduceTask) Clear() {
	t.Outcome.clear()
	t.Sequence = nil
	t.SequenceID = uuid.Nil
	t.FrameIndex = 0
	t.Frame = PageFrame{}
	t.Value = 0
	t.Count = 0
	if t.Rows != nil {
		t.Rows.Clear()
	}
}

// Close drops the bitmap.
func (t *PageFrameReduceTask) Close() error {
	t.Sequence = nil
	t.Rows = nil
	return nil
}
