package task

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// ColumnIndexerTask asks a background job to index rows [RowLo, RowHi) of
// one column partition.
type ColumnIndexerTask struct {
	Outcome

	TableName          string
	ColumnIndex        int
	PartitionTimestamp int64
	RowLo              int64
	RowHi              int64
	// Sequence is an opaque correlation value chosen by the producer.
	Sequence int64
}

func (t *ColumnIndexerTask) Of(table string, column int, partitionTimestamp, lo, hi, sequence int64, latch *Latch) {
	t.Outcome.clear()
	t.TableName = table
	t.ColumnIndex = column
	t.PartitionTimestamp = partitionTimestamp
	t.RowLo = lo
	t.RowHi = hi
	t.Sequence = sequence
	t.Latch = latch
}

func (t *ColumnIndexerTask) Clear() { *t = ColumnIndexerTask{} }

// LatestByTask finds, for symbol keys [KeyLo, KeyHi), the latest row in
// [RowLo, RowHi) of one partition. Found rows are written to Rows.
type LatestByTask struct {
	Outcome

	PartitionIndex int
	KeyLo          int32
	KeyHi          int32
	RowLo          int64
	RowHi          int64
	Rows           *roaring.Bitmap
}

// Init allocates the per-slot result bitmap.
func (t *LatestByTask) Init() { t.Rows = roaring.New() }

func (t *LatestByTask) Of(partition int, keyLo, keyHi int32, rowLo, rowHi int64, latch *Latch) {
	t.Outcome.clear()
	t.PartitionIndex = partition
	t.KeyLo = keyLo
	t.KeyHi = keyHi
	t.RowLo = rowLo
	t.RowHi = rowHi
	t.Latch = latch
	if t.Rows != nil {
		t.Rows.Clear()
	}
}

func (t *LatestByTask) Clear() {
	rows := t.Rows
	*t = LatestByTask{Rows: rows}
	if rows != nil {
		rows.Clear()
	}
}

func (t *LatestByTask) Close() error {
	t.Rows = nil
	return nil
}

// AggregateFunc is the vectorised aggregate a VectorAggregateTask computes.
type AggregateFunc int32

const (
	AggregateCount AggregateFunc = iota
	AggregateSum
	AggregateMin
	AggregateMax
)

func (f AggregateFunc) String() string {
	switch f {
	case AggregateCount:
		return "count"
	case AggregateSum:
		return "sum"
	case AggregateMin:
		return "min"
	case AggregateMax:
		return "max"
	default:
		return fmt.Sprintf("AggregateFunc(%d)", int32(f))
	}
}

// VectorAggregateTask aggregates one column over one partition frame.
type VectorAggregateTask struct {
	Outcome

	Func           AggregateFunc
	ColumnIndex    int
	PartitionIndex int
	RowLo          int64
	RowHi          int64

	Result float64
	Count  int64
}

func (t *VectorAggregateTask) Of(fn AggregateFunc, column, partition int, lo, hi int64, latch *Latch) {
	*t = VectorAggregateTask{
		Func:           fn,
		ColumnIndex:    column,
		PartitionIndex: partition,
		RowLo:          lo,
		RowHi:          hi,
	}
	t.Latch = latch
}

func (t *VectorAggregateTask) Clear() { *t = VectorAggregateTask{} }
