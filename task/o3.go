package task

import (
	"fmt"
	"sync/atomic"
)

// O3PartitionTask merges one partition's share of out-of-order rows.
type O3PartitionTask struct {
	Outcome

	TableName          string
	PartitionTimestamp int64
	SrcOooLo           int64
	SrcOooHi           int64
	OooTimestampMin    int64
	OooTimestampMax    int64
	// Last is set on the final partition of a commit.
	Last bool
}

func (t *O3PartitionTask) Of(table string, partitionTimestamp, lo, hi, tsMin, tsMax int64, last bool, latch *Latch) {
	*t = O3PartitionTask{
		TableName:          table,
		PartitionTimestamp: partitionTimestamp,
		SrcOooLo:           lo,
		SrcOooHi:           hi,
		OooTimestampMin:    tsMin,
		OooTimestampMax:    tsMax,
		Last:               last,
	}
	t.Latch = latch
}

func (t *O3PartitionTask) Clear() { *t = O3PartitionTask{} }

// OpenMode tells a column opener how the partition is being rewritten.
type OpenMode int32

const (
	OpenAppend OpenMode = iota
	OpenMergeMiddle
	OpenNewPartition
)

func (m OpenMode) String() string {
	switch m {
	case OpenAppend:
		return "append"
	case OpenMergeMiddle:
		return "merge-middle"
	case OpenNewPartition:
		return "new-partition"
	default:
		return fmt.Sprintf("OpenMode(%d)", int32(m))
	}
}

// O3OpenColumnTask opens (or creates) one column file before its blocks are
// copied. PartCounter is shared by every column task of a partition; the
// task that decrements it to zero finishes the partition.
type O3OpenColumnTask struct {
	Outcome

	TableName          string
	PartitionTimestamp int64
	ColumnIndex        int
	ColumnName         string
	ColumnType         int32
	Mode               OpenMode
	SrcOooLo           int64
	SrcOooHi           int64
	PartCounter        *atomic.Int32
}

func (t *O3OpenColumnTask) Of(table string, partitionTimestamp int64, column int, name string, typ int32, mode OpenMode, lo, hi int64, counter *atomic.Int32, latch *Latch) {
	*t = O3OpenColumnTask{
		TableName:          table,
		PartitionTimestamp: partitionTimestamp,
		ColumnIndex:        column,
		ColumnName:         name,
		ColumnType:         typ,
		Mode:               mode,
		SrcOooLo:           lo,
		SrcOooHi:           hi,
		PartCounter:        counter,
	}
	t.Latch = latch
}

func (t *O3OpenColumnTask) Clear() { *t = O3OpenColumnTask{} }

// BlockType is the part of a partition an O3CopyTask writes.
type BlockType int32

const (
	BlockPrefix BlockType = iota
	BlockMerge
	BlockSuffix
)

func (b BlockType) String() string {
	switch b {
	case BlockPrefix:
		return "prefix"
	case BlockMerge:
		return "merge"
	case BlockSuffix:
		return "suffix"
	default:
		return fmt.Sprintf("BlockType(%d)", int32(b))
	}
}

// O3CopyTask copies rows [SrcLo, SrcHi] of one column block to DstOffset.
type O3CopyTask struct {
	Outcome

	TableName          string
	PartitionTimestamp int64
	ColumnIndex        int
	Block              BlockType
	SrcLo              int64
	SrcHi              int64
	DstOffset          int64
	PartCounter        *atomic.Int32
}

func (t *O3CopyTask) Of(table string, partitionTimestamp int64, column int, block BlockType, lo, hi, dst int64, counter *atomic.Int32, latch *Latch) {
	*t = O3CopyTask{
		TableName:          table,
		PartitionTimestamp: partitionTimestamp,
		ColumnIndex:        column,
		Block:              block,
		SrcLo:              lo,
		SrcHi:              hi,
		DstOffset:          dst,
		PartCounter:        counter,
	}
	t.Latch = latch
}

func (t *O3CopyTask) Clear() { *t = O3CopyTask{} }

// LastPart decrements PartCounter and reports whether the caller finished
// the final part. A task without a counter is always its own last part.
func (t *O3CopyTask) LastPart() bool {
	return t.PartCounter == nil || t.PartCounter.Add(-1) == 0
}

// O3Callback updates one column after its O3 data is in place.
type O3Callback func(t *O3CallbackTask) error

// O3CallbackTask runs Callback for one column of one partition.
type O3CallbackTask struct {
	Outcome

	ColumnIndex        int
	ColumnType         int32
	PartitionTimestamp int64
	RowLo              int64
	RowHi              int64
	Callback           O3Callback
}

func (t *O3CallbackTask) Of(column int, typ int32, partitionTimestamp, lo, hi int64, cb O3Callback, latch *Latch) {
	*t = O3CallbackTask{
		ColumnIndex:        column,
		ColumnType:         typ,
		PartitionTimestamp: partitionTimestamp,
		RowLo:              lo,
		RowHi:              hi,
		Callback:           cb,
	}
	t.Latch = latch
}

// Run invokes the callback and completes the task.
func (t *O3CallbackTask) Run() error {
	var err error
	if t.Callback != nil {
		err = t.Callback(t)
	}
	t.Complete(err)
	return err
}

func (t *O3CallbackTask) Clear() { *t = O3CallbackTask{} }

// O3PurgeDiscoveryTask looks for partition versions older than
// MostRecentTxn that can be removed from disk.
type O3PurgeDiscoveryTask struct {
	Outcome

	TableName          string
	PartitionBy        int32
	PartitionTimestamp int64
	MostRecentTxn      int64
}

func (t *O3PurgeDiscoveryTask) Of(table string, partitionBy int32, partitionTimestamp, txn int64) {
	*t = O3PurgeDiscoveryTask{
		TableName:          table,
		PartitionBy:        partitionBy,
		PartitionTimestamp: partitionTimestamp,
		MostRecentTxn:      txn,
	}
}

func (t *O3PurgeDiscoveryTask) Clear() { *t = O3PurgeDiscoveryTask{} }
