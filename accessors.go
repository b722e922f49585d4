package ringbus

import (
	"github.com/hupe1980/ringbus/ring"
	"github.com/hupe1980/ringbus/task"
)

// Typed accessors. Each returns nil when the pipeline is disabled, and keeps
// returning the released rings after Close.

// PageFrameDispatchQueue returns the page-frame dispatch ring.
func (b *Bus) PageFrameDispatchQueue() *ring.RingQueue[task.PageFrameDispatchTask] {
	return Queue[task.PageFrameDispatchTask](b, PageFrameDispatch, 0)
}

// PageFrameDispatchPubSeq returns the page-frame dispatch publisher sequence.
func (b *Bus) PageFrameDispatchPubSeq() *ring.MPSequence {
	s, _ := b.PubSequence(PageFrameDispatch, 0).(*ring.MPSequence)
	return s
}

// PageFrameDispatchSubSeq returns the page-frame dispatch consumer sequence.
func (b *Bus) PageFrameDispatchSubSeq() *ring.MCSequence {
	s, _ := b.SubSequence(PageFrameDispatch, 0).(*ring.MCSequence)
	return s
}

// IndexerQueue returns the column indexer ring.
func (b *Bus) IndexerQueue() *ring.RingQueue[task.ColumnIndexerTask] {
	return Queue[task.ColumnIndexerTask](b, ColumnIndexer, 0)
}

// IndexerPubSeq returns the column indexer publisher sequence.
func (b *Bus) IndexerPubSeq() *ring.SPSequence {
	s, _ := b.PubSequence(ColumnIndexer, 0).(*ring.SPSequence)
	return s
}

// IndexerSubSeq returns the column indexer consumer sequence.
func (b *Bus) IndexerSubSeq() *ring.SCSequence {
	s, _ := b.SubSequence(ColumnIndexer, 0).(*ring.SCSequence)
	return s
}

// LatestByQueue returns the latest-by ring.
func (b *Bus) LatestByQueue() *ring.RingQueue[task.LatestByTask] {
	return Queue[task.LatestByTask](b, LatestBy, 0)
}

// LatestByPubSeq returns the latest-by publisher sequence.
func (b *Bus) LatestByPubSeq() *ring.SPSequence {
	s, _ := b.PubSequence(LatestBy, 0).(*ring.SPSequence)
	return s
}

// LatestBySubSeq returns the latest-by consumer sequence.
func (b *Bus) LatestBySubSeq() *ring.SCSequence {
	s, _ := b.SubSequence(LatestBy, 0).(*ring.SCSequence)
	return s
}

// O3CallbackQueue returns the O3 callback ring.
func (b *Bus) O3CallbackQueue() *ring.RingQueue[task.O3CallbackTask] {
	return Queue[task.O3CallbackTask](b, O3Callback, 0)
}

// O3CallbackPubSeq returns the O3 callback publisher sequence.
func (b *Bus) O3CallbackPubSeq() *ring.MPSequence {
	s, _ := b.PubSequence(O3Callback, 0).(*ring.MPSequence)
	return s
}

// O3CallbackSubSeq returns the O3 callback consumer sequence.
func (b *Bus) O3CallbackSubSeq() *ring.MCSequence {
	s, _ := b.SubSequence(O3Callback, 0).(*ring.MCSequence)
	return s
}

// O3CopyQueue returns the O3 copy ring.
func (b *Bus) O3CopyQueue() *ring.RingQueue[task.O3CopyTask] {
	return Queue[task.O3CopyTask](b, O3Copy, 0)
}

// O3CopyPubSeq returns the O3 copy publisher sequence.
func (b *Bus) O3CopyPubSeq() *ring.MPSequence {
	s, _ := b.PubSequence(O3Copy, 0).(*ring.MPSequence)
	return s
}

// O3CopySubSeq returns the O3 copy consumer sequence.
func (b *Bus) O3CopySubSeq() *ring.MCSequence {
	s, _ := b.SubSequence(O3Copy, 0).(*ring.MCSequence)
	return s
}

// O3OpenColumnQueue returns the O3 open-column ring.
func (b *Bus) O3OpenColumnQueue() *ring.RingQueue[task.O3OpenColumnTask] {
	return Queue[task.O3OpenColumnTask](b, O3OpenColumn, 0)
}

// O3OpenColumnPubSeq returns the O3 open-column publisher sequence.
func (b *Bus) O3OpenColumnPubSeq() *ring.MPSequence {
	s, _ := b.PubSequence(O3OpenColumn, 0).(*ring.MPSequence)
	return s
}

// O3OpenColumnSubSeq returns the O3 open-column consumer sequence.
func (b *Bus) O3OpenColumnSubSeq() *ring.MCSequence {
	s, _ := b.SubSequence(O3OpenColumn, 0).(*ring.MCSequence)
	return s
}

// O3PartitionQueue returns the O3 partition ring.
func (b *Bus) O3PartitionQueue() *ring.RingQueue[task.O3PartitionTask] {
	return Queue[task.O3PartitionTask](b, O3Partition, 0)
}

// O3PartitionPubSeq returns the O3 partition publisher sequence.
func (b *Bus) O3PartitionPubSeq() *ring.MPSequence {
	s, _ := b.PubSequence(O3Partition, 0).(*ring.MPSequence)
	return s
}

// O3PartitionSubSeq returns the O3 partition consumer sequence.
func (b *Bus) O3PartitionSubSeq() *ring.MCSequence {
	s, _ := b.SubSequence(O3Partition, 0).(*ring.MCSequence)
	return s
}

// O3PurgeDiscoveryQueue returns the O3 purge-discovery ring.
func (b *Bus) O3PurgeDiscoveryQueue() *ring.RingQueue[task.O3PurgeDiscoveryTask] {
	return Queue[task.O3PurgeDiscoveryTask](b, O3PurgeDiscovery, 0)
}

// O3PurgeDiscoveryPubSeq returns the O3 purge-discovery publisher sequence.
func (b *Bus) O3PurgeDiscoveryPubSeq() *ring.MPSequence {
	s, _ := b.PubSequence(O3PurgeDiscovery, 0).(*ring.MPSequence)
	return s
}

// O3PurgeDiscoverySubSeq returns the O3 purge-discovery consumer sequence.
func (b *Bus) O3PurgeDiscoverySubSeq() *ring.MCSequence {
	s, _ := b.SubSequence(O3PurgeDiscovery, 0).(*ring.MCSequence)
	return s
}

// VectorAggregateQueue returns the vector aggregate ring.
func (b *Bus) VectorAggregateQueue() *ring.RingQueue[task.VectorAggregateTask] {
	return Queue[task.VectorAggregateTask](b, VectorAggregate, 0)
}

// VectorAggregatePubSeq returns the vector aggregate publisher sequence.
func (b *Bus) VectorAggregatePubSeq() *ring.SPSequence {
	s, _ := b.PubSequence(VectorAggregate, 0).(*ring.SPSequence)
	return s
}

// VectorAggregateSubSeq returns the vector aggregate consumer sequence.
func (b *Bus) VectorAggregateSubSeq() *ring.SCSequence {
	s, _ := b.SubSequence(VectorAggregate, 0).(*ring.SCSequence)
	return s
}

// PageFrameReduceShardCount returns the number of reduce shards.
func (b *Bus) PageFrameReduceShardCount() int { return b.ShardCount(PageFrameReduce) }

// PageFrameReduceQueue returns the reduce ring of shard.
func (b *Bus) PageFrameReduceQueue(shard int) *ring.RingQueue[task.PageFrameReduceTask] {
	return Queue[task.PageFrameReduceTask](b, PageFrameReduce, shard)
}

// PageFrameReducePubSeq returns the sequence the dispatcher claims reduce
// slots on for shard.
func (b *Bus) PageFrameReducePubSeq(shard int) *ring.MPSequence {
	s, _ := b.PubSequence(PageFrameReduce, shard).(*ring.MPSequence)
	return s
}

// PageFrameReduceSubSeq returns the sequence reducers claim frames on for
// shard.
func (b *Bus) PageFrameReduceSubSeq(shard int) *ring.MCSequence {
	s, _ := b.SubSequence(PageFrameReduce, shard).(*ring.MCSequence)
	return s
}

// PageFrameCollectFanOut returns the fan-out page-frame sequences join to
// collect the reduced frames of shard.
func (b *Bus) PageFrameCollectFanOut(shard int) *ring.FanOut {
	return b.FanOut(PageFrameReduce, shard)
}

// PageFrameCleanupSubSeq returns the sequence that recycles reduce slots of
// shard once every collector has passed them.
func (b *Bus) PageFrameCleanupSubSeq(shard int) *ring.MCSequence {
	s, _ := b.CleanupSequence(PageFrameReduce, shard).(*ring.MCSequence)
	return s
}

// TableWriterCommandQueue returns the table writer command ring.
func (b *Bus) TableWriterCommandQueue() *ring.RingQueue[task.TableWriterTask] {
	return Queue[task.TableWriterTask](b, TableWriterCommand, 0)
}

// TableWriterCommandPubSeq returns the table writer command publisher sequence.
func (b *Bus) TableWriterCommandPubSeq() *ring.MPSequence {
	s, _ := b.PubSequence(TableWriterCommand, 0).(*ring.MPSequence)
	return s
}

// TableWriterCommandFanOut returns the table writer command listener group.
func (b *Bus) TableWriterCommandFanOut() *ring.FanOut {
	return b.FanOut(TableWriterCommand, 0)
}

// TableWriterEventQueue returns the table writer event ring.
func (b *Bus) TableWriterEventQueue() *ring.RingQueue[task.TableWriterTask] {
	return Queue[task.TableWriterTask](b, TableWriterEvent, 0)
}

// TableWriterEventPubSeq returns the table writer event publisher sequence.
func (b *Bus) TableWriterEventPubSeq() *ring.MPSequence {
	s, _ := b.PubSequence(TableWriterEvent, 0).(*ring.MPSequence)
	return s
}

// TableWriterEventFanOut returns the table writer event listener group.
func (b *Bus) TableWriterEventFanOut() *ring.FanOut {
	return b.FanOut(TableWriterEvent, 0)
}
