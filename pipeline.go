package ringbus

import (
	"fmt"

	"github.com/hupe1980/ringbus/config"
	"github.com/hupe1980/ringbus/ring"
	"github.com/hupe1980/ringbus/task"
)

// Pipeline names one of the bus's work pipelines.
type Pipeline int

const (
	PageFrameDispatch Pipeline = iota
	PageFrameReduce
	ColumnIndexer
	LatestBy
	O3Callback
	O3Copy
	O3OpenColumn
	O3Partition
	O3PurgeDiscovery
	TableWriterCommand
	TableWriterEvent
	VectorAggregate

	numPipelines
)

var pipelineNames = [numPipelines]string{
	PageFrameDispatch:  "page_frame_dispatch",
	PageFrameReduce:    "page_frame_reduce",
	ColumnIndexer:      "column_indexer",
	LatestBy:           "latest_by",
	O3Callback:         "o3_callback",
	O3Copy:             "o3_copy",
	O3OpenColumn:       "o3_open_column",
	O3Partition:        "o3_partition",
	O3PurgeDiscovery:   "o3_purge_discovery",
	TableWriterCommand: "table_writer_command",
	TableWriterEvent:   "table_writer_event",
	VectorAggregate:    "vector_aggregate",
}

func (p Pipeline) String() string {
	if p.Valid() {
		return pipelineNames[p]
	}
	return fmt.Sprintf("Pipeline(%d)", int(p))
}

// Valid reports whether p names a known pipeline.
func (p Pipeline) Valid() bool { return p >= 0 && p < numPipelines }

// Pipelines returns every pipeline in declaration order.
func Pipelines() []Pipeline {
	ps := make([]Pipeline, numPipelines)
	for i := range ps {
		ps[i] = Pipeline(i)
	}
	return ps
}

// Topology is the producer/consumer discipline a pipeline is wired with.
type Topology int

const (
	// TopologyWorkQueue is MP pub -> MC sub -> pub.
	TopologyWorkQueue Topology = iota
	// TopologySingle is SP pub -> SC sub -> pub.
	TopologySingle
	// TopologyBroadcast is MP pub -> FanOut -> pub.
	TopologyBroadcast
	// TopologyScatterGather is MP pub -> MC reduce -> collect FanOut ->
	// MC cleanup -> pub.
	TopologyScatterGather
)

func (t Topology) String() string {
	switch t {
	case TopologyWorkQueue:
		return "work-queue"
	case TopologySingle:
		return "single"
	case TopologyBroadcast:
		return "broadcast"
	case TopologyScatterGather:
		return "scatter-gather"
	default:
		return fmt.Sprintf("Topology(%d)", int(t))
	}
}

// Topology returns how p is wired.
func (p Pipeline) Topology() Topology {
	switch p {
	case ColumnIndexer, LatestBy, VectorAggregate:
		return TopologySingle
	case TableWriterCommand, TableWriterEvent:
		return TopologyBroadcast
	case PageFrameReduce:
		return TopologyScatterGather
	default:
		return TopologyWorkQueue
	}
}

// capacity returns the configured ring capacity of p.
func (p Pipeline) capacity(cfg config.Config) int {
	switch p {
	case PageFrameDispatch:
		return cfg.PageFrameDispatchCapacity
	case PageFrameReduce:
		return cfg.PageFrameReduceCapacity
	case ColumnIndexer:
		return cfg.ColumnIndexerCapacity
	case LatestBy:
		return cfg.LatestByCapacity
	case O3Callback:
		return cfg.O3CallbackCapacity
	case O3Copy:
		return cfg.O3CopyCapacity
	case O3OpenColumn:
		return cfg.O3OpenColumnCapacity
	case O3Partition:
		return cfg.O3PartitionCapacity
	case O3PurgeDiscovery:
		return cfg.O3PurgeDiscoveryCapacity
	case TableWriterCommand:
		return cfg.TableWriterCommandCapacity
	case TableWriterEvent:
		return cfg.TableWriterEventCapacity
	case VectorAggregate:
		return cfg.VectorAggregateCapacity
	default:
		return 0
	}
}

func (p Pipeline) shards(cfg config.Config) int {
	if p == PageFrameReduce {
		return cfg.PageFrameReduceShardCount
	}
	return 1
}

// shard is one wired ring: its queue and the sequences coordinating it.
type shard struct {
	queue   any
	release func() error

	capacity int
	pub      ring.Sequence
	sub      ring.Sequence
	fanOut   *ring.FanOut
	cleanup  ring.Sequence
}

func newShard(p Pipeline, capacity int, wait ring.WaitStrategy) (*shard, error) {
	switch p {
	case PageFrameDispatch:
		return wire[task.PageFrameDispatchTask](p.Topology(), capacity, nil, wait)
	case PageFrameReduce:
		return wire(p.Topology(), capacity, (*task.PageFrameReduceTask).Init, wait)
	case ColumnIndexer:
		return wire[task.ColumnIndexerTask](p.Topology(), capacity, nil, wait)
	case LatestBy:
		return wire(p.Topology(), capacity, (*task.LatestByTask).Init, wait)
	case O3Callback:
		return wire[task.O3CallbackTask](p.Topology(), capacity, nil, wait)
	case O3Copy:
		return wire[task.O3CopyTask](p.Topology(), capacity, nil, wait)
	case O3OpenColumn:
		return wire[task.O3OpenColumnTask](p.Topology(), capacity, nil, wait)
	case O3Partition:
		return wire[task.O3PartitionTask](p.Topology(), capacity, nil, wait)
	case O3PurgeDiscovery:
		return wire[task.O3PurgeDiscoveryTask](p.Topology(), capacity, nil, wait)
	case TableWriterCommand, TableWriterEvent:
		return wire[task.TableWriterTask](p.Topology(), capacity, nil, wait)
	case VectorAggregate:
		return wire[task.VectorAggregateTask](p.Topology(), capacity, nil, wait)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPipeline, int(p))
	}
}

func wire[T any](topology Topology, capacity int, init func(*T), wait ring.WaitStrategy) (*shard, error) {
	q, err := ring.NewRingQueue(capacity, init)
	if err != nil {
		return nil, err
	}
	s := &shard{queue: q, release: q.Close, capacity: q.Capacity()}

	switch topology {
	case TopologySingle:
		pub := ring.NewSPSequence(s.capacity, wait)
		sub := ring.NewSCSequence(wait)
		pub.Then(sub).Then(pub)
		s.pub, s.sub = pub, sub
	case TopologyBroadcast:
		pub := ring.NewMPSequence(s.capacity, wait)
		fo := ring.NewFanOut(wait)
		pub.Then(fo).Then(pub)
		s.pub, s.fanOut = pub, fo
	case TopologyScatterGather:
		pub := ring.NewMPSequence(s.capacity, wait)
		sub := ring.NewMCSequence(s.capacity, wait)
		fo := ring.NewFanOut(wait)
		cleanup := ring.NewMCSequence(s.capacity, wait)
		pub.Then(sub).Then(fo).Then(cleanup).Then(pub)
		s.pub, s.sub, s.fanOut, s.cleanup = pub, sub, fo, cleanup
	default:
		pub := ring.NewMPSequence(s.capacity, wait)
		sub := ring.NewMCSequence(s.capacity, wait)
		pub.Then(sub).Then(pub)
		s.pub, s.sub = pub, sub
	}
	return s, nil
}
