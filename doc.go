// Package ringbus provides the in-process message bus of a columnar database
// engine: a fixed set of named pipelines, each a pre-allocated ring of task
// records coordinated by lock-free sequences.
//
// # Quick Start
//
//	bus, _ := ringbus.New(config.Default(), ringbus.WithLogLevel(slog.LevelInfo))
//	defer bus.Close()
//
//	// Publish an O3 partition task.
//	ringbus.Produce(ctx, bus, ringbus.O3Partition, 0, func(t *task.O3PartitionTask) {
//	    t.Of("trades", ts, lo, hi, tsMin, tsMax, true, &latch)
//	})
//
//	// Consume it on a worker.
//	ring.TryConsume(bus.O3PartitionSubSeq(), bus.O3PartitionQueue(), func(c int64, t *task.O3PartitionTask) {
//	    t.Complete(mergePartition(t))
//	})
//
// # Pipelines
//
// Every pipeline has its own record type (see package task) and one of four
// topologies:
//
//	work-queue      O3 stages, page-frame dispatch   MP pub -> MC sub -> pub
//	single          indexer, latest-by, vector agg   SP pub -> SC sub -> pub
//	broadcast       table-writer command and event   MP pub -> FanOut -> pub
//	scatter-gather  page-frame reduce, per shard     MP pub -> MC reduce -> collect FanOut -> MC cleanup -> pub
//
// The producer of every pipeline is gated on its last consumer stage, so a
// slot is never overwritten while any stage still has to read it.
//
// # Access
//
// Pipelines are reachable through typed accessors mirroring their names
// (O3CopyQueue, PageFrameReducePubSeq(shard), TableWriterCommandFanOut, ...)
// and by name through PubSequence, SubSequence, FanOut and the generic Queue.
// A pipeline configured with capacity 0 is not constructed and all of its
// accessors return nil.
//
// # Lifecycle
//
// A Bus is built once and shared by reference. Close releases every queue
// exactly once; it is idempotent and safe on a nil Bus. Scheduling is left to
// package worker; page-frame scatter/gather lives in package pageframe.
package ringbus
