// Package pageframe runs a table scan in parallel over the bus's page-frame
// pipelines.
//
// A query splits its scan into frames and creates a Sequence. Dispatch
// publishes one dispatch task; a DispatchJob expands it into one reduce task
// per frame, round-robin across the reduce shards. ReduceJobs run the
// sequence's reducer in place, the query goroutine reads the results back
// with Collect, and CleanupJob recycles each slot once every collector has
// passed it:
//
//	dispatch -> DispatchJob -> reduce shard i -> ReduceJob -> collect fan-out -> Collect
//	                                                                          -> CleanupJob -> reduce shard i
//
// Several sequences may be in flight at once. Every sequence joins the
// collect fan-out of every shard, skips frames it does not own, and leaves
// on Close.
package pageframe
