// Package worker runs bus consumers on a fixed pool of goroutines.
//
// Jobs are cooperative: a worker polls each of its jobs in turn, and a job
// reports whether it did useful work. When a full pass finds nothing to do
// the worker idles through the bus wait strategy, so blocking workers are
// woken by the same Signal that publishes a task.
//
//	pool := worker.NewPool(4, worker.WithBus(bus))
//	job, _ := worker.ForPipeline(bus, ringbus.O3Copy, 0, copyColumn)
//	pool.Assign(job)
//	pool.Start(ctx)
//	defer pool.Close()
package worker
