// Package testutil provides testing utilities for ringbus.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe RNG and helpers for generating random
// batch sizes and page frames, so concurrency tests are reproducible from
// their seed.
//
//	rng := testutil.NewRNG(seed)
//	sizes := rng.Batches(1000, 16)   // random sizes in [1, 16] summing to 1000
//	frames := rng.Frames(10, 4096)   // contiguous frames of random length
package testutil
