package testutil

import (
	"math/rand"
	"runtime"
	"sync"

	"github.com/hupe1980/ringbus/task"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Int63n returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Int63n(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Int63n(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Batches splits total into random batch sizes in [1, maxBatch].
// Locks only once per call.
func (r *RNG) Batches(total, maxBatch int) []int {
	if maxBatch < 1 {
		maxBatch = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var sizes []int
	for total > 0 {
		n := min(1+r.rand.Intn(maxBatch), total)
		sizes = append(sizes, n)
		total -= n
	}
	return sizes
}

// Frames returns n contiguous page frames of random length in
// [1, maxRows], four frames per partition.
func (r *RNG) Frames(n int, maxRows int64) []task.PageFrame {
	if maxRows < 1 {
		maxRows = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := make([]task.PageFrame, n)
	var lo int64
	for i := range frames {
		hi := lo + 1 + r.rand.Int63n(maxRows)
		frames[i] = task.PageFrame{PartitionIndex: i / 4, RowLo: lo, RowHi: hi}
		lo = hi
	}
	return frames
}

// Perm returns a random permutation of [0, n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}

// Jitter yields the processor with probability 1/n, shaking up goroutine
// interleavings in concurrency tests.
func (r *RNG) Jitter(n int) {
	if n > 0 && r.Intn(n) == 0 {
		runtime.Gosched()
	}
}

// TotalRows sums the rows of frames.
func TotalRows(frames []task.PageFrame) int64 {
	var total int64
	for _, f := range frames {
		total += f.Rows()
	}
	return total
}
