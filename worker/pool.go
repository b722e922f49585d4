package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ringbus"
	"github.com/hupe1980/ringbus/ring"
)

var (
	// ErrPoolStarted is returned by Start, Assign and AssignTo once the pool
	// is running.
	ErrPoolStarted = errors.New("worker pool already started")

	// ErrPoolClosed is returned by Start after Close.
	ErrPoolClosed = errors.New("worker pool closed")

	// ErrInvalidWorker is returned by AssignTo for a worker id outside the
	// pool.
	ErrInvalidWorker = errors.New("invalid worker id")
)

// Job is polled repeatedly by the workers it is assigned to. Run returns
// true when it did useful work.
type Job interface {
	Run(ctx context.Context, workerID int) bool
}

// Pender is implemented by jobs that can tell, without side effects, whether
// Run would find work. A parked worker whose jobs all implement it re-checks
// them before sleeping and cannot miss a wakeup.
type Pender interface {
	Pending() bool
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context, workerID int) bool

func (f JobFunc) Run(ctx context.Context, workerID int) bool { return f(ctx, workerID) }

// Pool is a fixed set of goroutines, each polling its own list of jobs.
type Pool struct {
	size   int
	wait   ring.WaitStrategy
	logger *ringbus.Logger

	mu      sync.Mutex
	jobs    [][]Job
	started atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group

	panics atomic.Int64
}

// Option configures a Pool.
type Option func(*Pool)

// WithBus idles on the bus wait strategy and logs with the bus logger.
func WithBus(b *ringbus.Bus) Option {
	return func(p *Pool) {
		p.wait = b.WaitStrategy()
		p.logger = b.Logger()
	}
}

// WithWaitStrategy sets the strategy used between empty passes.
func WithWaitStrategy(ws ring.WaitStrategy) Option {
	return func(p *Pool) { p.wait = ws }
}

// WithLogger sets the logger for recovered panics.
func WithLogger(l *ringbus.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a pool of size workers. size <= 0 means GOMAXPROCS.
func NewPool(size int, opts ...Option) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		size: size,
		jobs: make([][]Job, size),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.wait == nil {
		p.wait = ring.NewWaitStrategy(ring.DefaultWaitConfig())
	}
	if p.logger == nil {
		p.logger = ringbus.NoopLogger()
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Panics returns the number of job panics recovered so far.
func (p *Pool) Panics() int64 { return p.panics.Load() }

// Assign adds job to every worker. Jobs shared this way must be safe for
// concurrent Run calls.
func (p *Pool) Assign(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started.Load() {
		return ErrPoolStarted
	}
	for i := range p.jobs {
		p.jobs[i] = append(p.jobs[i], job)
	}
	return nil
}

// AssignTo adds job to a single worker.
func (p *Pool) AssignTo(workerID int, job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started.Load() {
		return ErrPoolStarted
	}
	if workerID < 0 || workerID >= p.size {
		return fmt.Errorf("%w: %d of %d", ErrInvalidWorker, workerID, p.size)
	}
	p.jobs[workerID] = append(p.jobs[workerID], job)
	return nil
}

// Start launches the workers. They run until ctx ends or Close is called.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Load() {
		return ErrPoolClosed
	}
	if !p.started.CompareAndSwap(false, true) {
		return ErrPoolStarted
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.group, ctx = errgroup.WithContext(ctx)
	for id, jobs := range p.jobs {
		p.group.Go(func() error {
			p.loop(ctx, id, jobs)
			return nil
		})
	}
	return nil
}

// Close stops the workers and waits for them. It is idempotent and safe
// before Start.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.mu.Lock()
	cancel, group := p.cancel, p.group
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	p.wait.Signal()
	return group.Wait()
}

func (p *Pool) loop(ctx context.Context, id int, jobs []Job) {
	ready := pending(jobs)
	for attempt := 0; ; {
		useful := false
		for _, j := range jobs {
			if p.run(ctx, id, j) {
				useful = true
			}
		}
		if useful {
			attempt = 0
			continue
		}
		if err := p.wait.Idle(ctx, attempt, ready); err != nil {
			return
		}
		attempt++
	}
}

func (p *Pool) run(ctx context.Context, id int, j Job) (useful bool) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.WithWorker(id).ErrorContext(ctx, "job panicked", "panic", r)
			useful = true
		}
	}()
	return j.Run(ctx, id)
}

// pending returns nil unless every job implements Pender.
func pending(jobs []Job) func() bool {
	penders := make([]Pender, 0, len(jobs))
	for _, j := range jobs {
		pj, ok := j.(Pender)
		if !ok {
			return nil
		}
		penders = append(penders, pj)
	}
	return func() bool {
		for _, pj := range penders {
			if pj.Pending() {
				return true
			}
		}
		return false
	}
}
