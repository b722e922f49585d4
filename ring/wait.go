package ring

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// WaitKind selects how an idle producer or consumer waits for the ring to move.
type WaitKind int

const (
	// WaitSpin busy-polls. Lowest latency, burns a core per waiter.
	WaitSpin WaitKind = iota
	// WaitYield spins for SpinTries attempts and then yields the processor.
	WaitYield
	// WaitBlock spins, yields, and finally parks on a notification that is
	// signalled by the next Done on any sequence sharing the strategy.
	WaitBlock
)

// String returns the configuration name of the kind.
func (k WaitKind) String() string {
	switch k {
	case WaitSpin:
		return "spin"
	case WaitYield:
		return "yield"
	case WaitBlock:
		return "block"
	default:
		return fmt.Sprintf("WaitKind(%d)", int(k))
	}
}

// ParseWaitKind parses "spin", "yield" or "block" (case-insensitive).
func ParseWaitKind(s string) (WaitKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spin":
		return WaitSpin, nil
	case "yield":
		return WaitYield, nil
	case "block", "":
		return WaitBlock, nil
	default:
		return 0, fmt.Errorf("ring: unknown wait strategy %q", s)
	}
}

// WaitConfig tunes the idle backoff.
type WaitConfig struct {
	Kind WaitKind

	// SpinTries is the number of idle attempts that return immediately
	// before the strategy starts yielding. Ignored by WaitSpin.
	SpinTries int

	// YieldTries is the number of runtime.Gosched attempts after spinning and
	// before WaitBlock parks the goroutine.
	YieldTries int

	// BlockTimeout bounds a single park. Zero or negative parks until signalled
	// or until the context ends.
	BlockTimeout time.Duration
}

// DefaultWaitConfig returns the documented defaults: block after 100 spins
// and 100 yields, re-checking at least every millisecond.
func DefaultWaitConfig() WaitConfig {
	return WaitConfig{
		Kind:         WaitBlock,
		SpinTries:    100,
		YieldTries:   100,
		BlockTimeout: time.Millisecond,
	}
}

// WaitStrategy decides what an idle party does between polls.
//
// Idle is called with a monotonically increasing attempt counter. It returns
// nil when the caller should poll again and the context error once ctx ends.
// ready is re-evaluated after a blocking waiter registered, so a Signal racing
// with the registration is never lost. Signal wakes parked waiters; it costs a
// single atomic load when nobody is parked.
type WaitStrategy interface {
	Idle(ctx context.Context, attempt int, ready func() bool) error
	Signal()
}

// NewWaitStrategy builds a strategy from cfg.
func NewWaitStrategy(cfg WaitConfig) WaitStrategy {
	if cfg.SpinTries < 0 {
		cfg.SpinTries = 0
	}
	if cfg.YieldTries < 0 {
		cfg.YieldTries = 0
	}
	return &waitStrategy{cfg: cfg}
}

type waitStrategy struct {
	cfg     WaitConfig
	waiters atomic.Int32

	mu     sync.Mutex
	notify chan struct{}
}

func (w *waitStrategy) Idle(ctx context.Context, attempt int, ready func() bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch {
	case w.cfg.Kind == WaitSpin, attempt < w.cfg.SpinTries:
		return nil
	case w.cfg.Kind == WaitYield, attempt < w.cfg.SpinTries+w.cfg.YieldTries:
		runtime.Gosched()
		return nil
	}

	return w.park(ctx, ready)
}

func (w *waitStrategy) park(ctx context.Context, ready func() bool) error {
	w.waiters.Add(1)
	defer w.waiters.Add(-1)

	w.mu.Lock()
	if w.notify == nil {
		w.notify = make(chan struct{})
	}
	ch := w.notify
	w.mu.Unlock()

	if ready != nil && ready() {
		return nil
	}

	var timeout <-chan time.Time
	if w.cfg.BlockTimeout > 0 {
		t := time.NewTimer(w.cfg.BlockTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-ch:
		return nil
	case <-timeout:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *waitStrategy) Signal() {
	if w.waiters.Load() == 0 {
		return
	}
	w.mu.Lock()
	if w.notify != nil {
		close(w.notify)
		w.notify = nil
	}
	w.mu.Unlock()
}
