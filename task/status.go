package task

import (
	"fmt"
	"sync"
)

// Status is the outcome of processing a task.
type Status int32

const (
	StatusPending Status = iota
	StatusDone
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// Latch is counted down by consumers so the producer can wait for a batch of
// tasks it fanned out. It is owned by the producer; records only borrow it.
type Latch = sync.WaitGroup

func countDown(l *Latch) {
	if l != nil {
		l.Done()
	}
}
