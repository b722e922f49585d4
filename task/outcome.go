package task

// Outcome is the completion state shared by every task record.
type Outcome struct {
	Status Status
	Err    error
	// Latch, when set, is counted down once the task completes or is
	// cancelled.
	Latch *Latch
}

// Complete records err (nil for success) and counts down the latch.
func (o *Outcome) Complete(err error) {
	if err != nil {
		o.Status = StatusFailed
		o.Err = err
	} else {
		o.Status = StatusDone
	}
	countDown(o.Latch)
}

// Cancel marks the task skipped and counts down the latch.
func (o *Outcome) Cancel() {
	o.Status = StatusCancelled
	countDown(o.Latch)
}

func (o *Outcome) clear() { *o = Outcome{} }
