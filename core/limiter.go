package core

import (
	"fmt"
	"sync"
)

// CallBudget enforces a maximum number of model calls per run.
type CallBudget struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCallBudget creates a budget allowing max calls. If max == 0, calls are unlimited.
func NewCallBudget(max int) *CallBudget {
	return &CallBudget{max: max}
}

// Spend records one call and returns ErrBudgetExceeded once the limit is passed.
func (b *CallBudget) Spend() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.count++
	if b.max > 0 && b.count > b.max {
		return fmt.Errorf("%w: %d", ErrBudgetExceeded, b.max)
	}

	return nil
}

// Count returns the number of calls recorded so far.
func (b *CallBudget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (b *CallBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max == 0 {
		return -1
	}

	return b.max - b.count
}
