package taskqueue

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is the kind shared by every cancellation. Callers that
	// only care about real failures can filter with IsCancellation.
	ErrCancelled = errors.New("taskqueue: task cancelled")
	// ErrPreempted rejects a running task interrupted by a higher priority
	// submission.
	ErrPreempted = fmt.Errorf("%w by higher priority task", ErrCancelled)
	// ErrCleared rejects pending tasks removed by ClearPending.
	ErrCleared = fmt.Errorf("%w: queue cleared", ErrCancelled)
	// ErrAborted rejects a running task stopped by AbortCurrentIf.
	ErrAborted = fmt.Errorf("%w by higher priority action", ErrCancelled)
	// ErrWithdrawn rejects a task cancelled by ID through Cancel.
	ErrWithdrawn = fmt.Errorf("%w: withdrawn", ErrCancelled)
	// ErrClosed rejects tasks that were pending or running when the queue
	// closed, and every later submission.
	ErrClosed = fmt.Errorf("%w: queue closed", ErrCancelled)
)

// IsCancellation reports whether err is an expected interruption rather than
// an operation failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// PanicError wraps a value recovered from a panicking operation.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("taskqueue: operation panicked: %v", e.Value)
}
