package taskqueue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle position of a task.
type State int

const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Timings records when a task moved through its lifecycle. Zero values mean
// the transition never happened.
type Timings struct {
	Submitted time.Time
	Started   time.Time
	Finished  time.Time
}

// Future is the deferred result of a submitted operation. It settles exactly
// once; later settlement attempts are ignored.
type Future struct {
	id       string
	priority int
	done     chan struct{}

	mu      sync.Mutex
	state   State
	value   any
	err     error
	timings Timings
}

func newFuture(id string, priority int, submitted time.Time) *Future {
	return &Future{
		id:       id,
		priority: priority,
		done:     make(chan struct{}),
		timings:  Timings{Submitted: submitted},
	}
}

// ID returns the task identifier.
func (f *Future) ID() string { return f.id }

// Priority returns the priority the task was submitted with.
func (f *Future) Priority() int { return f.priority }

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} { return f.done }

// State returns the current lifecycle state.
func (f *Future) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Timings returns the lifecycle timestamps recorded so far.
func (f *Future) Timings() Timings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timings
}

// Result returns the settled value and error. Before settlement it returns
// nil and a nil error.
func (f *Future) Result() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// Wait blocks until the future settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Await waits for f and asserts its value to T.
func Await[T any](ctx context.Context, f *Future) (T, error) {
	var zero T
	v, err := f.Wait(ctx)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("taskqueue: task %s returned %T, want %T", f.id, v, zero)
	}
	return typed, nil
}

func (f *Future) markRunning(at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StatePending {
		f.state = StateRunning
		f.timings.Started = at
	}
}

func (f *Future) settle(state State, value any, err error, at time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Terminal() {
		return false
	}
	f.state = state
	f.value = value
	f.err = err
	f.timings.Finished = at
	close(f.done)
	return true
}

func (f *Future) resolve(value any, at time.Time) bool {
	return f.settle(StateCompleted, value, nil, at)
}

func (f *Future) reject(err error, at time.Time) bool {
	state := StateFailed
	if IsCancellation(err) {
		state = StateCancelled
	}
	return f.settle(state, nil, err, at)
}
