package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Conventional priority bands. Any int is accepted.
const (
	PriorityUser       = 10
	PriorityNormal     = 5
	PriorityBackground = 1
)

// Operation is a unit of work. It should return promptly once ctx is done.
type Operation func(ctx context.Context) (any, error)

// Logger receives queue diagnostics.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Option customizes a Queue.
type Option func(*Queue)

// WithLogger routes diagnostics to logger.
func WithLogger(logger Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithBaseContext derives every task context from ctx. Cancelling ctx
// cancels all tasks.
func WithBaseContext(ctx context.Context) Option {
	return func(q *Queue) {
		if ctx != nil {
			q.base = ctx
		}
	}
}

// WithClock overrides the time source used for task timings.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// Submission pairs an operation with its priority for SubmitAll.
type Submission struct {
	Priority  int
	Operation Operation
}

// Status is a read-only snapshot of the queue.
type Status struct {
	CurrentPriority   *int  `json:"currentPriority"`
	PendingCount      int   `json:"pendingCount"`
	PendingPriorities []int `json:"pendingPriorities"`
	Active            bool  `json:"active"`
}

type task struct {
	id       string
	priority int
	op       Operation
	future   *Future
	ctx      context.Context
	cancel   context.CancelCauseFunc
}

// Queue serializes operations by priority. The zero value is not usable;
// construct with New.
type Queue struct {
	mu      sync.Mutex
	pending []*task
	current *task
	active  bool
	closed  bool
	idle    chan struct{}

	base   context.Context
	logger Logger
	now    func() time.Time
}

// New constructs an idle queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		base:   context.Background(),
		logger: nopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit queues op at priority and returns its future without blocking. A
// running task with a strictly lower priority is cancelled and rejected with
// ErrPreempted before Submit returns.
func (q *Queue) Submit(priority int, op Operation) *Future {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submitLocked(priority, op)
}

// SubmitAll queues several operations in one step, so the worker cannot pick
// up any of them before all are queued. Preemption is evaluated per
// submission in order.
func (q *Queue) SubmitAll(subs ...Submission) []*Future {
	q.mu.Lock()
	defer q.mu.Unlock()
	futures := make([]*Future, len(subs))
	for i, sub := range subs {
		futures[i] = q.submitLocked(sub.Priority, sub.Operation)
	}
	return futures
}

func (q *Queue) submitLocked(priority int, op Operation) *Future {
	now := q.now()
	id := uuid.NewString()
	future := newFuture(id, priority, now)
	if q.closed {
		future.reject(ErrClosed, now)
		return future
	}
	if op == nil {
		future.reject(fmt.Errorf("taskqueue: task %s has no operation", id), now)
		return future
	}
	ctx, cancel := context.WithCancelCause(q.base)
	t := &task{id: id, priority: priority, op: op, future: future, ctx: ctx, cancel: cancel}

	at := len(q.pending)
	for i, p := range q.pending {
		if p.priority < priority {
			at = i
			break
		}
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[at+1:], q.pending[at:])
	q.pending[at] = t

	if q.current != nil && q.current.priority < priority {
		q.logger.Printf("taskqueue: preempting task %s (priority %d) for priority %d", q.current.id, q.current.priority, priority)
		q.cancelLocked(q.current, ErrPreempted)
		q.current = nil
	}
	q.startLocked()
	return future
}

func (q *Queue) startLocked() {
	if q.active || len(q.pending) == 0 {
		return
	}
	q.active = true
	q.idle = make(chan struct{})
	go q.run()
}

func (q *Queue) cancelLocked(t *task, cause error) {
	t.cancel(cause)
	t.future.reject(cause, q.now())
}

type outcome struct {
	value any
	err   error
}

func (q *Queue) run() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.active = false
			close(q.idle)
			q.mu.Unlock()
			return
		}
		t := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.current = t
		t.future.markRunning(q.now())
		q.mu.Unlock()

		q.execute(t)
	}
}

func (q *Queue) execute(t *task) {
	results := make(chan outcome, 1)
	go func() {
		value, err := call(t.ctx, t.op)
		results <- outcome{value: value, err: err}
	}()

	select {
	case res := <-results:
		q.finish(t, res)
	case <-t.ctx.Done():
		// The operation may still be running; its result is dropped.
		q.finish(t, outcome{err: cancellation(t.ctx)})
	}
}

func (q *Queue) finish(t *task, res outcome) {
	q.mu.Lock()
	if q.current == t {
		q.current = nil
	}
	now := q.now()
	q.mu.Unlock()

	switch {
	case res.err == nil:
		t.future.resolve(res.value, now)
	case t.ctx.Err() != nil && errors.Is(res.err, context.Canceled):
		t.future.reject(cancellation(t.ctx), now)
	default:
		if !IsCancellation(res.err) {
			q.logger.Printf("taskqueue: task %s (priority %d) failed: %v", t.id, t.priority, res.err)
		}
		t.future.reject(res.err, now)
	}
	t.cancel(nil)
}

func call(ctx context.Context, op Operation) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, &PanicError{Value: r}
		}
	}()
	return op(ctx)
}

func cancellation(ctx context.Context) error {
	cause := context.Cause(ctx)
	if IsCancellation(cause) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// ClearPending cancels every pending task with priority <= maxPriority and
// rejects it with ErrCleared. The running task is untouched. It returns the
// removed priorities in queue order.
func (q *Queue) ClearPending(maxPriority int) []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clearLocked(maxPriority, ErrCleared)
}

// ClearAll cancels every pending task.
func (q *Queue) ClearAll() []int {
	return q.ClearPending(math.MaxInt)
}

func (q *Queue) clearLocked(maxPriority int, cause error) []int {
	removed := []int{}
	remaining := q.pending[:0]
	for _, t := range q.pending {
		if t.priority <= maxPriority {
			q.cancelLocked(t, cause)
			removed = append(removed, t.priority)
			continue
		}
		remaining = append(remaining, t)
	}
	for i := len(remaining); i < len(q.pending); i++ {
		q.pending[i] = nil
	}
	q.pending = remaining
	if len(removed) > 0 {
		q.logger.Printf("taskqueue: cleared %d pending task(s) at priority <= %d", len(removed), maxPriority)
	}
	return removed
}

// AbortCurrentIf cancels the running task when its priority is at most
// maxPriority and reports whether it did.
func (q *Queue) AbortCurrentIf(maxPriority int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil || q.current.priority > maxPriority {
		return false
	}
	q.logger.Printf("taskqueue: aborting task %s (priority %d)", q.current.id, q.current.priority)
	q.cancelLocked(q.current, ErrAborted)
	q.current = nil
	return true
}

// Cancel withdraws the task with the given ID, whether pending or running,
// and rejects it with ErrWithdrawn. It reports whether the task was found.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current != nil && q.current.id == id {
		q.logger.Printf("taskqueue: withdrawing running task %s (priority %d)", id, q.current.priority)
		q.cancelLocked(q.current, ErrWithdrawn)
		q.current = nil
		return true
	}
	for i, t := range q.pending {
		if t.id != id {
			continue
		}
		q.cancelLocked(t, ErrWithdrawn)
		copy(q.pending[i:], q.pending[i+1:])
		q.pending[len(q.pending)-1] = nil
		q.pending = q.pending[:len(q.pending)-1]
		return true
	}
	return false
}

// Status returns a snapshot of the queue.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	status := Status{
		PendingCount:      len(q.pending),
		PendingPriorities: make([]int, len(q.pending)),
		Active:            q.active,
	}
	for i, t := range q.pending {
		status.PendingPriorities[i] = t.priority
	}
	if q.current != nil {
		p := q.current.priority
		status.CurrentPriority = &p
	}
	return status
}

// Drain blocks until the worker has no task left or ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	if !q.active {
		q.mu.Unlock()
		return nil
	}
	idle := q.idle
	q.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects every pending task and the running task with ErrClosed.
// Later submissions are rejected immediately.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.clearLocked(math.MaxInt, ErrClosed)
	if q.current != nil {
		q.cancelLocked(q.current, ErrClosed)
		q.current = nil
	}
}
