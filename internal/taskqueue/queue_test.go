package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)
	return ctx
}

// blocker is an operation that signals when it starts and then waits for its
// context or an explicit release.
type blocker struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlocker() *blocker {
	return &blocker{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blocker) op(value any) Operation {
	return func(ctx context.Context) (any, error) {
		close(b.started)
		select {
		case <-b.release:
			return value, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (b *blocker) stubborn(value any) Operation {
	return func(context.Context) (any, error) {
		close(b.started)
		<-b.release
		return value, nil
	}
}

func (b *blocker) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-b.started:
	case <-time.After(waitTimeout):
		t.Fatalf("operation never started")
	}
}

func (b *blocker) finish() {
	b.once.Do(func() { close(b.release) })
}

func value(v any) Operation {
	return func(context.Context) (any, error) { return v, nil }
}

// recorder collects completion order.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) op(name string) Operation {
	return func(context.Context) (any, error) {
		r.mu.Lock()
		r.order = append(r.order, name)
		r.mu.Unlock()
		return name, nil
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestSubmitResolvesResult(t *testing.T) {
	q := New()
	ctx := testContext(t)

	got, err := Await[string](ctx, q.Submit(PriorityNormal, value("done")))
	require.NoError(t, err)
	require.Equal(t, "done", got)
	require.NoError(t, q.Drain(ctx))
	require.False(t, q.Status().Active)
}

func TestFailurePropagatesAndQueueContinues(t *testing.T) {
	q := New()
	ctx := testContext(t)
	boom := errors.New("boom")

	gate := newBlocker()
	first := q.Submit(PriorityNormal, gate.op(nil))
	gate.waitStarted(t)
	failing := q.Submit(PriorityNormal, func(context.Context) (any, error) { return nil, boom })
	after := q.Submit(PriorityNormal, value(42))
	gate.finish()

	_, err := first.Wait(ctx)
	require.NoError(t, err)
	_, err = failing.Wait(ctx)
	require.ErrorIs(t, err, boom)
	require.False(t, IsCancellation(err))
	require.Equal(t, StateFailed, failing.State())

	n, err := Await[int](ctx, after)
	require.NoError(t, err)
	require.Equal(t, 42, n)
}

func TestPanicBecomesFailure(t *testing.T) {
	q := New()
	_, err := q.Submit(PriorityNormal, func(context.Context) (any, error) { panic("kaput") }).Wait(testContext(t))
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	require.Equal(t, "kaput", panicErr.Value)
}

func TestPendingOrderIsPriorityThenFIFO(t *testing.T) {
	q := New()
	ctx := testContext(t)
	gate := newBlocker()
	q.Submit(100, gate.op(nil))
	gate.waitStarted(t)

	rec := &recorder{}
	var futures []*Future
	for _, sub := range []struct {
		name     string
		priority int
	}{
		{"n1", 5}, {"b1", 1}, {"n2", 5}, {"u1", 10}, {"b2", 1}, {"u2", 10},
	} {
		futures = append(futures, q.Submit(sub.priority, rec.op(sub.name)))
	}
	require.Equal(t, []int{10, 10, 5, 5, 1, 1}, q.Status().PendingPriorities)

	gate.finish()
	for _, f := range futures {
		_, err := f.Wait(ctx)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"u1", "u2", "n1", "n2", "b1", "b2"}, rec.snapshot())
}

func TestHigherPriorityPreemptsRunningTask(t *testing.T) {
	logger := &captureLogger{}
	q := New(WithLogger(logger))
	ctx := testContext(t)

	bg := newBlocker()
	running := q.Submit(PriorityBackground, bg.op("bg"))
	bg.waitStarted(t)

	urgent := q.Submit(PriorityUser, value("click"))

	// Rejection happens inside Submit.
	select {
	case <-running.Done():
	default:
		t.Fatalf("running task must be rejected before Submit returns")
	}
	_, err := running.Result()
	require.ErrorIs(t, err, ErrPreempted)
	require.True(t, IsCancellation(err))
	require.Equal(t, StateCancelled, running.State())

	got, err := Await[string](ctx, urgent)
	require.NoError(t, err)
	require.Equal(t, "click", got)
	require.NotEmpty(t, logger.lines)
}

func TestEqualOrLowerPriorityNeverPreempts(t *testing.T) {
	q := New()
	ctx := testContext(t)

	gate := newBlocker()
	running := q.Submit(PriorityNormal, gate.op("first"))
	gate.waitStarted(t)

	same := q.Submit(PriorityNormal, value("same"))
	lower := q.Submit(PriorityBackground, value("lower"))
	require.Equal(t, StateRunning, running.State())
	status := q.Status()
	require.NotNil(t, status.CurrentPriority)
	require.Equal(t, PriorityNormal, *status.CurrentPriority)

	gate.finish()
	got, err := Await[string](ctx, running)
	require.NoError(t, err)
	require.Equal(t, "first", got)
	for _, f := range []*Future{same, lower} {
		_, err := f.Wait(ctx)
		require.NoError(t, err)
	}
}

func TestBackgroundPlayClickScenario(t *testing.T) {
	q := New()
	ctx := testContext(t)
	rec := &recorder{}

	bgGate := newBlocker()
	bg := q.Submit(PriorityBackground, bgGate.op("bg"))
	bgGate.waitStarted(t)

	futures := q.SubmitAll(
		Submission{Priority: PriorityNormal, Operation: rec.op("play")},
		Submission{Priority: PriorityUser, Operation: rec.op("click")},
	)

	_, err := bg.Wait(ctx)
	require.ErrorIs(t, err, ErrPreempted)
	for _, f := range futures {
		_, err := f.Wait(ctx)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"click", "play"}, rec.snapshot())
}

func TestStragglerResultIsDropped(t *testing.T) {
	q := New()
	ctx := testContext(t)

	stubborn := newBlocker()
	straggler := q.Submit(PriorityBackground, stubborn.stubborn("late"))
	stubborn.waitStarted(t)

	// The next task runs while the preempted operation is still going.
	next := q.Submit(PriorityUser, value("next"))
	got, err := Await[string](ctx, next)
	require.NoError(t, err)
	require.Equal(t, "next", got)

	stubborn.finish()
	require.NoError(t, q.Drain(ctx))
	v, err := straggler.Result()
	require.Nil(t, v)
	require.ErrorIs(t, err, ErrPreempted)
	require.Equal(t, StateCancelled, straggler.State())
}

func TestClearPending(t *testing.T) {
	q := New()
	ctx := testContext(t)

	gate := newBlocker()
	running := q.Submit(PriorityUser, gate.op("running"))
	gate.waitStarted(t)

	low1 := q.Submit(1, value(nil))
	mid := q.Submit(5, value("mid"))
	low2 := q.Submit(2, value(nil))
	high := q.Submit(8, value("high"))

	removed := q.ClearPending(2)
	require.Equal(t, []int{2, 1}, removed)
	for _, f := range []*Future{low1, low2} {
		_, err := f.Result()
		require.ErrorIs(t, err, ErrCleared)
		require.Equal(t, StateCancelled, f.State())
	}
	require.Equal(t, []int{8, 5}, q.Status().PendingPriorities)
	require.Equal(t, StateRunning, running.State())

	gate.finish()
	for _, f := range []*Future{running, mid, high} {
		_, err := f.Wait(ctx)
		require.NoError(t, err)
	}
	require.Empty(t, q.ClearPending(100))
}

func TestClearAllWithNothingPendingIsNoop(t *testing.T) {
	q := New()
	require.Empty(t, q.ClearAll())
	require.Equal(t, Status{PendingPriorities: []int{}}, q.Status())
}

func TestAbortCurrentIf(t *testing.T) {
	q := New()
	ctx := testContext(t)

	gate := newBlocker()
	running := q.Submit(PriorityNormal, gate.op(nil))
	gate.waitStarted(t)

	require.False(t, q.AbortCurrentIf(PriorityBackground))
	require.True(t, q.AbortCurrentIf(PriorityNormal))
	_, err := running.Wait(ctx)
	require.ErrorIs(t, err, ErrAborted)
	require.False(t, q.AbortCurrentIf(PriorityUser))
}

func TestCancelByID(t *testing.T) {
	q := New()
	ctx := testContext(t)

	gate := newBlocker()
	running := q.Submit(PriorityNormal, gate.op(nil))
	gate.waitStarted(t)
	first := q.Submit(PriorityBackground, value("first"))
	second := q.Submit(PriorityBackground, value("second"))

	require.True(t, q.Cancel(first.ID()))
	_, err := first.Result()
	require.ErrorIs(t, err, ErrWithdrawn)
	require.Equal(t, []int{PriorityBackground}, q.Status().PendingPriorities)

	require.True(t, q.Cancel(running.ID()))
	_, err = running.Wait(ctx)
	require.ErrorIs(t, err, ErrWithdrawn)
	require.True(t, IsCancellation(err))

	got, err := second.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, "second", got)
	require.False(t, q.Cancel(second.ID()), "settled tasks are not found")
	require.False(t, q.Cancel("no-such-task"))
}

func TestCurrentNeverBelowPending(t *testing.T) {
	q := New()
	ctx := testContext(t)
	priorities := []int{3, 1, 7, 7, 2, 9, 5, 9, 1, 4}
	var gates []*blocker
	var futures []*Future
	for _, p := range priorities {
		g := newBlocker()
		gates = append(gates, g)
		futures = append(futures, q.Submit(p, g.op(p)))
		status := q.Status()
		if status.CurrentPriority == nil {
			continue
		}
		for _, pending := range status.PendingPriorities {
			require.GreaterOrEqual(t, *status.CurrentPriority, pending)
		}
	}
	for _, g := range gates {
		g.finish()
	}
	for _, f := range futures {
		f.Wait(ctx)
	}
	require.NoError(t, q.Drain(ctx))
}

func TestCloseRejectsEverything(t *testing.T) {
	q := New()
	ctx := testContext(t)

	gate := newBlocker()
	running := q.Submit(PriorityNormal, gate.op(nil))
	gate.waitStarted(t)
	pending := q.Submit(PriorityBackground, value(nil))

	q.Close()
	for _, f := range []*Future{running, pending} {
		_, err := f.Wait(ctx)
		require.ErrorIs(t, err, ErrClosed)
	}
	_, err := q.Submit(PriorityUser, value(nil)).Wait(ctx)
	require.ErrorIs(t, err, ErrClosed)
	require.True(t, IsCancellation(err))
}

func TestBaseContextCancelsTasks(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	q := New(WithBaseContext(base))
	ctx := testContext(t)

	gate := newBlocker()
	running := q.Submit(PriorityNormal, gate.op(nil))
	gate.waitStarted(t)
	cancel()

	_, err := running.Wait(ctx)
	require.True(t, IsCancellation(err))
	require.ErrorIs(t, err, context.Canceled)
}

func TestTimingsUseClock(t *testing.T) {
	var mu sync.Mutex
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}
	q := New(WithClock(clock))
	f := q.Submit(PriorityNormal, value(nil))
	_, err := f.Wait(testContext(t))
	require.NoError(t, err)

	timings := f.Timings()
	require.True(t, timings.Started.After(timings.Submitted))
	require.False(t, timings.Finished.Before(timings.Started))
}

func TestNilOperationFails(t *testing.T) {
	_, err := New().Submit(PriorityNormal, nil).Wait(testContext(t))
	require.Error(t, err)
	require.False(t, IsCancellation(err))
}
