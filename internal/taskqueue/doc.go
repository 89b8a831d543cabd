// Package taskqueue runs asynchronous operations one at a time in priority
// order. A submission with a strictly higher priority than the running task
// preempts it: the running task's context is cancelled and its future is
// rejected with ErrPreempted before Submit returns.
//
// Cancellation is cooperative. An operation that ignores its context keeps
// running, but the queue moves on without it and its late result is dropped.
package taskqueue
