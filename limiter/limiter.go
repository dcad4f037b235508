// Package limiter provides a FIFO bounded-concurrency task executor.
package limiter

import (
	"context"
	"sync"
)

// Limiter runs queued tasks with at most a fixed number executing
// concurrently. Tasks start in submission order; a finishing task immediately
// launches the next queued one.
type Limiter struct {
	mu      sync.Mutex
	max     int
	running int
	queue   []func()
	waiters []chan struct{}
}

// New returns a limiter allowing up to maxConcurrent tasks at once.
// Values below one are treated as one.
func New(maxConcurrent int) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limiter{max: maxConcurrent}
}

// Add enqueues a task. It returns immediately; the task runs as soon as a
// slot is free.
func (l *Limiter) Add(task func()) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.schedule()
	l.mu.Unlock()
}

// Pending returns the number of tasks waiting to start.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Size returns the number of tasks queued or running.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) + l.running
}

// Wait blocks until the limiter is idle: no tasks queued and none running.
// It may be called repeatedly, including after the limiter has gone idle and
// become busy again.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	if len(l.queue) == 0 && l.running == 0 {
		l.mu.Unlock()
		return nil
	}
	done := make(chan struct{})
	l.waiters = append(l.waiters, done)
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// schedule launches queued tasks while slots are free. Callers must hold the
// mutex.
func (l *Limiter) schedule() {
	for l.running < l.max && len(l.queue) > 0 {
		task := l.queue[0]
		l.queue = l.queue[1:]
		l.running++
		go func() {
			defer l.settle()
			task()
		}()
	}
}

// settle releases a slot, starts the next queued task, and wakes waiters if
// the limiter went idle.
func (l *Limiter) settle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running--
	l.schedule()
	if l.running == 0 && len(l.queue) == 0 {
		for _, done := range l.waiters {
			close(done)
		}
		l.waiters = nil
	}
}

// Future is the pending result of a task submitted with Submit.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Get blocks until the task settles or the context is cancelled.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-f.done:
		return f.value, f.err
	}
}

// Submit enqueues a task returning a value and hands back a future for its
// result.
func Submit[T any](l *Limiter, task func() (T, error)) *Future[T] {
	future := &Future[T]{done: make(chan struct{})}
	l.Add(func() {
		future.value, future.err = task()
		close(future.done)
	})
	return future
}
