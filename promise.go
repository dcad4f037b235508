package strand

import (
	"context"
	"sync"
)

// Promise is a one-shot future. It is settled exactly once with either a
// value or an error; later settlement attempts are ignored. Get blocks until
// the promise settles or the context ends.
type Promise[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// NewPromise creates an unsettled promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolve settles the promise with a value.
func (p *Promise[T]) Resolve(value T) {
	p.once.Do(func() {
		p.value = value
		close(p.done)
	})
}

// Reject settles the promise with an error.
func (p *Promise[T]) Reject(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Get returns the settled value or error, blocking as needed.
func (p *Promise[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-p.done:
		if p.err != nil {
			var zero T
			return zero, p.err
		}
		return p.value, nil
	}
}
