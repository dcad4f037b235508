// Package retry provides retry with backoff for calls to LLM provider APIs.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseWait   = 1 * time.Second
	DefaultMaxWait    = 30 * time.Second
)

// Attempt records one failed attempt. The history of prior attempts is passed
// to ShouldRetry and OnRetry callbacks so retry policy can inspect it.
type Attempt struct {
	Attempt int
	Err     error
}

// ShouldRetryFunc decides whether the given error is worth another attempt.
type ShouldRetryFunc func(err error, attempt int, history []Attempt) bool

// OnRetryFunc observes a failure before the backoff sleep.
type OnRetryFunc func(err error, attempt int, history []Attempt)

type config struct {
	maxRetries     int
	baseWait       time.Duration
	fixedWait      time.Duration
	maxWait        time.Duration
	jitter         bool
	attemptTimeout time.Duration
	shouldRetry    ShouldRetryFunc
	onRetry        OnRetryFunc
}

// Option configures retry behavior.
type Option func(*config)

// WithMaxRetries sets the number of retries after the initial attempt.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// WithBaseWait sets the base wait for exponential backoff: the sleep before
// retry n is baseWait * 2^n, capped by the max wait.
func WithBaseWait(wait time.Duration) Option {
	return func(c *config) {
		c.baseWait = wait
	}
}

// WithFixedWait sleeps a fixed duration between attempts instead of backing
// off exponentially.
func WithFixedWait(wait time.Duration) Option {
	return func(c *config) {
		c.fixedWait = wait
	}
}

// WithMaxWait caps the exponential backoff sleep.
func WithMaxWait(wait time.Duration) Option {
	return func(c *config) {
		c.maxWait = wait
	}
}

// WithJitter adds up to 10% random jitter to each backoff sleep.
func WithJitter() Option {
	return func(c *config) {
		c.jitter = true
	}
}

// WithAttemptTimeout bounds each attempt. An attempt that exceeds the bound
// fails with a *TimeoutError; a hung remote call cannot block forever.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.attemptTimeout = timeout
	}
}

// WithShouldRetry sets the predicate consulted after each failure.
func WithShouldRetry(fn ShouldRetryFunc) Option {
	return func(c *config) {
		c.shouldRetry = fn
	}
}

// WithOnRetry sets an observer invoked after each failure that will be
// retried.
func WithOnRetry(fn OnRetryFunc) Option {
	return func(c *config) {
		c.onRetry = fn
	}
}

// TimeoutError indicates an attempt exceeded its configured time bound.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("attempt timed out after %s", e.Timeout)
}

// IsTimeout reports whether err is a retry timeout.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// MarkPermanent wraps an error so Do surfaces it without further attempts.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked permanent.
func IsPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}

// Do executes f, retrying on failure. The first attempt runs immediately;
// each retry sleeps first, honoring context cancellation. Errors marked
// permanent stop retrying at once.
func Do(ctx context.Context, f func() error, opts ...Option) error {
	c := &config{
		maxRetries: DefaultMaxRetries,
		baseWait:   DefaultBaseWait,
		maxWait:    DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(c)
	}

	var history []Attempt
	for attempt := 0; ; attempt++ {
		err := runAttempt(ctx, f, c.attemptTimeout)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		history = append(history, Attempt{Attempt: attempt, Err: err})
		if attempt >= c.maxRetries {
			return err
		}
		if c.shouldRetry != nil && !c.shouldRetry(err, attempt, history) {
			return err
		}
		if c.onRetry != nil {
			c.onRetry(err, attempt, history)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.wait(attempt)):
		}
	}
}

// runAttempt runs f, racing it against the attempt timeout when one is set.
// A timed-out attempt leaves f running in the background; its result is
// discarded.
func runAttempt(ctx context.Context, f func() error, timeout time.Duration) error {
	if timeout <= 0 {
		return f()
	}
	result := make(chan error, 1)
	go func() {
		result <- f()
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-result:
		return err
	case <-timer.C:
		return &TimeoutError{Timeout: timeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *config) wait(attempt int) time.Duration {
	if c.fixedWait > 0 {
		return c.fixedWait
	}
	wait := float64(c.baseWait) * math.Pow(2, float64(attempt))
	if max := float64(c.maxWait); wait > max {
		wait = max
	}
	if c.jitter {
		wait += rand.Float64() * wait * 0.1
	}
	return time.Duration(wait)
}
