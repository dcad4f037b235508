package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryBound(t *testing.T) {
	ctx := context.Background()
	count := 0
	err := Do(ctx, func() error {
		count++
		if count < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithMaxRetries(4), WithBaseWait(time.Millisecond))
	require.NoError(t, err)
	// Failed twice, succeeded on the third invocation
	require.Equal(t, 3, count)
}

func TestRetryExhaustion(t *testing.T) {
	ctx := context.Background()
	count := 0
	err := Do(ctx, func() error {
		count++
		return errors.New("always fails")
	}, WithMaxRetries(2), WithBaseWait(time.Millisecond))
	require.Error(t, err)
	assert.Equal(t, "always fails", err.Error())
	assert.Equal(t, 3, count) // initial attempt + 2 retries
}

func TestPermanentError(t *testing.T) {
	ctx := context.Background()
	count := 0
	cause := errors.New("bad request")
	err := Do(ctx, func() error {
		count++
		return MarkPermanent(cause)
	}, WithMaxRetries(5), WithBaseWait(time.Millisecond))
	require.Error(t, err)
	assert.Equal(t, cause, err)
	assert.Equal(t, 1, count)
}

func TestShouldRetryReceivesHistory(t *testing.T) {
	ctx := context.Background()
	var sawHistory [][]Attempt
	count := 0
	err := Do(ctx, func() error {
		count++
		return errors.New("nope")
	},
		WithMaxRetries(5),
		WithBaseWait(time.Millisecond),
		WithShouldRetry(func(err error, attempt int, history []Attempt) bool {
			sawHistory = append(sawHistory, append([]Attempt(nil), history...))
			return attempt < 1 // stop after two failures
		}),
	)
	require.Error(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, sawHistory, 2)
	assert.Len(t, sawHistory[0], 1)
	assert.Len(t, sawHistory[1], 2)
	assert.Equal(t, 0, sawHistory[1][0].Attempt)
	assert.Equal(t, 1, sawHistory[1][1].Attempt)
}

func TestOnRetry(t *testing.T) {
	ctx := context.Background()
	var observed []int
	count := 0
	err := Do(ctx, func() error {
		count++
		if count < 3 {
			return errors.New("transient")
		}
		return nil
	},
		WithMaxRetries(5),
		WithBaseWait(time.Millisecond),
		WithOnRetry(func(err error, attempt int, history []Attempt) {
			observed = append(observed, attempt)
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, observed)
}

func TestAttemptTimeout(t *testing.T) {
	ctx := context.Background()
	count := 0
	err := Do(ctx, func() error {
		count++
		if count == 1 {
			time.Sleep(200 * time.Millisecond)
		}
		return nil
	}, WithMaxRetries(2), WithBaseWait(time.Millisecond), WithAttemptTimeout(20*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAttemptTimeoutExhausted(t *testing.T) {
	ctx := context.Background()
	err := Do(ctx, func() error {
		time.Sleep(100 * time.Millisecond)
		return nil
	}, WithMaxRetries(1), WithBaseWait(time.Millisecond), WithAttemptTimeout(10*time.Millisecond))
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 10*time.Millisecond, timeoutErr.Timeout)
}

func TestStopAfterConsecutiveTimeouts(t *testing.T) {
	ctx := context.Background()
	count := 0
	err := Do(ctx, func() error {
		count++
		time.Sleep(50 * time.Millisecond)
		return nil
	},
		WithMaxRetries(10),
		WithBaseWait(time.Millisecond),
		WithAttemptTimeout(5*time.Millisecond),
		WithShouldRetry(func(err error, attempt int, history []Attempt) bool {
			// Stop after two consecutive timeouts
			n := len(history)
			if n >= 2 && IsTimeout(history[n-1].Err) && IsTimeout(history[n-2].Err) {
				return false
			}
			return true
		}),
	)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, 2, count)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, func() error {
		count++
		return errors.New("transient")
	}, WithMaxRetries(10), WithBaseWait(time.Second))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFixedWait(t *testing.T) {
	ctx := context.Background()
	start := time.Now()
	count := 0
	err := Do(ctx, func() error {
		count++
		if count < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithMaxRetries(5), WithFixedWait(10*time.Millisecond))
	require.NoError(t, err)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}
