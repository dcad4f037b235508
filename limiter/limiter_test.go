package limiter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrencyCap(t *testing.T) {
	l := New(2)

	var mu sync.Mutex
	var running, peak int
	var order []time.Duration

	delays := []time.Duration{
		100 * time.Millisecond,
		50 * time.Millisecond,
		150 * time.Millisecond,
	}
	for _, delay := range delays {
		delay := delay
		l.Add(func() {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			time.Sleep(delay)

			mu.Lock()
			running--
			order = append(order, delay)
			mu.Unlock()
		})
	}

	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, 2, peak, "never more than 2 tasks running")
	assert.Equal(t, []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		150 * time.Millisecond,
	}, order)
}

func TestFreedSlotStartsNextTask(t *testing.T) {
	l := New(1)
	var order []int
	var mu sync.Mutex
	for i := 0; i < 5; i++ {
		i := i
		l.Add(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order, "FIFO order with one slot")
}

func TestPendingAndSize(t *testing.T) {
	l := New(1)
	release := make(chan struct{})
	started := make(chan struct{})

	l.Add(func() {
		close(started)
		<-release
	})
	<-started
	l.Add(func() {})
	l.Add(func() {})

	assert.Equal(t, 2, l.Pending())
	assert.Equal(t, 3, l.Size())

	close(release)
	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, 0, l.Pending())
	assert.Equal(t, 0, l.Size())
}

func TestWaitIsReentrant(t *testing.T) {
	l := New(2)
	ctx := context.Background()

	// Idle limiter resolves immediately
	require.NoError(t, l.Wait(ctx))

	var count atomic.Int32
	l.Add(func() {
		time.Sleep(10 * time.Millisecond)
		count.Add(1)
	})
	require.NoError(t, l.Wait(ctx))
	assert.Equal(t, int32(1), count.Load())

	// Busy again after going idle
	l.Add(func() {
		count.Add(1)
	})
	require.NoError(t, l.Wait(ctx))
	require.NoError(t, l.Wait(ctx))
	assert.Equal(t, int32(2), count.Load())
}

func TestWaitHonorsContext(t *testing.T) {
	l := New(1)
	release := make(chan struct{})
	defer close(release)
	l.Add(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmit(t *testing.T) {
	l := New(2)
	ctx := context.Background()

	future := Submit(l, func() (int, error) {
		return 42, nil
	})
	value, err := future.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	failing := Submit(l, func() (int, error) {
		return 0, errors.New("task failed")
	})
	_, err = failing.Get(ctx)
	require.Error(t, err)
}
