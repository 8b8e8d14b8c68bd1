package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrVeink/svr/internal/testutil"
)

func TestPool_AcquireRelease(t *testing.T) {
	pool := NewPool(2, time.Second, testutil.NewTestLogger(t))
	ctx := context.Background()

	assert.Equal(t, PoolStatus{Available: 2, MaxConcurrent: 2}, pool.Status())

	require.NoError(t, pool.Acquire(ctx))
	require.NoError(t, pool.Acquire(ctx))
	assert.Equal(t, PoolStatus{Active: 2, Available: 0, MaxConcurrent: 2}, pool.Status())

	pool.Release()
	assert.Equal(t, 1, pool.Status().Active)
	assert.Equal(t, 1, pool.Status().Available)

	pool.Release()
	assert.Equal(t, 0, pool.Status().Active)
}

func TestPool_AcquireTimesOut(t *testing.T) {
	pool := NewPool(1, 50*time.Millisecond, testutil.NewTestLogger(t))
	ctx := context.Background()

	require.NoError(t, pool.Acquire(ctx))
	defer pool.Release()

	start := time.Now()
	err := pool.Acquire(ctx)

	assert.ErrorIs(t, err, ErrPoolSaturated)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestPool_AcquireCancelled(t *testing.T) {
	pool := NewPool(1, 5*time.Second, testutil.NewTestLogger(t))
	require.NoError(t, pool.Acquire(context.Background()))
	defer pool.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- pool.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after context cancellation")
	}
}

func TestPool_GoBoundsConcurrency(t *testing.T) {
	const maxConcurrent = 3
	pool := NewPool(maxConcurrent, time.Second, testutil.NewTestLogger(t))

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		pool.Go(context.Background(), "job", func(context.Context) {
			defer wg.Done()
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
		})
	}
	wg.Wait()

	assert.LessOrEqual(t, int(peak.Load()), maxConcurrent)
	require.NoError(t, pool.WaitForDrain(context.Background()))
	assert.Equal(t, 0, pool.Status().Active)
}

func TestPool_GoDoesNotBlock(t *testing.T) {
	pool := NewPool(1, time.Second, testutil.NewTestLogger(t))
	release := make(chan struct{})

	pool.Go(context.Background(), "slow", func(context.Context) { <-release })

	done := make(chan struct{})
	go func() {
		pool.Go(context.Background(), "queued", func(context.Context) {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Go blocked while the pool was full")
	}

	close(release)
	require.NoError(t, pool.WaitForDrain(context.Background()))
}

func TestPool_GoDropsWhenSaturated(t *testing.T) {
	pool := NewPool(1, 20*time.Millisecond, testutil.NewTestLogger(t))
	release := make(chan struct{})

	pool.Go(context.Background(), "slow", func(context.Context) { <-release })

	var ran atomic.Bool
	pool.Go(context.Background(), "dropped", func(context.Context) { ran.Store(true) })

	require.Eventually(t, func() bool {
		return pool.Status().Dropped == 1
	}, time.Second, 5*time.Millisecond)

	close(release)
	require.NoError(t, pool.WaitForDrain(context.Background()))
	assert.False(t, ran.Load())
}

func TestPool_JobContextOutlivesDispatcher(t *testing.T) {
	pool := NewPool(1, time.Second, testutil.NewTestLogger(t))
	ctx, cancel := context.WithCancel(ContextWithFetchID(context.Background(), "abc"))

	started := make(chan struct{})
	result := make(chan error, 1)
	var fetchID string
	pool.Go(ctx, "job", func(jobCtx context.Context) {
		close(started)
		time.Sleep(20 * time.Millisecond)
		fetchID = FetchIDFromContext(jobCtx)
		result <- jobCtx.Err()
	})

	<-started
	cancel()

	assert.NoError(t, <-result)
	assert.Equal(t, "abc", fetchID)
}

func TestPool_WaitForDrain(t *testing.T) {
	pool := NewPool(2, time.Second, testutil.NewTestLogger(t))
	release := make(chan struct{})

	pool.Go(context.Background(), "job", func(context.Context) { <-release })

	drainDone := make(chan error, 1)
	go func() { drainDone <- pool.WaitForDrain(context.Background()) }()

	select {
	case <-drainDone:
		t.Fatal("WaitForDrain returned with a job in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case err := <-drainDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain did not complete")
	}
}

func TestPool_WaitForDrainCancelled(t *testing.T) {
	pool := NewPool(1, time.Second, testutil.NewTestLogger(t))
	require.NoError(t, pool.Acquire(context.Background()))
	defer pool.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, pool.WaitForDrain(ctx), context.DeadlineExceeded)
}

func TestPool_Defaults(t *testing.T) {
	pool := NewPool(0, 0, nil)

	status := pool.Status()
	assert.Equal(t, DefaultMaxConcurrentIngests, status.MaxConcurrent)
	assert.Equal(t, DefaultMaxConcurrentIngests, status.Available)
	assert.Equal(t, 0, status.Active)
}
