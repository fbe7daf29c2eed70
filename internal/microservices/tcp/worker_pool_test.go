package tcp

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(3, quietLogger())
	pool.Start()

	var running, peak, done atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			done.Add(1)
			return nil
		}))
	}
	pool.Wait()

	assert.Equal(t, int32(20), done.Load())
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestWorkerPool_FailedTaskDoesNotStopWorker(t *testing.T) {
	pool := NewWorkerPool(1, quietLogger())
	pool.Start()

	var ran atomic.Bool
	require.NoError(t, pool.Submit(func(context.Context) error { return errors.New("boom") }))
	require.NoError(t, pool.Submit(func(context.Context) error { ran.Store(true); return nil }))
	pool.Wait()

	assert.True(t, ran.Load())
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(1, quietLogger())
	pool.Start()
	pool.Wait()

	assert.ErrorIs(t, pool.Submit(func(context.Context) error { return nil }), ErrPoolClosed)
}

func TestWorkerPool_WaitContextTimesOut(t *testing.T) {
	pool := NewWorkerPool(1, quietLogger())
	pool.Start()

	release := make(chan struct{})
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.WaitContext(ctx), context.DeadlineExceeded)

	pool.Shutdown()
	close(release)
}

func TestWorkerPool_CloseReleasesBlockedSubmit(t *testing.T) {
	pool := NewWorkerPool(1, quietLogger())
	pool.Start()

	release := make(chan struct{})
	started := make(chan struct{})
	blocking := func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		close(started)
		return blocking(ctx)
	}))
	<-started
	// one worker busy, queue of two full
	require.NoError(t, pool.Submit(blocking))
	require.NoError(t, pool.Submit(blocking))

	submitErr := make(chan error, 1)
	go func() { submitErr <- pool.Submit(blocking) }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.ErrorIs(t, pool.WaitContext(ctx), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "deadline must hold while a submitter is blocked")

	select {
	case err := <-submitErr:
		assert.ErrorIs(t, err, ErrPoolClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked Submit did not return after Close")
	}

	pool.Shutdown()
	close(release)
}
