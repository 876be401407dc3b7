package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	assert.Equal(t, 5, NewPool[int](context.Background(), 5).workers)
	assert.Equal(t, 1, NewPool[int](context.Background(), 0).workers)
	assert.Equal(t, 1, NewPool[int](context.Background(), -1).workers)
}

func TestPool_ResultsInSubmissionOrder(t *testing.T) {
	pool := NewPool[int](context.Background(), 3)
	pool.Start()

	var executed int32
	count := 50
	for i := 0; i < count; i++ {
		n := i
		pool.Submit(func(ctx context.Context) (int, error) {
			atomic.AddInt32(&executed, 1)
			// Later jobs finish first.
			time.Sleep(time.Duration(count-n) * 100 * time.Microsecond)
			return n * n, nil
		})
	}

	results := pool.Wait()
	require.Len(t, results, count)
	assert.Equal(t, int32(count), atomic.LoadInt32(&executed))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, i*i, r.Value)
		assert.NoError(t, r.Err)
	}
}

func TestPool_Errors(t *testing.T) {
	results := Run(context.Background(), 2, []Job[string]{
		func(context.Context) (string, error) { return "ok", nil },
		func(context.Context) (string, error) { return "", errors.New("boom") },
	})

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.EqualError(t, results[1].Err, "boom")
}

func TestPool_Shutdown(t *testing.T) {
	pool := NewPool[int](context.Background(), 1)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	<-started

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown timed out")
	}

	results := pool.Wait()
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestRun_Empty(t *testing.T) {
	assert.Nil(t, Run[int](context.Background(), 4, nil))
}

func TestRun_MoreJobsThanBuffer(t *testing.T) {
	jobs := make([]Job[int], 100)
	for i := range jobs {
		n := i
		jobs[i] = func(context.Context) (int, error) { return n, nil }
	}

	results := Run(context.Background(), 2, jobs)
	require.Len(t, results, 100)
	assert.Equal(t, 99, results[99].Value)
}
