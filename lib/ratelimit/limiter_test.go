package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAllow(t *testing.T) {
	// 10 tokens/sec, capacity 5
	limiter := New(10, 5)

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(), "request %d should be allowed", i)
	}
	assert.False(t, limiter.Allow(), "6th request should be denied")
}

func TestLimiterRefill(t *testing.T) {
	limiter := New(100, 10)
	for i := 0; i < 10; i++ {
		limiter.Allow()
	}
	require.False(t, limiter.Allow())

	// 100ms adds about 10 tokens
	time.Sleep(100 * time.Millisecond)
	assert.True(t, limiter.Allow())
}

func TestLimiterReserve(t *testing.T) {
	limiter := New(10, 1)

	assert.Zero(t, limiter.Reserve())
	d := limiter.Reserve()
	assert.Greater(t, d, 50*time.Millisecond)
	assert.LessOrEqual(t, d, 100*time.Millisecond)
	assert.Less(t, limiter.Tokens(), 0.0)
}

func TestLimiterWait(t *testing.T) {
	limiter := New(50, 1)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestLimiterWaitCancelled(t *testing.T) {
	limiter := New(0.5, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, limiter.Wait(ctx), context.DeadlineExceeded)

	// the cancelled reservation was returned
	assert.Greater(t, limiter.Tokens(), -0.5)
}

func TestLimiterConcurrent(t *testing.T) {
	limiter := New(1000, 100)

	var wg sync.WaitGroup
	var allowed atomic.Int32
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow() {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, allowed.Load(), int32(100))
	assert.LessOrEqual(t, allowed.Load(), int32(110))
}
