package sonargate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterBurstWithinCapacity(t *testing.T) {
	rl := NewRateLimiter(10, 1.0, nil)
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = rl.Acquire(ctx, 1)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "acquire %d", i)
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond,
		"a full bucket must serve capacity acquires without waiting")
}

func TestRateLimiterBlocksWhenEmpty(t *testing.T) {
	// Capacity 2 at 10 tokens/sec: the third acquire waits ~100ms.
	rl := NewRateLimiter(2, 10.0, nil)
	ctx := context.Background()

	require.NoError(t, rl.Acquire(ctx, 1))
	require.NoError(t, rl.Acquire(ctx, 1))

	start := time.Now()
	require.NoError(t, rl.Acquire(ctx, 1))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestRateLimiterAcquireTimesOut(t *testing.T) {
	rl := NewRateLimiter(1, 0.1, nil) // one token every 10s
	require.NoError(t, rl.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := rl.Acquire(ctx, 1)
	require.Error(t, err)

	var classified *Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, ErrorTypeRateLimit, classified.Type)
}

func TestRateLimiterAcquireMoreThanCapacity(t *testing.T) {
	rl := NewRateLimiter(2, 1.0, nil)

	err := rl.Acquire(context.Background(), 3)
	require.Error(t, err)

	var classified *Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, ErrorTypeValidation, classified.Type)
}

func TestRateLimiterRefillNeverExceedsCapacity(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(5, 100.0, clock)

	require.NoError(t, rl.Acquire(context.Background(), 2))
	clock.Advance(time.Hour)

	status := rl.Status()
	assert.Equal(t, 5, status.Available)
	assert.Equal(t, 5, status.Capacity)
	assert.Equal(t, 0.0, status.UtilizationPercent)
}

func TestRateLimiterPenalizeSuspendsRefill(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(10, 10.0, clock)

	rl.Penalize(5 * time.Second)
	assert.Equal(t, 0, rl.Status().Available)

	// Refill stays suspended inside the penalty window.
	clock.Advance(3 * time.Second)
	assert.Equal(t, 0, rl.Status().Available)

	// Tokens accrue again only after the Retry-After deadline.
	clock.Advance(3 * time.Second) // 1s past the deadline at 10/s
	assert.Equal(t, 10, rl.Status().Available)
}

func TestRateLimiterStatusUtilization(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(10, 0.000001, clock)

	require.NoError(t, rl.Acquire(context.Background(), 4))

	status := rl.Status()
	assert.Equal(t, 6, status.Available)
	assert.InDelta(t, 40.0, status.UtilizationPercent, 0.001)
}
