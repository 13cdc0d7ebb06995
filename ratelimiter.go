package sonargate

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// RateLimitStatus is a point-in-time view of the token bucket for
// observability tools.
type RateLimitStatus struct {
	Available          int
	Capacity           int
	UtilizationPercent float64
}

// RateLimiter is a token bucket shared by all outbound calls. Refill is
// continuous and computed lazily at acquire time as
// min(capacity, tokens + elapsed*refillPerSec). A 429 from upstream can
// suspend refill until the server's Retry-After deadline via Penalize.
type RateLimiter struct {
	mu           sync.Mutex
	capacity     float64
	tokens       float64
	refillPerSec float64
	lastRefill   time.Time
	clock        Clock
}

// NewRateLimiter creates a full bucket with the given capacity and refill
// rate in tokens per second.
func NewRateLimiter(capacity int, refillPerSec float64, clock Clock) *RateLimiter {
	if clock == nil {
		clock = systemClock{}
	}
	return &RateLimiter{
		capacity:     float64(capacity),
		tokens:       float64(capacity),
		refillPerSec: refillPerSec,
		lastRefill:   clock.Now(),
		clock:        clock,
	}
}

// Acquire blocks until n tokens are available or ctx is done. On success the
// tokens are deducted atomically. Cancellation surfaces as a RateLimit error
// so callers see a single classification for "could not get a slot in time".
func (rl *RateLimiter) Acquire(ctx context.Context, n int) error {
	if float64(n) > rl.capacity {
		return &Error{
			Type:    ErrorTypeValidation,
			Message: fmt.Sprintf("cannot acquire %d tokens from a bucket of capacity %d", n, int(rl.capacity)),
		}
	}

	for {
		rl.mu.Lock()
		now := rl.clock.Now()
		rl.refillLocked(now)
		if rl.tokens >= float64(n) {
			rl.tokens -= float64(n)
			rl.mu.Unlock()
			return nil
		}

		wait := rl.waitForLocked(n, now)
		rl.mu.Unlock()

		select {
		case <-rl.clock.After(wait):
		case <-ctx.Done():
			return &Error{
				Type:    ErrorTypeRateLimit,
				Message: "timed out waiting for rate limiter tokens",
				Cause:   ctx.Err(),
			}
		}
	}
}

// Penalize empties the bucket and suspends refill for the given duration.
// The retry orchestrator calls this when upstream answers 429 with a
// Retry-After header, so the next refill honors the server's request.
func (rl *RateLimiter) Penalize(d time.Duration) {
	if d <= 0 {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = 0
	// A lastRefill in the future stalls refillLocked until the deadline.
	rl.lastRefill = rl.clock.Now().Add(d)
}

// Status reports current availability after applying any pending refill.
func (rl *RateLimiter) Status() RateLimitStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked(rl.clock.Now())

	status := RateLimitStatus{
		Available: int(rl.tokens),
		Capacity:  int(rl.capacity),
	}
	if rl.capacity > 0 {
		status.UtilizationPercent = (rl.capacity - rl.tokens) / rl.capacity * 100
	}
	return status
}

func (rl *RateLimiter) refillLocked(now time.Time) {
	if !now.After(rl.lastRefill) {
		return
	}
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens = math.Min(rl.capacity, rl.tokens+elapsed*rl.refillPerSec)
	rl.lastRefill = now
}

// waitForLocked estimates how long until n tokens will be available,
// accounting for a refill suspended by Penalize.
func (rl *RateLimiter) waitForLocked(n int, now time.Time) time.Duration {
	deficit := float64(n) - rl.tokens
	wait := time.Duration(deficit / rl.refillPerSec * float64(time.Second))
	if rl.lastRefill.After(now) {
		wait += rl.lastRefill.Sub(now)
	}
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}
