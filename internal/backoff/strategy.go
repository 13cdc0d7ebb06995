// Package backoff centralizes retry delay calculation so the orchestrator
// and tests share one implementation.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the delay before a retry attempt. attempt is zero-based:
// the delay before the first retry uses attempt 0.
type Strategy interface {
	Calculate(attempt int, baseDelay, maxDelay time.Duration, multiplier, jitter float64) time.Duration
}

// ExponentialJitter grows the delay geometrically and adds a uniform random
// component: min(maxDelay, base*multiplier^attempt) + uniform(0, delay*jitter).
type ExponentialJitter struct{}

// Calculate implements Strategy.
func (ExponentialJitter) Calculate(attempt int, baseDelay, maxDelay time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Clamp the exponent so the float math cannot overflow.
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(baseDelay) * pow(multiplier, attempt))
	if delay < 0 || delay > maxDelay {
		delay = maxDelay
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		extra := time.Duration(float64(delay) * jitter * rand.Float64())
		if delay+extra > maxDelay {
			delay = maxDelay
		} else {
			delay += extra
		}
	}
	return delay
}

// DecorrelatedJitter implements AWS-style decorrelated jitter:
// random_between(base, min(maxDelay, base*3^attempt)). It spreads retry
// storms more evenly than exponential jitter at the cost of less
// predictable individual delays.
type DecorrelatedJitter struct{}

// Calculate implements Strategy. The jitter fraction is unused; the whole
// delay is randomized by construction.
func (DecorrelatedJitter) Calculate(attempt int, baseDelay, maxDelay time.Duration, _, _ float64) time.Duration {
	if attempt <= 0 {
		return baseDelay
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(baseDelay)
	upper := base * pow(3.0, attempt)
	if upper > float64(maxDelay) || upper < 0 {
		upper = float64(maxDelay)
	}
	if upper < base {
		upper = base
	}

	delay := time.Duration(base + rand.Float64()*(upper-base))
	if delay < 0 || delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
