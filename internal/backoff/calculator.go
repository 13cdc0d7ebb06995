package backoff

import "time"

// Calculator binds a Strategy to a convenient call surface.
type Calculator struct {
	strategy Strategy
}

// NewCalculator returns a calculator using the given strategy.
func NewCalculator(strategy Strategy) *Calculator {
	return &Calculator{strategy: strategy}
}

// NewExponentialJitterCalculator returns a calculator for the default
// exponential-with-jitter strategy.
func NewExponentialJitterCalculator() *Calculator {
	return NewCalculator(ExponentialJitter{})
}

// NewDecorrelatedJitterCalculator returns a calculator for AWS-style
// decorrelated jitter.
func NewDecorrelatedJitterCalculator() *Calculator {
	return NewCalculator(DecorrelatedJitter{})
}

// Calculate delegates to the configured strategy.
func (c *Calculator) Calculate(attempt int, baseDelay, maxDelay time.Duration, multiplier, jitter float64) time.Duration {
	return c.strategy.Calculate(attempt, baseDelay, maxDelay, multiplier, jitter)
}
