package sonargate

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MoisesTapia/mcp-sonarqube-sub000/internal/backoff"
)

// RetryPolicy controls how a single logical operation is retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries including the first one.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// JitterFraction adds uniform(0, delay*fraction) on top of each delay.
	JitterFraction float64
	// RetryableStatusCodes lists the HTTP statuses worth another attempt.
	RetryableStatusCodes map[int]bool
}

// DefaultRetryPolicy returns the policy used when the configuration does not
// override it: 3 attempts, 100ms base doubling up to 10s, 10% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		JitterFraction: 0.1,
		RetryableStatusCodes: map[int]bool{
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
	}
}

// retryable reports whether err is worth another attempt under this policy.
// Network and timeout failures always are; HTTP errors are decided by status.
func (p RetryPolicy) retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeTimeout:
		return e.StatusCode == 0 || p.RetryableStatusCodes[e.StatusCode]
	default:
		return e.StatusCode != 0 && p.RetryableStatusCodes[e.StatusCode]
	}
}

// RetryOrchestrator wraps one logical operation with classification-driven
// exponential backoff. Fatal errors surface on the first occurrence without
// consuming retry budget; on exhaustion the last classified error surfaces
// verbatim with its attempt count.
type RetryOrchestrator struct {
	policy  RetryPolicy
	limiter *RateLimiter
	backoff *backoff.Calculator
	clock   Clock
	logger  Logger
	metrics *MetricsCollector
}

// NewRetryOrchestrator builds an orchestrator. limiter may be nil if no 429
// feedback is wanted; metrics may be nil.
func NewRetryOrchestrator(policy RetryPolicy, limiter *RateLimiter, clock Clock, logger Logger, metrics *MetricsCollector) *RetryOrchestrator {
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &RetryOrchestrator{
		policy:  policy,
		limiter: limiter,
		backoff: backoff.NewExponentialJitterCalculator(),
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Execute runs op until it succeeds, fails fatally, or the attempt budget is
// spent. label tags log lines and metrics; it is typically the resource type.
func (o *RetryOrchestrator) Execute(ctx context.Context, label string, op func(context.Context) (*RawResponse, error)) (*RawResponse, error) {
	var last error

	for attempt := 1; attempt <= o.policy.MaxAttempts; attempt++ {
		resp, err := op(ctx)
		if err == nil {
			return resp, nil
		}

		var classified *Error
		if errors.As(err, &classified) {
			classified.Attempts = attempt
		}

		// A 429 carrying Retry-After means the upstream explicitly asked
		// for backoff; empty the shared bucket so other callers honor it.
		if classified != nil && classified.StatusCode == http.StatusTooManyRequests &&
			classified.RetryAfter > 0 && o.limiter != nil {
			o.limiter.Penalize(classified.RetryAfter)
		}

		if !o.policy.retryable(err) {
			return nil, err
		}
		last = err

		if attempt == o.policy.MaxAttempts {
			break
		}

		delay := o.backoff.Calculate(attempt-1, o.policy.BaseDelay, o.policy.MaxDelay, 2.0, o.policy.JitterFraction)
		if classified != nil && classified.RetryAfter > delay {
			delay = classified.RetryAfter
		}

		o.logger.Debug("scheduling retry",
			"label", label,
			"attempt", attempt,
			"maxAttempts", o.policy.MaxAttempts,
			"delay", delay,
		)
		o.metrics.RecordRetry(label, attempt)

		select {
		case <-o.clock.After(delay):
		case <-ctx.Done():
			e := ctxError(ctx.Err(), "canceled while waiting to retry")
			e.Attempts = attempt
			return nil, e
		}
	}

	return nil, last
}
