package sonargate

import (
	"sync"
	"time"
)

// CircuitState is the breaker's position.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreakerConfig tunes the optional breaker in front of the transport.
type CircuitBreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before probing.
	RecoveryTimeout time.Duration
	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int
}

// CircuitBreaker fails fast when the upstream is persistently unhealthy, so
// retries do not pile onto a dead server. It is optional; the client runs
// without one unless configured.
type CircuitBreaker struct {
	mu          sync.Mutex
	config      CircuitBreakerConfig
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
	clock       Clock
}

// NewCircuitBreaker creates a breaker with sane defaults for zero fields:
// 5 failures to open, 60s recovery, 2 successes to close.
func NewCircuitBreaker(config CircuitBreakerConfig, clock Clock) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &CircuitBreaker{config: config, state: CircuitClosed, clock: clock}
}

// Allow reports whether a call may proceed, transitioning open → half-open
// once the recovery timeout has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if cb.clock.Now().Sub(cb.lastFailure) >= cb.config.RecoveryTimeout {
			cb.state = CircuitHalfOpen
			cb.successes = 0
			return true
		}
		return false
	default:
		return false
	}
}

// RecordFailure counts a failed call. Enough failures open the circuit; any
// failure while half-open reopens it immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = cb.clock.Now()
	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.state = CircuitOpen
		}
	case CircuitHalfOpen:
		cb.state = CircuitOpen
		cb.successes = 0
	}
}

// RecordSuccess counts a successful call; enough half-open successes close
// the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitHalfOpen {
		return
	}
	cb.successes++
	if cb.successes >= cb.config.SuccessThreshold {
		cb.state = CircuitClosed
		cb.failures = 0
		cb.successes = 0
	}
}

// State returns the current breaker position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
