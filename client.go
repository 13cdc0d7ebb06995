package sonargate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client is the façade MCP tool handlers call. It composes the transport,
// rate limiter, retry orchestrator, cache store and singleflight coordinator
// behind four operations: Get, InvalidateProject, CacheInfo and
// RateLimitStatus. It is safe for concurrent use.
type Client struct {
	cfg       Config
	resources map[string]resourceSpec

	transport   *Transport
	limiter     *RateLimiter
	retry       *RetryOrchestrator
	store       *CacheStore
	coordinator *Coordinator
	breaker     *CircuitBreaker

	logger  Logger
	metrics *MetricsCollector
	clock   Clock

	// staged by options before components are built
	httpClient     *http.Client
	breakerConfig  *CircuitBreakerConfig
	extraResources []namedResource
}

// New validates cfg, applies options and wires the components. Construction
// fails fast on any invalid or missing configuration value.
func New(cfg Config, options ...Option) (*Client, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		logger: NewNopLogger(),
		clock:  systemClock{},
	}
	for _, option := range options {
		option(c)
	}

	resources, err := buildResources(cfg.TTLOverrides)
	if err != nil {
		return nil, err
	}
	for _, extra := range c.extraResources {
		if extra.spec.TTL <= 0 {
			return nil, fmt.Errorf("resource %q: ttl must be positive", extra.name)
		}
		resources[extra.name] = extra.spec
	}
	c.resources = resources

	c.transport = newTransport(cfg, c.httpClient, c.logger)
	c.limiter = NewRateLimiter(cfg.RateCapacity, cfg.RefillPerSec, c.clock)
	c.store = NewCacheStore(ttlPolicyFor(resources), cfg.MaxEntries, c.clock, c.metrics)
	c.retry = NewRetryOrchestrator(cfg.retryPolicy(), c.limiter, c.clock, c.logger, c.metrics)
	c.coordinator = NewCoordinator(c.store, c.logger, c.metrics)
	if c.breakerConfig != nil {
		c.breaker = NewCircuitBreaker(*c.breakerConfig, c.clock)
	}

	c.logger.Info("sonargate client configured",
		"version", Version,
		"baseURL", cfg.BaseURL,
		"token", redactToken(cfg.Token),
		"maxRetries", cfg.MaxRetries,
		"rateCapacity", cfg.RateCapacity,
		"refillPerSec", cfg.RefillPerSec,
		"maxEntries", cfg.MaxEntries,
	)
	return c, nil
}

// Get returns the payload for a resource, serving from cache when fresh and
// coalescing concurrent fetches for the same key into a single upstream
// call. The returned bytes are the upstream JSON body, uninterpreted.
func (c *Client) Get(ctx context.Context, resourceType, resourceID string, params map[string]string) ([]byte, error) {
	spec, ok := c.resources[resourceType]
	if !ok {
		return nil, &Error{
			Type:    ErrorTypeValidation,
			Message: fmt.Sprintf("resource type %q is not registered", resourceType),
			Cause:   ErrUnknownResourceType,
		}
	}

	key := NewCacheKey(resourceType, resourceID, params)
	c.metrics.RecordRequestStart(resourceType)
	defer c.metrics.RecordRequestEnd(resourceType)

	value, err := c.coordinator.GetOrFetch(ctx, key, resourceType, func(ctx context.Context) ([]byte, error) {
		return c.load(ctx, spec, resourceType, resourceID, params)
	})
	if err != nil {
		var classified *Error
		if errors.As(err, &classified) {
			c.metrics.RecordError(classified.Type, resourceType)
		}
		return nil, err
	}
	return value, nil
}

// load is the loader handed to the coordinator: retry-orchestrated rate
// limiter acquisition plus one transport call per attempt.
func (c *Client) load(ctx context.Context, spec resourceSpec, resourceType, resourceID string, params map[string]string) ([]byte, error) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	if resourceID != "" {
		values.Set(spec.IDParam, resourceID)
	}

	start := c.clock.Now()
	resp, err := c.retry.Execute(ctx, resourceType, func(ctx context.Context) (*RawResponse, error) {
		if c.breaker != nil && !c.breaker.Allow() {
			c.metrics.RecordCircuitBreakerState(c.breaker.State())
			return nil, &Error{Type: ErrorTypeCircuitOpen, Message: "upstream circuit is open", Cause: ErrCircuitOpen}
		}

		acquireCtx, cancel := context.WithTimeout(ctx, c.cfg.AcquireTimeout)
		defer cancel()
		if err := c.limiter.Acquire(acquireCtx, 1); err != nil {
			return nil, err
		}
		c.metrics.RecordRateLimiterTokens(c.limiter.Status().Available)

		resp, err := c.transport.Call(ctx, http.MethodGet, spec.Path, values, nil)
		if c.breaker != nil {
			if isBreakerFailure(err) {
				c.breaker.RecordFailure()
			} else if err == nil {
				c.breaker.RecordSuccess()
			}
			c.metrics.RecordCircuitBreakerState(c.breaker.State())
		}
		return resp, err
	})

	// Request metrics count upstream round trips only; cache hits never
	// reach this path.
	duration := c.clock.Now().Sub(start)
	if err != nil {
		var classified *Error
		if errors.As(err, &classified) {
			c.metrics.RecordRequest(resourceType, classified.StatusCode, duration)
		}
		return nil, err
	}
	c.metrics.RecordRequest(resourceType, resp.StatusCode, duration)
	return resp.Body, nil
}

// isBreakerFailure reports whether err should count against the circuit
// breaker. Only upstream-health failures do; client-side 4xx responses are
// the caller's problem, not the server's.
func isBreakerFailure(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeServer:
		return true
	default:
		return false
	}
}

// InvalidateProject removes every cached entry keyed under projectKey across
// all resource types and returns how many were dropped. Tool handlers call
// this after a mutation (issue update, project delete) succeeds upstream.
func (c *Client) InvalidateProject(projectKey string) int {
	removed := c.store.InvalidateProject(projectKey)
	c.logger.Debug("project cache invalidated", "project", projectKey, "entries", removed)
	return removed
}

// ClearType drops every cached entry of one resource type.
func (c *Client) ClearType(resourceType string) int {
	return c.store.ClearType(resourceType)
}

// ClearCache empties the cache entirely.
func (c *Client) ClearCache() {
	c.store.ClearAll()
}

// CacheInfo returns cache counters for observability tools.
func (c *Client) CacheInfo() CacheStats {
	return c.store.Stats()
}

// RateLimitStatus returns the token bucket's current utilization.
func (c *Client) RateLimitStatus() RateLimitStatus {
	return c.limiter.Status()
}

// ResourceTTL reports the configured TTL for a resource type.
func (c *Client) ResourceTTL(resourceType string) (time.Duration, error) {
	spec, ok := c.resources[resourceType]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownResourceType, resourceType)
	}
	return spec.TTL, nil
}
