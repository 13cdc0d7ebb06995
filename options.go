package sonargate

import (
	"net/http"
	"time"
)

// Option customizes a Client beyond what Config covers.
type Option func(*Client)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock injects a clock, used by tests to drive TTL expiry, token refill
// and backoff deterministically.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom collector, e.g. one bound to a private
// registry.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithHTTPClient substitutes the pooled HTTP client, typically to point the
// transport at a test server or custom TLS setup.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCircuitBreaker puts a breaker in front of the transport. Without this
// option no circuit breaking is applied.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.breakerConfig = &config
	}
}

// WithResource registers an additional resource type with its endpoint, id
// parameter and TTL, extending the built-in registry.
func WithResource(name, path, idParam string, ttl time.Duration) Option {
	return func(c *Client) {
		c.extraResources = append(c.extraResources, namedResource{
			name: name,
			spec: resourceSpec{Path: path, IDParam: idParam, TTL: ttl},
		})
	}
}

type namedResource struct {
	name string
	spec resourceSpec
}
