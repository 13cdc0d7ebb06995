package sonargate

import (
	"context"
	"sync"
)

// inFlight is one fetch being shared between concurrent callers for a key.
// Waiters block on done; value/err are written exactly once before it closes.
type inFlight struct {
	done  chan struct{}
	value []byte
	err   error
}

// Coordinator guarantees at most one upstream fetch is in flight per cache
// key, fanning the outcome out to every concurrent waiter. A waiter's own
// cancellation only unblocks that waiter; the fetch itself runs on a
// detached context until it resolves.
type Coordinator struct {
	mu       sync.Mutex
	inflight map[string]*inFlight
	store    *CacheStore
	logger   Logger
	metrics  *MetricsCollector
}

// NewCoordinator wires the singleflight table to a store. logger and metrics
// may be nil.
func NewCoordinator(store *CacheStore, logger Logger, metrics *MetricsCollector) *Coordinator {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Coordinator{
		inflight: make(map[string]*inFlight),
		store:    store,
		logger:   logger,
		metrics:  metrics,
	}
}

// GetOrFetch returns the cached value for key, or runs loader exactly once
// per key while concurrent callers wait for the same outcome. Successful
// results are stored before waiters are released; failures release every
// waiter with the same error and leave the store untouched.
func (c *Coordinator) GetOrFetch(ctx context.Context, key CacheKey, resourceType string, loader func(context.Context) ([]byte, error)) ([]byte, error) {
	if value, ok := c.store.Get(key); ok {
		c.metrics.RecordCacheHit(resourceType)
		return value, nil
	}
	c.metrics.RecordCacheMiss(resourceType)

	ks := key.String()

	// Check-then-insert is a single critical section so two callers can
	// never both believe they own the fetch.
	c.mu.Lock()
	call, joined := c.inflight[ks]
	if !joined {
		call = &inFlight{done: make(chan struct{})}
		c.inflight[ks] = call
	}
	c.mu.Unlock()

	if joined {
		c.metrics.RecordSingleflightShared(resourceType)
		c.logger.Debug("joining in-flight fetch", "key", ks)
	} else {
		// Detach the fetch from the owner's cancellation: other waiters may
		// still be attached after the owner gives up.
		go c.fetch(context.WithoutCancel(ctx), key, ks, resourceType, call, loader)
	}

	select {
	case <-call.done:
		return call.value, call.err
	case <-ctx.Done():
		return nil, ctxError(ctx.Err(), "canceled while waiting for in-flight fetch")
	}
}

func (c *Coordinator) fetch(ctx context.Context, key CacheKey, ks, resourceType string, call *inFlight, loader func(context.Context) ([]byte, error)) {
	value, err := loader(ctx)
	if err == nil {
		if perr := c.store.Put(key, value, resourceType); perr != nil {
			value, err = nil, perr
		}
	}
	call.value, call.err = value, err

	// Remove the entry before releasing waiters: anyone arriving after this
	// point must re-query the store rather than join a resolved fetch.
	c.mu.Lock()
	delete(c.inflight, ks)
	c.mu.Unlock()
	close(call.done)

	if err != nil {
		c.logger.Debug("fetch failed, result not cached", "key", ks, "error", err.Error())
	}
}
