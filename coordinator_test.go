package sonargate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestCoordinator() (*Coordinator, *CacheStore) {
	store := NewCacheStore(testPolicy(), 100, nil, nil)
	return NewCoordinator(store, NewNopLogger(), nil), store
}

func TestCoordinatorSingleflight(t *testing.T) {
	coord, _ := newTestCoordinator()
	key := NewCacheKey("issues", "proj", nil)

	var calls int32
	loader := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond) // hold the flight open for joiners
		return []byte("payload"), nil
	}

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			value, err := coord.GetOrFetch(context.Background(), key, "issues", loader)
			if err != nil {
				return err
			}
			if string(value) != "payload" {
				return errors.New("waiter observed a different value")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls),
		"exactly one fetch may be in flight per key")
}

func TestCoordinatorServesFromCache(t *testing.T) {
	coord, store := newTestCoordinator()
	key := NewCacheKey("issues", "proj", nil)
	require.NoError(t, store.Put(key, []byte("cached"), "issues"))

	value, err := coord.GetOrFetch(context.Background(), key, "issues", func(context.Context) ([]byte, error) {
		t.Fatal("loader must not run on a cache hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), value)
}

func TestCoordinatorErrorsAreNeverCached(t *testing.T) {
	coord, store := newTestCoordinator()
	key := NewCacheKey("issues", "proj", nil)
	boom := newHTTPError(503, "", 0)

	_, err := coord.GetOrFetch(context.Background(), key, "issues", func(context.Context) ([]byte, error) {
		return nil, boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	_, ok := store.Get(key)
	assert.False(t, ok, "a failed fetch must not poison the cache")

	// The key is free again: a subsequent fetch runs and populates normally.
	value, err := coord.GetOrFetch(context.Background(), key, "issues", func(context.Context) ([]byte, error) {
		return []byte("recovered"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("recovered"), value)

	got, ok := store.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("recovered"), got)
}

func TestCoordinatorConcurrentFailuresShareOneError(t *testing.T) {
	coord, _ := newTestCoordinator()
	key := NewCacheKey("issues", "proj", nil)

	var calls int32
	loader := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(30 * time.Millisecond)
		return nil, newHTTPError(502, "", 0)
	}

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := coord.GetOrFetch(context.Background(), key, "issues", loader)
			var classified *Error
			if !errors.As(err, &classified) || classified.StatusCode != 502 {
				return errors.New("waiter did not observe the shared failure")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCoordinatorWaiterTimeoutDoesNotCancelFetch(t *testing.T) {
	coord, store := newTestCoordinator()
	key := NewCacheKey("issues", "proj", nil)

	release := make(chan struct{})
	started := make(chan struct{})
	loader := func(ctx context.Context) ([]byte, error) {
		close(started)
		select {
		case <-release:
			return []byte("slow"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := coord.GetOrFetch(ctx, key, "issues", loader)
	require.Error(t, err, "the impatient waiter must unblock on its own timeout")

	<-started
	close(release)

	// The fetch ran to completion on a detached context and populated the
	// cache for subsequent callers.
	assert.Eventually(t, func() bool {
		value, ok := store.Get(key)
		return ok && string(value) == "slow"
	}, time.Second, 10*time.Millisecond)
}

func TestCoordinatorLateArrivalsRequeryStore(t *testing.T) {
	coord, _ := newTestCoordinator()
	key := NewCacheKey("issues", "proj", nil)

	var calls int32
	loader := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("v"), nil
	}

	_, err := coord.GetOrFetch(context.Background(), key, "issues", loader)
	require.NoError(t, err)

	// The in-flight table is empty after resolution; this is a cache hit.
	value, err := coord.GetOrFetch(context.Background(), key, "issues", loader)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCoordinatorDistinctKeysFetchIndependently(t *testing.T) {
	coord, _ := newTestCoordinator()

	var calls int32
	loader := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("v"), nil
	}

	_, err := coord.GetOrFetch(context.Background(), NewCacheKey("issues", "a", nil), "issues", loader)
	require.NoError(t, err)
	_, err = coord.GetOrFetch(context.Background(), NewCacheKey("issues", "b", nil), "issues", loader)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
