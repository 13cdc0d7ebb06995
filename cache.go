package sonargate

import (
	"fmt"
	"sync"
	"time"

	"github.com/MoisesTapia/mcp-sonarqube-sub000/internal/eviction"
)

// CacheEntry is a stored upstream payload. The value is opaque to this layer.
type CacheEntry struct {
	Key          CacheKey
	Value        []byte
	ResourceType string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Size         int
}

// CacheStats is a point-in-time snapshot of store counters.
type CacheStats struct {
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	EntryCount int
	HitRatio   float64
}

// CacheStore is a bounded, TTL-aware table keyed by CacheKey. Entries past
// their deadline are treated as misses and removed lazily on the next touch;
// capacity pressure evicts the least-recently-used entry regardless of
// remaining TTL. Safe for concurrent use.
type CacheStore struct {
	mu         sync.Mutex
	entries    map[string]*CacheEntry
	order      *eviction.LRU
	maxEntries int
	ttl        TTLPolicy
	clock      Clock
	metrics    *MetricsCollector

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewCacheStore creates a store with the given TTL policy and entry bound.
// metrics may be nil.
func NewCacheStore(ttl TTLPolicy, maxEntries int, clock Clock, metrics *MetricsCollector) *CacheStore {
	if clock == nil {
		clock = systemClock{}
	}
	return &CacheStore{
		entries:    make(map[string]*CacheEntry),
		order:      eviction.NewLRU(),
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		metrics:    metrics,
	}
}

// Get returns the stored value for key if present and not expired.
func (s *CacheStore) Get(key CacheKey) ([]byte, bool) {
	ks := key.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[ks]
	if !ok {
		s.misses++
		return nil, false
	}
	if s.clock.Now().After(entry.ExpiresAt) {
		// Expired entries are lazy misses, not evictions.
		delete(s.entries, ks)
		s.order.Remove(ks)
		s.misses++
		return nil, false
	}
	s.order.Touch(ks)
	s.hits++
	// Hand out a copy: a caller mutating the payload must not corrupt the
	// entry for subsequent readers.
	out := make([]byte, len(entry.Value))
	copy(out, entry.Value)
	return out, true
}

// Put stores value under key using the TTL registered for resourceType.
// Unknown resource types are rejected.
func (s *CacheStore) Put(key CacheKey, value []byte, resourceType string) error {
	ttl, ok := s.ttl[resourceType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownResourceType, resourceType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	ks := key.String()
	stored := make([]byte, len(value))
	copy(stored, value)
	s.entries[ks] = &CacheEntry{
		Key:          key,
		Value:        stored,
		ResourceType: resourceType,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		Size:         len(value),
	}
	s.order.Add(ks)

	for len(s.entries) > s.maxEntries {
		victim, ok := s.order.Evict()
		if !ok {
			break
		}
		delete(s.entries, victim)
		s.evictions++
		s.metrics.RecordCacheEviction()
	}
	s.metrics.RecordCacheSize(len(s.entries))
	return nil
}

// Invalidate removes a single entry.
func (s *CacheStore) Invalidate(key CacheKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key.String())
	s.metrics.RecordCacheSize(len(s.entries))
}

// InvalidateProject removes every entry whose key references resourceID,
// across all resource types. Invalidating a project this way cascades to its
// metrics, issues, quality-gate and security-hotspot entries. Returns the
// number of entries removed.
func (s *CacheStore) InvalidateProject(resourceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for ks, entry := range s.entries {
		if entry.Key.ResourceID == resourceID {
			s.removeLocked(ks)
			removed++
		}
	}
	s.metrics.RecordCacheSize(len(s.entries))
	return removed
}

// ClearType removes every entry of the given resource type and returns the
// number removed.
func (s *CacheStore) ClearType(resourceType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for ks, entry := range s.entries {
		if entry.ResourceType == resourceType {
			s.removeLocked(ks)
			removed++
		}
	}
	s.metrics.RecordCacheSize(len(s.entries))
	return removed
}

// ClearAll empties the store. Counters are preserved.
func (s *CacheStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*CacheEntry)
	s.order = eviction.NewLRU()
	s.metrics.RecordCacheSize(0)
}

// Stats returns a snapshot of the store counters.
func (s *CacheStore) Stats() CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := CacheStats{
		Hits:       s.hits,
		Misses:     s.misses,
		Evictions:  s.evictions,
		EntryCount: len(s.entries),
	}
	if total := s.hits + s.misses; total > 0 {
		stats.HitRatio = float64(s.hits) / float64(total)
	}
	return stats
}

func (s *CacheStore) removeLocked(ks string) {
	delete(s.entries, ks)
	s.order.Remove(ks)
}
