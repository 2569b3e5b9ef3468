package scan

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/kishor/mergescan/internal/match"
)

type cacheEntry struct {
	results []match.Detection
	expires time.Time
}

// Memoizer caches one scan's results per (region, template set) so repeated
// scans of an unchanged request within the TTL skip capture and matching
// entirely. The store signature is part of the key, so any template reload or
// invalidation implicitly misses.
type Memoizer struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry

	now func() time.Time
}

// NewMemoizer builds a memoizer with the given entry lifetime. A zero or
// negative TTL disables caching.
func NewMemoizer(ttl time.Duration) *Memoizer {
	return &Memoizer{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Key derives the cache key for a scan request.
func (m *Memoizer) Key(region image.Rectangle, storeSignature string) string {
	return fmt.Sprintf("%d,%d,%d,%d|%s",
		region.Min.X, region.Min.Y, region.Max.X, region.Max.Y, storeSignature)
}

// Get returns a copy of the cached results for the key, or ok=false on a
// miss or expiry. Expired entries are pruned on access.
func (m *Memoizer) Get(key string) ([]match.Detection, bool) {
	if m == nil || m.ttl <= 0 {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return copyDetections(e.results), true
}

// Put stores a copy of the results under the key.
func (m *Memoizer) Put(key string, results []match.Detection) {
	if m == nil || m.ttl <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = cacheEntry{
		results: copyDetections(results),
		expires: m.now().Add(m.ttl),
	}
}

// Invalidate drops every cached entry.
func (m *Memoizer) Invalidate() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]cacheEntry)
}

// SetTTL changes the entry lifetime for subsequent Puts.
func (m *Memoizer) SetTTL(ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttl = ttl
}

// copyDetections deep-copies results so cached slices cannot be mutated by
// callers.
func copyDetections(in []match.Detection) []match.Detection {
	if in == nil {
		return nil
	}
	out := make([]match.Detection, len(in))
	for i, d := range in {
		out[i] = d
		if d.Positions != nil {
			out[i].Positions = make([]image.Point, len(d.Positions))
			copy(out[i].Positions, d.Positions)
		}
	}
	return out
}
