// Package l1 implements the fabric's fastest tier: an in-memory vector
// cache evicted by least-frequently-used access count.
package l1

import (
	"sync"
	"time"

	"github.com/telos-systems/telos-core/internal/memory"
	"github.com/telos-systems/telos-core/internal/vectorindex"
)

// Tier is the L1 cache. It owns its own read-write lock per spec §5's
// shared-resource policy: readers never block readers, writers are
// exclusive.
type Tier struct {
	mu      sync.RWMutex
	entries map[string]*memory.CacheEntry
	index   vectorindex.InMemoryANN
	maxSize int
}

// New creates an L1 tier with the given capacity and vector dimension.
func New(maxSize, vectorDim int) *Tier {
	return &Tier{
		entries: make(map[string]*memory.CacheEntry),
		index:   vectorindex.NewBruteForce(vectorDim),
		maxSize: maxSize,
	}
}

// Get returns the entry for key and records an access hit (bumping
// AccessCount and LastAccess), or reports a miss.
func (t *Tier) Get(key string) (*memory.CacheEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return nil, false
	}
	e.AccessCount++
	e.LastAccess = time.Now().UTC()
	cp := *e
	return &cp, true
}

// Put inserts or overwrites an entry. StoredAt must already be set by the
// caller; Put rejects a write whose StoredAt is older than an existing
// entry's StoredAt, preserving the monotonic-write invariant.
func (t *Tier) Put(e memory.CacheEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.entries[e.Key]; ok && e.StoredAt.Before(existing.StoredAt) {
		return nil // stale write, last-write-wins at the tier level ignores it
	}

	cp := e
	t.entries[e.Key] = &cp
	if len(e.Vector) > 0 {
		_ = t.index.Insert(e.Key, e.Vector)
	}

	t.evictIfOverCapacityLocked()
	return nil
}

// Remove deletes an entry, used by invalidate().
func (t *Tier) Remove(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
	_ = t.index.Remove(key)
}

// evictIfOverCapacityLocked evicts the least-frequently-used entries (by
// AccessCount ascending, ties broken by oldest LastAccess) until the tier
// is at or under maxSize. Caller must hold the write lock.
func (t *Tier) evictIfOverCapacityLocked() {
	for len(t.entries) > t.maxSize {
		var victim string
		var victimCount = -1
		var victimLast time.Time
		first := true
		for k, e := range t.entries {
			if first || e.AccessCount < victimCount || (e.AccessCount == victimCount && e.LastAccess.Before(victimLast)) {
				victim = k
				victimCount = e.AccessCount
				victimLast = e.LastAccess
				first = false
			}
		}
		if victim == "" {
			return
		}
		delete(t.entries, victim)
		_ = t.index.Remove(victim)
	}
}

// Search runs a cosine-similarity query over the resident vector set.
func (t *Tier) Search(vector []float32, k int) ([]vectorindex.Match, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index.Query(vector, k)
}

// Len returns the number of resident entries.
func (t *Tier) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// MaxSize returns the current capacity.
func (t *Tier) MaxSize() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.maxSize
}

// Resize adjusts capacity for adaptive sizing; an immediate eviction pass
// runs if the new size is smaller than the current occupancy.
func (t *Tier) Resize(newSize int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxSize = newSize
	t.evictIfOverCapacityLocked()
}

// Snapshot returns a copy of all resident entries, used by the sync
// coordinator to compare StoredAt against L2.
func (t *Tier) Snapshot() []memory.CacheEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]memory.CacheEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	return out
}
