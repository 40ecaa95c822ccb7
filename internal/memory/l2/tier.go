// Package l2 implements the fabric's on-disk ANN tier, evicted by
// least-recently-used access time.
package l2

import (
	"context"
	"sync"
	"time"

	"github.com/telos-systems/telos-core/internal/memory"
	"github.com/telos-systems/telos-core/internal/vectorindex"
)

// Tier is the L2 cache, backed by a durable vectorindex.OnDiskANN.
type Tier struct {
	mu      sync.RWMutex
	entries map[string]*memory.CacheEntry
	index   vectorindex.OnDiskANN
	maxSize int
}

// New wraps an already-constructed OnDiskANN backend (SQLiteANN or
// LanceDBANN, selected by the caller based on configuration).
func New(index vectorindex.OnDiskANN, maxSize int) *Tier {
	return &Tier{entries: make(map[string]*memory.CacheEntry), index: index, maxSize: maxSize}
}

// Get returns the entry for key and records a hit. The promotion decision
// (access_count >= promotion_threshold) is made by the fabric, which reads
// the returned entry's AccessCount.
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

// Put inserts or overwrites an entry, rejecting stale writes per the
// monotonic StoredAt invariant.
func (t *Tier) Put(ctx context.Context, e memory.CacheEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.entries[e.Key]; ok && e.StoredAt.Before(existing.StoredAt) {
		return nil
	}

	cp := e
	t.entries[e.Key] = &cp
	if len(e.Vector) > 0 {
		if err := t.index.Insert(ctx, e.Key, e.Vector); err != nil {
			return err
		}
	}

	return t.evictIfOverCapacityLocked(ctx)
}

// Remove deletes an entry.
func (t *Tier) Remove(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
	return t.index.Remove(ctx, key)
}

func (t *Tier) evictIfOverCapacityLocked(ctx context.Context) error {
	for len(t.entries) > t.maxSize {
		var victim string
		var victimLast time.Time
		first := true
		for k, e := range t.entries {
			if first || e.LastAccess.Before(victimLast) {
				victim = k
				victimLast = e.LastAccess
				first = false
			}
		}
		if victim == "" {
			return nil
		}
		delete(t.entries, victim)
		if err := t.index.Remove(ctx, victim); err != nil {
			return err
		}
	}
	return nil
}

// Search runs a similarity query over the on-disk index.
func (t *Tier) Search(ctx context.Context, vector []float32, k int) ([]vectorindex.Match, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index.Query(ctx, vector, k)
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

// Resize adjusts capacity for adaptive sizing.
func (t *Tier) Resize(ctx context.Context, newSize int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxSize = newSize
	return t.evictIfOverCapacityLocked(ctx)
}

// Snapshot returns a copy of all resident entries.
func (t *Tier) Snapshot() []memory.CacheEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]memory.CacheEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	return out
}

// Persist forces the underlying index to durable storage.
func (t *Tier) Persist(ctx context.Context) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index.Persist(ctx)
}

// Close releases the underlying index's resources.
func (t *Tier) Close() error {
	return t.index.Close()
}
