// Package fabric assembles the federated tiered memory fabric's three
// tiers (L1 in-memory vectors, L2 on-disk ANN, L3 durable object store), a
// write-behind outbox, a sync coordinator, and an adaptive tier-sizing
// optimizer into the store/retrieve/search/invalidate contract the rest of
// the system uses.
package fabric

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/telos-systems/telos-core/internal/constants"
	"github.com/telos-systems/telos-core/internal/memory"
	"github.com/telos-systems/telos-core/internal/memory/l1"
	"github.com/telos-systems/telos-core/internal/memory/l2"
	"github.com/telos-systems/telos-core/internal/memory/l3"
	"github.com/telos-systems/telos-core/internal/memory/outbox"
	"github.com/telos-systems/telos-core/internal/memory/perf"
	msync "github.com/telos-systems/telos-core/internal/memory/sync"
	"github.com/telos-systems/telos-core/internal/vectorindex"
)

// promotePayload is the outbox payload for a promote event.
type promotePayload struct {
	key    string
	target memory.Tier
	entry  memory.CacheEntry
}

// invalidatePayload is the outbox payload for an invalidate event.
type invalidatePayload struct {
	key string
}

// storePayload is the outbox payload for a store event: the cross-tier
// write the fabric must still apply after the synchronous tier write.
type storePayload struct {
	key   string
	entry memory.CacheEntry
	tier  memory.Tier
}

// Fabric is the federated tiered memory fabric: the single entry point
// other subsystems use to store, retrieve, search, and invalidate data
// across L1/L2/L3.
type Fabric struct {
	l1 *l1.Tier
	l2 *l2.Tier
	l3 *l3.Store

	outbox *outbox.Outbox

	mu                 sync.Mutex // guards stats only
	l1Stats, l2Stats   perf.Stats
	promotionThreshold int
	conflictStrategy   msync.Strategy
	targetHitRatio     float64
}

// Config collects Fabric construction parameters.
type Config struct {
	DataRoot           string
	L1MaxEntries       int
	L2MaxEntries       int
	VectorDim          int
	PromotionThreshold int
	ConflictStrategy   string
	TargetHitRatio     float64
	LanceDBURI         string
}

// New constructs a Fabric with an L1 brute-force index, an L2 backend
// selected by cfg.LanceDBURI (SQLite if empty), and a SQLite-backed L3
// object store rooted at cfg.DataRoot.
func New(ctx context.Context, cfg Config) (*Fabric, error) {
	l3Store, err := l3.New(cfg.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("construct l3 store: %w", err)
	}

	var l2Index vectorindex.OnDiskANN
	if cfg.LanceDBURI != "" {
		l2Index, err = vectorindex.NewLanceDBANN(ctx, cfg.LanceDBURI, "telos_l2", cfg.VectorDim)
		if err != nil {
			return nil, fmt.Errorf("construct lancedb l2 index: %w", err)
		}
	} else {
		l2Index, err = vectorindex.NewSQLiteANN(cfg.DataRoot + "/l2")
		if err != nil {
			return nil, fmt.Errorf("construct sqlite l2 index: %w", err)
		}
	}

	f := &Fabric{
		l1:                 l1.New(cfg.L1MaxEntries, cfg.VectorDim),
		l2:                 l2.New(l2Index, cfg.L2MaxEntries),
		l3:                 l3Store,
		outbox:             outbox.New(uuid.NewString),
		promotionThreshold: cfg.PromotionThreshold,
		conflictStrategy:   msync.StrategyByName(cfg.ConflictStrategy),
		targetHitRatio:     cfg.TargetHitRatio,
	}
	return f, nil
}

// Store implements the fabric's store() contract.
func (f *Fabric) Store(ctx context.Context, key string, value memory.Value, opts memory.StoreOptions) (memory.StoreResult, error) {
	tier := chooseTier(opts)
	now := time.Now().UTC()
	entry := memory.CacheEntry{Key: key, Vector: opts.Vector, Value: value, StoredAt: now}

	switch tier {
	case memory.TierL1:
		if err := f.l1.Put(entry); err != nil {
			return memory.StoreResult{}, fmt.Errorf("l1 store %s: %w", key, err)
		}
	case memory.TierL2:
		if err := f.l2.Put(ctx, entry); err != nil {
			return memory.StoreResult{}, fmt.Errorf("l2 store %s: %w", key, err)
		}
	case memory.TierL3:
		if err := f.l3.Store(ctx, key, value.Data); err != nil {
			return memory.StoreResult{}, fmt.Errorf("l3 store %s: %w", key, err)
		}
	}

	f.outbox.Enqueue(outbox.OpStore, key, storePayload{key: key, entry: entry, tier: tier})

	return memory.StoreResult{Tier: tier, OK: true}, nil
}

// chooseTier implements the fabric's initial-tier selection rule: small
// frequently-accessed objects go to L1, medium or moderately-accessed
// objects go to L2, everything else lands in durable L3.
func chooseTier(opts memory.StoreOptions) memory.Tier {
	switch {
	case opts.SizeBytes < constants.L1SmallObjectBytes && opts.AccessPattern == memory.AccessFrequent:
		return memory.TierL1
	case opts.SizeBytes < constants.L2MediumObjectBytes || opts.AccessPattern == memory.AccessModerate:
		return memory.TierL2
	default:
		return memory.TierL3
	}
}

// Retrieve implements the fabric's retrieve() contract: probe L1, then L2,
// then L3, degrading on a tier miss rather than raising. An L3 hit
// schedules cascading promotion to L2 and L1; an L2 hit past the
// promotion threshold schedules promotion to L1. Both promotions apply
// asynchronously through the outbox so Retrieve itself never blocks on a
// cross-tier write.
func (f *Fabric) Retrieve(ctx context.Context, key string) (memory.Value, memory.Tier, bool, error) {
	if e, ok := f.l1.Get(key); ok {
		f.recordHit(memory.TierL1)
		return e.Value, memory.TierL1, true, nil
	}
	f.recordMiss(memory.TierL1)

	if e, ok := f.l2.Get(key); ok {
		f.recordHit(memory.TierL2)
		if e.AccessCount >= f.promotionThreshold {
			f.outbox.Enqueue(outbox.OpPromote, key, promotePayload{key: key, target: memory.TierL1, entry: *e})
		}
		return e.Value, memory.TierL2, true, nil
	}
	f.recordMiss(memory.TierL2)

	data, storedAt, ok, err := f.l3.Retrieve(ctx, key)
	if err != nil {
		return memory.Value{}, 0, false, fmt.Errorf("l3 retrieve %s: %w", key, err)
	}
	if !ok {
		return memory.Value{}, 0, false, nil
	}

	entry := memory.CacheEntry{Key: key, Value: memory.Value{Data: data}, StoredAt: storedAt}
	f.outbox.Enqueue(outbox.OpPromote, key, promotePayload{key: key, target: memory.TierL2, entry: entry})
	f.outbox.Enqueue(outbox.OpPromote, key, promotePayload{key: key, target: memory.TierL1, entry: entry})

	return entry.Value, memory.TierL3, true, nil
}

func (f *Fabric) recordHit(tier memory.Tier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch tier {
	case memory.TierL1:
		f.l1Stats.Hits++
	case memory.TierL2:
		f.l2Stats.Hits++
	}
}

func (f *Fabric) recordMiss(tier memory.Tier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch tier {
	case memory.TierL1:
		f.l1Stats.Misses++
	case memory.TierL2:
		f.l2Stats.Misses++
	}
}

// Search implements the fabric's search() contract. When all is true L1 and
// L2 are probed regardless of scope; otherwise only scope is probed. L3
// holds no vectors and is never searched, so a scope of L3 returns no hits.
// Ties in similarity are broken by tier order (L1 before L2), per the
// Tier type's declared ordering.
func (f *Fabric) Search(ctx context.Context, query []float32, k int, scope memory.Tier, all bool) ([]memory.SearchHit, error) {
	var hits []memory.SearchHit

	if all || scope == memory.TierL1 {
		matches, err := f.l1.Search(query, k)
		if err != nil {
			return nil, fmt.Errorf("l1 search: %w", err)
		}
		for _, m := range matches {
			if e, ok := f.l1.Get(m.Key); ok {
				hits = append(hits, memory.SearchHit{Key: m.Key, Value: e.Value, Similarity: m.Score, Tier: memory.TierL1})
			}
		}
	}

	if all || scope == memory.TierL2 {
		matches, err := f.l2.Search(ctx, query, k)
		if err != nil {
			return nil, fmt.Errorf("l2 search: %w", err)
		}
		for _, m := range matches {
			if e, ok := f.l2.Get(m.Key); ok {
				hits = append(hits, memory.SearchHit{Key: m.Key, Value: e.Value, Similarity: m.Score, Tier: memory.TierL2})
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Tier < hits[j].Tier
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Invalidate implements the fabric's invalidate() contract: removes the
// key from L1 and L2 synchronously, and enqueues an L3 invalidation event
// since L3 deletion goes through the outbox like every other cross-tier
// effect.
func (f *Fabric) Invalidate(ctx context.Context, key string) error {
	f.l1.Remove(key)
	if err := f.l2.Remove(ctx, key); err != nil {
		return fmt.Errorf("l2 remove %s: %w", key, err)
	}
	f.outbox.Enqueue(outbox.OpInvalidate, key, invalidatePayload{key: key})
	return nil
}

// DrainOutboxOnce runs one pass of the outbox processor. This is the named
// background task the scheduler invokes periodically in place of a
// recursive sleep loop.
func (f *Fabric) DrainOutboxOnce(ctx context.Context) {
	f.outbox.DrainOnce(func(ev outbox.Event) outbox.Outcome {
		switch ev.Operation {
		case outbox.OpStore:
			p, ok := ev.Payload.(storePayload)
			if !ok {
				return outbox.DeadLetter
			}
			return f.applyCrossTierStore(ctx, p)
		case outbox.OpPromote:
			p, ok := ev.Payload.(promotePayload)
			if !ok {
				return outbox.DeadLetter
			}
			return f.applyPromote(ctx, p)
		case outbox.OpInvalidate:
			p, ok := ev.Payload.(invalidatePayload)
			if !ok {
				return outbox.DeadLetter
			}
			return f.applyInvalidate(ctx, p)
		default:
			return outbox.DeadLetter
		}
	})
}

// applyCrossTierStore mirrors a store() call that landed in L1 or L2 down
// to L3, so L3 remains the durable record of everything ever stored.
func (f *Fabric) applyCrossTierStore(ctx context.Context, p storePayload) outbox.Outcome {
	if p.tier == memory.TierL3 {
		return outbox.Ok // already durable
	}
	if err := f.l3.Store(ctx, p.key, p.entry.Value.Data); err != nil {
		return outbox.Retry
	}
	return outbox.Ok
}

// applyPromote writes entry into the target tier. Each tier's own
// monotonic-write guard rejects the promotion if a newer write has since
// landed there.
func (f *Fabric) applyPromote(ctx context.Context, p promotePayload) outbox.Outcome {
	switch p.target {
	case memory.TierL1:
		if err := f.l1.Put(p.entry); err != nil {
			return outbox.Retry
		}
	case memory.TierL2:
		if err := f.l2.Put(ctx, p.entry); err != nil {
			return outbox.Retry
		}
	}
	return outbox.Ok
}

func (f *Fabric) applyInvalidate(ctx context.Context, p invalidatePayload) outbox.Outcome {
	if err := f.l3.Delete(ctx, p.key); err != nil {
		// A missing object on invalidate is not a failure of invalidation.
		return outbox.Ok
	}
	return outbox.Ok
}

// RunSync runs one pass of the synchronization coordinator: L1 -> L2, then
// L2 -> L3, pushing newer entries down and resolving conflicts with the
// configured strategy.
func (f *Fabric) RunSync(ctx context.Context) error {
	l1records := toRecords(f.l1.Snapshot())
	l2records := toRecords(f.l2.Snapshot())

	for _, push := range msync.Reconcile(l1records, l2records, f.conflictStrategy) {
		entry, ok := findEntry(f.l1.Snapshot(), push.Key)
		if !ok {
			continue
		}
		if err := f.l2.Put(ctx, entry); err != nil {
			return fmt.Errorf("sync l1->l2 for %s: %w", push.Key, err)
		}
	}

	oids, err := f.l3.ListOIDs(ctx)
	if err != nil {
		return fmt.Errorf("list l3 oids for sync: %w", err)
	}
	l3records := make([]msync.Record, 0, len(oids))
	for _, oid := range oids {
		_, storedAt, ok, err := f.l3.Retrieve(ctx, oid)
		if err != nil || !ok {
			continue
		}
		l3records = append(l3records, msync.Record{Key: oid, StoredAt: storedAt})
	}

	for _, push := range msync.Reconcile(l2records, l3records, f.conflictStrategy) {
		entry, ok := findEntry(f.l2.Snapshot(), push.Key)
		if !ok {
			continue
		}
		if err := f.l3.Store(ctx, push.Key, entry.Value.Data); err != nil {
			return fmt.Errorf("sync l2->l3 for %s: %w", push.Key, err)
		}
	}

	return nil
}

func toRecords(entries []memory.CacheEntry) []msync.Record {
	out := make([]msync.Record, len(entries))
	for i, e := range entries {
		out[i] = msync.Record{Key: e.Key, StoredAt: e.StoredAt}
	}
	return out
}

func findEntry(entries []memory.CacheEntry, key string) (memory.CacheEntry, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e, true
		}
	}
	return memory.CacheEntry{}, false
}

// Optimize runs one pass of the adaptive tier-sizing optimizer against L1
// and L2's observed hit ratios, then resets the accumulated stats for the
// next window.
func (f *Fabric) Optimize(ctx context.Context) error {
	f.mu.Lock()
	l1Stats, l2Stats := f.l1Stats, f.l2Stats
	f.l1Stats, f.l2Stats = perf.Stats{}, perf.Stats{}
	f.mu.Unlock()

	l1Decision := perf.Decide(f.l1.MaxSize(), l1Stats, f.targetHitRatio)
	if l1Decision.Grew || l1Decision.Shrank {
		f.l1.Resize(l1Decision.NewSize)
	}

	l2Decision := perf.Decide(f.l2.MaxSize(), l2Stats, f.targetHitRatio)
	if l2Decision.Grew || l2Decision.Shrank {
		if err := f.l2.Resize(ctx, l2Decision.NewSize); err != nil {
			return fmt.Errorf("resize l2: %w", err)
		}
	}

	return nil
}

// Stat reports the current cache sizes, hit ratios, and outbox depth, for
// `core memory stat`.
type Stat struct {
	L1Size, L2Size         int
	L1MaxSize, L2MaxSize   int
	L1HitRatio, L2HitRatio float64
	OutboxPending          int
	DeadLetter             int
}

// Stat returns the fabric's current Stat snapshot.
func (f *Fabric) Stat() Stat {
	f.mu.Lock()
	l1Stats, l2Stats := f.l1Stats, f.l2Stats
	f.mu.Unlock()

	return Stat{
		L1Size:        f.l1.Len(),
		L2Size:        f.l2.Len(),
		L1MaxSize:     f.l1.MaxSize(),
		L2MaxSize:     f.l2.MaxSize(),
		L1HitRatio:    l1Stats.HitRatio(),
		L2HitRatio:    l2Stats.HitRatio(),
		OutboxPending: f.outbox.Len(),
		DeadLetter:    f.outbox.DeadLetterLen(),
	}
}

// DeadLetters exposes the outbox's dead-lettered events for inspection
// tooling (`core memory outbox`).
func (f *Fabric) DeadLetters() []outbox.Event {
	return f.outbox.DeadLetters()
}

// Close releases L2 and L3 resources.
func (f *Fabric) Close() error {
	if err := f.l2.Close(); err != nil {
		return fmt.Errorf("close l2: %w", err)
	}
	return f.l3.Close()
}
