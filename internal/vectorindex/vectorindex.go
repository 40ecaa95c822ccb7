// Package vectorindex defines the pluggable ANN backends consumed by the
// tiered memory fabric: an in-memory index for L1 and an on-disk index for
// L2. The fabric treats both as opaque beyond this contract.
package vectorindex

import "context"

// Match is a single nearest-neighbor result.
type Match struct {
	Key   string
	Score float64
}

// InMemoryANN is the L1 vector index contract. Implementations hold the
// full vector set in memory; there is no persist() because L1 content is
// always reconstructible from L2/L3 on restart.
type InMemoryANN interface {
	Insert(key string, vector []float32) error
	Remove(key string) error
	Query(vector []float32, k int) ([]Match, error)
	Rebuild() error
	Len() int
}

// OnDiskANN is the L2 vector index contract. Implementations must survive a
// process restart: Persist() forces any buffered state to durable storage.
type OnDiskANN interface {
	Insert(ctx context.Context, key string, vector []float32) error
	Remove(ctx context.Context, key string) error
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
	Rebuild(ctx context.Context) error
	Persist(ctx context.Context) error
	Len() int
	Close() error
}
