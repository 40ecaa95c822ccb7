package concept

import "context"

// Repository is the sole writer of durable Concept state. Every other
// subsystem (HRC, planner, graph indexer) reaches the Concept Repository
// through this interface rather than touching L3 storage directly.
type Repository interface {
	// Persist creates a new concept or overwrites an existing one (matched
	// by OID) and returns the OID. If c.OID is empty, a new OID is
	// generated. Returns an *InvariantError if c fails Validate, or an
	// edge-target error if any relation or causal edge names an OID that
	// does not resolve to a persisted concept.
	Persist(ctx context.Context, c *Concept) (string, error)

	// Load retrieves a concept by OID. Returns (nil, nil) if not found.
	// Load does not call Touch; callers that treat the load as active use
	// call Hydrate instead.
	Load(ctx context.Context, oid string) (*Concept, error)

	// Hydrate loads a concept and records a usage touch (UsageCount++,
	// LastModified updated), as used by the HRC elaborate phase and the
	// planner's world-model grounding.
	Hydrate(ctx context.Context, oid string) (*Concept, error)

	// Delete removes a concept by OID. Edges from other concepts that
	// target this OID are left dangling in storage; Load and Hydrate
	// return them as stored and do not filter them out.
	Delete(ctx context.Context, oid string) error

	// List returns up to limit concepts ordered by OID, skipping offset
	// entries. Used by introspection tooling (cmd/core concept list).
	List(ctx context.Context, limit, offset int) ([]Concept, error)

	// Count returns the total number of persisted concepts.
	Count(ctx context.Context) (int, error)

	// Close releases underlying resources.
	Close() error
}
