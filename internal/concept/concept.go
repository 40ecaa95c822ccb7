// Package concept defines the Concept entity — the unit of knowledge owned
// exclusively by the Concept Repository — and its causal-edge metadata.
package concept

import "time"

// RelationKind enumerates the non-causal typed relationships a Concept may
// hold to other concepts, addressed by oid.
type RelationKind string

const (
	RelationIsA            RelationKind = "isA"
	RelationPartOf         RelationKind = "partOf"
	RelationAbstractionOf  RelationKind = "abstractionOf"
	RelationInstanceOf     RelationKind = "instanceOf"
	RelationAssociatedWith RelationKind = "associatedWith"
)

// CausalKind enumerates the causal edge types a Concept may hold.
type CausalKind string

const (
	CausalCauses    CausalKind = "causes"
	CausalEnables   CausalKind = "enables"
	CausalPrevents  CausalKind = "prevents"
	CausalRequires  CausalKind = "requires"
	CausalCausedBy  CausalKind = "causedBy"
)

// Relation is a typed, non-causal edge to another concept, addressed by oid.
type Relation struct {
	Kind   RelationKind `json:"kind"`
	Target string       `json:"target"` // oid of the related concept
}

// CausalEdge is a typed causal edge carrying strength, confidence, and delay.
// Invariant: Strength and Confidence remain in [0,1] under all updates;
// Delay is >= 0.
type CausalEdge struct {
	Kind       CausalKind `json:"kind"`
	Target     string     `json:"target"` // oid of the related concept
	Strength   float64    `json:"strength"`
	Confidence float64    `json:"confidence"`
	Delay      int        `json:"delay"` // time steps, >= 0
}

// Clamp forces Strength and Confidence into [0,1] and Delay into [0, inf).
// Called by the repository on every write so the invariant in spec §3 holds
// even if a caller supplies out-of-range values.
func (e *CausalEdge) Clamp() {
	e.Strength = clamp01(e.Strength)
	e.Confidence = clamp01(e.Confidence)
	if e.Delay < 0 {
		e.Delay = 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Embeddings holds the optional named vector representations of a Concept.
type Embeddings struct {
	// Symbolic names a hypervector representation stored elsewhere (e.g. in
	// a symbolic reasoning subsystem); TELOS core treats it as an opaque
	// handle.
	Symbolic string `json:"symbolic,omitempty"`

	// Geometric names a dense geometric vector, typically the key under
	// which the L1/L2 vector tiers index this concept.
	Geometric string `json:"geometric,omitempty"`
}

// Concept is the durable unit of knowledge. It is created only by
// Repository.Persist, mutated only by explicit repository calls, and
// deleted only by Repository.Delete — never by cache eviction.
type Concept struct {
	OID        string       `json:"oid"`
	Label      string       `json:"label"`
	Confidence float64      `json:"confidence"` // [0,1]
	UsageCount int          `json:"usage_count"`
	Embeddings Embeddings   `json:"embeddings,omitempty"`
	Relations  []Relation   `json:"relations,omitempty"`
	Causal     []CausalEdge `json:"causal,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
}

// Touch bumps UsageCount and LastModified. Called by the repository
// whenever a concept is loaded for active use (e.g. by the HRC or planner).
func (c *Concept) Touch(now time.Time) {
	c.UsageCount++
	c.LastModified = now
}

// Validate enforces the structural invariants from spec §3: confidence in
// range, and causal edges carry valid strength/confidence/delay. Endpoint
// existence (every edge resolves to a real oid) is enforced by the
// repository at persist time, not here, since it requires a store lookup.
func (c *Concept) Validate() error {
	if c.Confidence < 0 || c.Confidence > 1 {
		return &InvariantError{Field: "confidence", Detail: "must be in [0,1]"}
	}
	for i := range c.Causal {
		e := &c.Causal[i]
		if e.Strength < 0 || e.Strength > 1 {
			return &InvariantError{Field: "causal.strength", Detail: "must be in [0,1]"}
		}
		if e.Confidence < 0 || e.Confidence > 1 {
			return &InvariantError{Field: "causal.confidence", Detail: "must be in [0,1]"}
		}
		if e.Delay < 0 {
			return &InvariantError{Field: "causal.delay", Detail: "must be >= 0"}
		}
	}
	return nil
}

// InvariantError reports a violated Concept invariant. It is a fatal error
// per spec §7: the containing operation aborts rather than silently
// clamping a caller-asserted value.
type InvariantError struct {
	Field  string
	Detail string
}

func (e *InvariantError) Error() string {
	return "concept invariant violated: " + e.Field + " " + e.Detail
}
