// Package graphindex implements the Graph Indexer: hierarchical community
// detection over the concept graph, LLM-transducer-generated community
// summaries, deterministic hash embeddings pending a real embedding model,
// and a global semantic search over the resulting summary cache.
package graphindex

import "time"

// Community is one node grouping at one detection level. Invariant: within
// a level, node sets across communities are disjoint and their union is
// the full node set considered at that level.
type Community struct {
	ID    string
	Level int
	Nodes []string
	Size  int
}

// Level groups every community detected at one depth of the hierarchy.
type Level struct {
	Depth       int
	Communities []Community
}

// Summary is the generated description of a community, embedded for
// semantic search and stored in L2 under key = community id.
type Summary struct {
	CommunityID   string
	Level         int
	Title         string
	SummaryText   string
	KeyConcepts   []string
	Relationships []string
	Embedding     []float32
	GeneratedAt   time.Time

	// Stale is set when a later Run no longer detects CommunityID at all —
	// its membership changed enough that community detection assigned the
	// nodes a different id. The summary is kept for one further Run instead
	// of disappearing silently, then dropped.
	Stale bool
}
