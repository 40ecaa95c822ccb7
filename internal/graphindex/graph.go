package graphindex

import (
	"context"
	"sort"

	"github.com/telos-systems/telos-core/internal/concept"
)

// Graph is an undirected, weighted view of the concept graph: one node per
// concept oid, one edge per relation or causal edge (weighted by causal
// strength; non-causal relations carry unit weight).
type Graph struct {
	nodes []string
	adj   map[string]map[string]float64
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{adj: make(map[string]map[string]float64)}
}

// AddNode registers oid with no edges if it is not already present.
func (g *Graph) AddNode(oid string) {
	if _, ok := g.adj[oid]; ok {
		return
	}
	g.nodes = append(g.nodes, oid)
	g.adj[oid] = make(map[string]float64)
}

// AddEdge adds weight to the undirected edge (a, b), creating either
// endpoint if missing. Self-edges are ignored.
func (g *Graph) AddEdge(a, b string, weight float64) {
	if a == b || weight <= 0 {
		return
	}
	g.AddNode(a)
	g.AddNode(b)
	g.adj[a][b] += weight
	g.adj[b][a] += weight
}

// Nodes returns every node id, in insertion order. BuildGraph sorts its
// graph's nodes by oid, so for a graph it built the order is sorted.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Neighbors returns node's incident edges, keyed by neighbor id.
func (g *Graph) Neighbors(node string) map[string]float64 {
	return g.adj[node]
}

// Degree returns the sum of node's incident edge weights.
func (g *Graph) Degree(node string) float64 {
	var d float64
	for _, w := range g.adj[node] {
		d += w
	}
	return d
}

// TotalWeight returns the sum of every distinct undirected edge's weight
// (each edge counted once, not once per endpoint).
func (g *Graph) TotalWeight() float64 {
	var total float64
	for a, neighbors := range g.adj {
		for b, w := range neighbors {
			if a < b {
				total += w
			}
		}
	}
	return total
}

// BuildGraph extracts the concept graph from the repository: every
// persisted concept becomes a node; every relation and causal edge whose
// target also resolves to a persisted concept becomes a weighted edge
// (causal edges weighted by strength, relations at unit weight). Dangling
// edges (pointing at a deleted concept) are skipped, matching the
// repository's own dangling-edge tolerance.
func BuildGraph(ctx context.Context, repo concept.Repository, pageSize int) (*Graph, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	g := NewGraph()
	known := make(map[string]bool)

	var all []concept.Concept
	for offset := 0; ; offset += pageSize {
		page, err := repo.List(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, c := range page {
			g.AddNode(c.OID)
			known[c.OID] = true
			all = append(all, c)
		}
		if len(page) < pageSize {
			break
		}
	}

	for _, c := range all {
		for _, r := range c.Relations {
			if known[r.Target] {
				g.AddEdge(c.OID, r.Target, 1.0)
			}
		}
		for _, e := range c.Causal {
			if known[e.Target] && e.Strength > 0 {
				g.AddEdge(c.OID, e.Target, e.Strength)
			}
		}
	}

	sort.Strings(g.nodes)
	return g, nil
}
