package graphindex

import (
	"context"
	"testing"

	"github.com/telos-systems/telos-core/internal/concept"
)

// fakeRepository backs BuildGraph's tests with an in-memory concept list;
// every other Repository method is unused by BuildGraph and panics if
// called.
type fakeRepository struct {
	concepts []concept.Concept
}

func (f *fakeRepository) Persist(ctx context.Context, c *concept.Concept) (string, error) {
	panic("not used by BuildGraph")
}
func (f *fakeRepository) Load(ctx context.Context, oid string) (*concept.Concept, error) {
	panic("not used by BuildGraph")
}
func (f *fakeRepository) Hydrate(ctx context.Context, oid string) (*concept.Concept, error) {
	panic("not used by BuildGraph")
}
func (f *fakeRepository) Delete(ctx context.Context, oid string) error {
	panic("not used by BuildGraph")
}
func (f *fakeRepository) List(ctx context.Context, limit, offset int) ([]concept.Concept, error) {
	if offset >= len(f.concepts) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.concepts) {
		end = len(f.concepts)
	}
	return f.concepts[offset:end], nil
}
func (f *fakeRepository) Count(ctx context.Context) (int, error) {
	return len(f.concepts), nil
}
func (f *fakeRepository) Close() error { return nil }

func TestBuildGraph_AddsEdgesForRelationsAndCausalLinks(t *testing.T) {
	repo := &fakeRepository{concepts: []concept.Concept{
		{OID: "a", Relations: []concept.Relation{{Kind: concept.RelationIsA, Target: "b"}}},
		{OID: "b"},
		{OID: "c", Causal: []concept.CausalEdge{{Kind: concept.CausalCauses, Target: "a", Strength: 0.7}}},
	}}

	g, err := BuildGraph(context.Background(), repo, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Nodes()) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(g.Nodes()))
	}
	if g.Neighbors("a")["b"] != 1.0 {
		t.Errorf("expected unit-weight relation edge a-b, got %f", g.Neighbors("a")["b"])
	}
	if g.Neighbors("c")["a"] != 0.7 {
		t.Errorf("expected causal edge c-a weighted 0.7, got %f", g.Neighbors("c")["a"])
	}
}

func TestBuildGraph_SkipsDanglingEdges(t *testing.T) {
	repo := &fakeRepository{concepts: []concept.Concept{
		{OID: "a", Relations: []concept.Relation{{Kind: concept.RelationIsA, Target: "missing"}}},
	}}

	g, err := BuildGraph(context.Background(), repo, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Neighbors("a")) != 0 {
		t.Errorf("expected dangling edge to be skipped, got %v", g.Neighbors("a"))
	}
}

func TestGraph_AddEdgeAccumulatesAndIsUndirected(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b", 2)
	g.AddEdge("a", "b", 3)

	if g.Neighbors("a")["b"] != 5 {
		t.Errorf("expected accumulated weight 5, got %f", g.Neighbors("a")["b"])
	}
	if g.Neighbors("b")["a"] != 5 {
		t.Errorf("expected symmetric weight 5, got %f", g.Neighbors("b")["a"])
	}
}

func TestGraph_AddEdgeIgnoresSelfLoopsAndNonPositiveWeight(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "a", 5)
	g.AddEdge("a", "b", 0)
	g.AddEdge("a", "b", -1)

	if len(g.Neighbors("a")) != 0 {
		t.Errorf("expected no edges from self-loops or non-positive weight, got %v", g.Neighbors("a"))
	}
}

func TestGraph_DegreeAndTotalWeight(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b", 2)
	g.AddEdge("b", "c", 3)

	if g.Degree("b") != 5 {
		t.Errorf("expected degree(b) = 5, got %f", g.Degree("b"))
	}
	if g.TotalWeight() != 5 {
		t.Errorf("expected total weight 5 (each edge counted once), got %f", g.TotalWeight())
	}
}

func TestGraph_NodesIncludesIsolatedNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode("solo")
	g.AddEdge("a", "b", 1)

	nodes := g.Nodes()
	found := false
	for _, n := range nodes {
		if n == "solo" {
			found = true
		}
	}
	if !found {
		t.Error("expected an isolated node with no edges to still appear in Nodes()")
	}
	if len(nodes) != 3 {
		t.Errorf("expected 3 nodes, got %d", len(nodes))
	}
}
