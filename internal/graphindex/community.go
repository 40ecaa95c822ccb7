package graphindex

import (
	"sort"
	"strconv"
)

// DetectCommunities runs Leiden-style hierarchical community detection over
// g, up to maxLevels levels. Two communities merge iff they are connected
// by at least one edge and the modularity delta
// Δm = (internal_edges − expected) / total_edges · resolution is strictly
// positive, where expected is the null-model edge count
// deg(a)·deg(b) / (2·total_edges). A level that produces no merges signals
// convergence and stops the hierarchy early.
func DetectCommunities(g *Graph, maxLevels int, resolution float64) []Level {
	levels := make([]Level, 0, maxLevels)

	current := g
	membership := make(map[string][]string, len(g.Nodes()))
	for _, n := range g.Nodes() {
		membership[n] = []string{n}
	}

	for depth := 0; depth < maxLevels; depth++ {
		assign, anyMerge := mergePass(current, resolution)
		if !anyMerge {
			break
		}

		groups := make(map[int][]string)
		for node, cid := range assign {
			groups[cid] = append(groups[cid], node)
		}

		communities := make([]Community, 0, len(groups))
		nextMembership := make(map[string][]string, len(groups))
		for cid, superNodes := range groups {
			id := communityID(depth, cid)
			var leaves []string
			for _, sn := range superNodes {
				leaves = append(leaves, membership[sn]...)
			}
			sort.Strings(leaves)
			communities = append(communities, Community{ID: id, Level: depth, Nodes: leaves, Size: len(leaves)})
			nextMembership[id] = leaves
		}
		sort.Slice(communities, func(i, j int) bool { return communities[i].ID < communities[j].ID })
		levels = append(levels, Level{Depth: depth, Communities: communities})

		if len(groups) <= 1 {
			break
		}

		current = aggregate(current, assign)
		membership = nextMembership
	}

	return levels
}

func communityID(depth, cid int) string {
	return "community-l" + strconv.Itoa(depth) + "-" + strconv.Itoa(cid)
}

// mergePass repeatedly scans every edge, union-merging the pair of
// communities it connects whenever doing so has positive modularity delta,
// until a full scan produces no further merges. anyMerge is false when
// every node remains in its own singleton community (signalling
// convergence to the caller).
func mergePass(g *Graph, resolution float64) (assign map[string]int, anyMerge bool) {
	nodes := g.Nodes()
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	parent := make([]int, len(nodes))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	changed := true
	for changed {
		changed = false
		for _, a := range nodes {
			neighbors := make([]string, 0, len(g.Neighbors(a)))
			for b := range g.Neighbors(a) {
				neighbors = append(neighbors, b)
			}
			sort.Strings(neighbors)

			for _, b := range neighbors {
				ra, rb := find(index[a]), find(index[b])
				if ra == rb {
					continue
				}
				if modularityDelta(g, index, find, ra, rb, resolution) > 0 {
					parent[ra] = rb
					anyMerge = true
					changed = true
				}
			}
		}
	}

	assign = make(map[string]int, len(nodes))
	for _, n := range nodes {
		assign[n] = find(index[n])
	}
	return assign, anyMerge
}

// modularityDelta computes Δm for merging the two communities rooted at ra
// and rb in the union-find structure described by index/find.
func modularityDelta(g *Graph, index map[string]int, find func(int) int, ra, rb int, resolution float64) float64 {
	total := g.TotalWeight()
	if total <= 0 {
		return 0
	}

	var internal, degA, degB float64
	for node, i := range index {
		root := find(i)
		if root == ra {
			degA += g.Degree(node)
			for neighbor, w := range g.Neighbors(node) {
				if nIdx, ok := index[neighbor]; ok && find(nIdx) == rb {
					internal += w
				}
			}
		}
		if root == rb {
			degB += g.Degree(node)
		}
	}

	if internal <= 0 {
		return 0
	}

	expected := (degA * degB) / (2 * total)
	return (internal - expected) / total * resolution
}

// aggregate collapses g into a super-graph with one node per community in
// assign; cross-community edges are summed, internal (same-community)
// edges are absorbed into their community and do not propagate further.
func aggregate(g *Graph, assign map[string]int) *Graph {
	next := NewGraph()
	for node := range assign {
		next.AddNode(superNodeID(assign[node]))
	}

	// g.adj stores each undirected edge symmetrically (once per endpoint),
	// so summing over both directions double-counts every original edge;
	// divide by 2 once all cross-community weight has been accumulated.
	sums := make(map[[2]string]float64)
	for a, neighbors := range g.adj {
		for b, w := range neighbors {
			ca, cb := superNodeID(assign[a]), superNodeID(assign[b])
			if ca == cb {
				continue
			}
			sums[edgeKey(ca, cb)] += w
		}
	}
	for key, w := range sums {
		next.AddEdge(key[0], key[1], w/2)
	}
	return next
}

func superNodeID(cid int) string {
	return strconv.Itoa(cid)
}

func edgeKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}
