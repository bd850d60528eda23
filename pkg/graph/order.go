package graph

import (
	"sort"

	"github.com/nodeloom/loom/pkg/models"
)

// Order computes a topological ordering of the graph's node identifiers via
// depth-first postorder: for every edge (a, b), a appears before b.
// Traversal starts from every root (no incoming edge) and ties break on node
// declaration order, so identical graphs always order identically.
//
// Order terminates on cyclic input but its ordering guarantee is waived
// there; callers wanting correctness must run Validate first.
func Order(g *models.Graph) []string {
	successors := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		successors[e.From] = append(successors[e.From], e.To)
	}

	// Successors are visited in node declaration order, not edge declaration
	// order, so the tie-break matches the one used for roots.
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.ID] = i
	}

	for _, next := range successors {
		sort.Slice(next, func(i, j int) bool { return index[next[i]] < index[next[j]] })
	}

	visited := make(map[string]bool, len(g.Nodes))
	order := make([]string, 0, len(g.Nodes))

	var visit func(id string)

	visit = func(id string) {
		if visited[id] {
			return
		}

		visited[id] = true

		for _, next := range successors[id] {
			visit(next)
		}

		// Postorder: a node is appended after everything it reaches, then
		// the whole list is reversed.
		order = append(order, id)
	}

	for _, id := range g.Roots() {
		visit(id)
	}

	// Nodes unreachable from any root (isolated cycles, disconnected nodes)
	// are appended in declaration order so the result is still a permutation.
	for _, n := range g.Nodes {
		visit(n.ID)
	}

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}

	return order
}
