// Package graph implements validation and dependency-respecting ordering of
// node graphs.
package graph

import (
	"fmt"
	"strings"

	"github.com/nodeloom/loom/pkg/models"
)

// ValidationResult reports whether a graph is executable and why not.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Validate checks that a graph is well-formed before execution: every edge
// endpoint must reference a declared node, node identifiers must be unique,
// no node may be disconnected (in graphs with more than one node), and the
// graph must be acyclic. Validate never mutates the graph.
func Validate(g *models.Graph) ValidationResult {
	var errs []string

	nodeSet := make(map[string]bool, len(g.Nodes))

	for _, n := range g.Nodes {
		if nodeSet[n.ID] {
			errs = append(errs, fmt.Sprintf("duplicate node id %q", n.ID))
		}

		nodeSet[n.ID] = true
	}

	for _, e := range g.Edges {
		if !nodeSet[e.From] {
			errs = append(errs, fmt.Sprintf("edge references unknown node %q", e.From))
		}

		if !nodeSet[e.To] {
			errs = append(errs, fmt.Sprintf("edge references unknown node %q", e.To))
		}
	}

	if disconnected := disconnectedNodes(g); len(disconnected) > 0 {
		errs = append(errs, fmt.Sprintf("%d disconnected node(s) found: %s",
			len(disconnected), strings.Join(disconnected, ", ")))
	}

	if hasCycle(g) {
		errs = append(errs, "circular dependency detected")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// disconnectedNodes lists, in declaration order, the nodes that are not an
// endpoint of any edge. A single-node graph is trivially connected.
func disconnectedNodes(g *models.Graph) []string {
	if len(g.Nodes) <= 1 {
		return nil
	}

	connected := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		connected[e.From] = true
		connected[e.To] = true
	}

	var ids []string

	for _, n := range g.Nodes {
		if !connected[n.ID] {
			ids = append(ids, n.ID)
		}
	}

	return ids
}

// hasCycle runs a depth-first traversal tracking the active recursion path.
// One cycle report is sufficient; it does not enumerate all cycles.
func hasCycle(g *models.Graph) bool {
	successors := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		successors[e.From] = append(successors[e.From], e.To)
	}

	visited := make(map[string]bool, len(g.Nodes))
	onPath := make(map[string]bool, len(g.Nodes))

	var visit func(id string) bool

	visit = func(id string) bool {
		if onPath[id] {
			return true
		}

		if visited[id] {
			return false
		}

		visited[id] = true
		onPath[id] = true

		for _, next := range successors[id] {
			if visit(next) {
				return true
			}
		}

		onPath[id] = false

		return false
	}

	for _, n := range g.Nodes {
		if visit(n.ID) {
			return true
		}
	}

	return false
}
