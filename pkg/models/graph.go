// Package models defines the core domain models for node-graph execution.
package models

import "time"

// NodeKind selects the executable behavior of a node. The set is closed:
// dispatch in the engine is an exhaustive switch, so adding a kind means
// adding a handler.
type NodeKind string

const (
	NodeKindIngress     NodeKind = "ingress"     // Data ingress (trigger payload, seed data)
	NodeKindTransform   NodeKind = "transform"   // Expression-based transform / inference
	NodeKindVisualize   NodeKind = "visualize"   // Chart/table rendering descriptor
	NodeKindQuery       NodeKind = "query"       // Storage query
	NodeKindHTTPCall    NodeKind = "httpcall"    // Outbound HTTP call
	NodeKindPassthrough NodeKind = "passthrough" // Generic passthrough
)

// Kinds returns every node kind the engine knows how to execute.
func Kinds() []NodeKind {
	return []NodeKind{
		NodeKindIngress,
		NodeKindTransform,
		NodeKindVisualize,
		NodeKindQuery,
		NodeKindHTTPCall,
		NodeKindPassthrough,
	}
}

// Node is a single unit of work in a graph. Nodes are immutable once a run
// starts.
type Node struct {
	ID     string         `json:"id"    validate:"required"`
	Kind   NodeKind       `json:"kind"  validate:"required"`
	Label  string         `json:"label" validate:"required,min=1"`
	Config map[string]any `json:"config,omitempty"`
}

// Edge is the directed relation "output of From feeds To". Fan-in and
// fan-out are both allowed.
type Edge struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to"   validate:"required"`
}

// Graph is a user-authored DAG of nodes and edges. Node order is the
// declaration order and is the tie-break used by the scheduler, so it is
// significant.
type Graph struct {
	ID        string         `json:"id"`
	Name      string         `json:"name" validate:"required,min=3"`
	Nodes     []*Node        `json:"nodes"`
	Edges     []*Edge        `json:"edges"`
	Variables map[string]any `json:"variables,omitempty"`
	Active    bool           `json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NodeByID returns the node with the given identifier, if present.
func (g *Graph) NodeByID(id string) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}

	return nil, false
}

// Predecessors returns the IDs of nodes with an edge into the given node,
// in edge declaration order.
func (g *Graph) Predecessors(id string) []string {
	var from []string

	for _, e := range g.Edges {
		if e.To == id {
			from = append(from, e.From)
		}
	}

	return from
}

// Roots returns the IDs of nodes with no incoming edge, in node declaration
// order.
func (g *Graph) Roots() []string {
	incoming := make(map[string]int, len(g.Nodes))
	for _, e := range g.Edges {
		incoming[e.To]++
	}

	var roots []string

	for _, n := range g.Nodes {
		if incoming[n.ID] == 0 {
			roots = append(roots, n.ID)
		}
	}

	return roots
}
