// Package compile turns a graph definition into an executable plan: a
// validated, dependency-ordered list of steps with resolved node kinds.
// Compilation runs through the same asynchronous job store as graph runs.
package compile

import (
	"errors"
	"fmt"
	"time"

	"github.com/nodeloom/loom/pkg/graph"
	"github.com/nodeloom/loom/pkg/models"
	"github.com/nodeloom/loom/pkg/registry"
)

// ErrInvalidGraph wraps every compilation rejection.
var ErrInvalidGraph = errors.New("graph failed compilation")

// Step is one entry of a compiled plan, in execution order.
type Step struct {
	NodeID    string          `json:"node_id"`
	Kind      models.NodeKind `json:"kind"`
	Label     string          `json:"label"`
	DependsOn []string        `json:"depends_on,omitempty"`
}

// Plan is the compiled artifact for a graph.
type Plan struct {
	GraphID    string    `json:"graph_id"`
	Steps      []Step    `json:"steps"`
	CompiledAt time.Time `json:"compiled_at"`
}

// Compiler validates graphs and produces plans.
type Compiler struct {
	registry *registry.Registry
}

func NewCompiler(reg *registry.Registry) *Compiler {
	return &Compiler{registry: reg}
}

// Compile validates the graph, checks every node's configuration against its
// kind's schema, and emits the ordered plan.
func (c *Compiler) Compile(g *models.Graph) (*Plan, error) {
	if result := graph.Validate(g); !result.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, result.Errors)
	}

	for _, node := range g.Nodes {
		if err := c.registry.ValidateConfig(node); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
		}
	}

	order := graph.Order(g)
	steps := make([]Step, 0, len(order))

	for _, id := range order {
		node, ok := g.NodeByID(id)
		if !ok {
			continue
		}

		steps = append(steps, Step{
			NodeID:    node.ID,
			Kind:      node.Kind,
			Label:     node.Label,
			DependsOn: g.Predecessors(node.ID),
		})
	}

	return &Plan{
		GraphID:    g.ID,
		Steps:      steps,
		CompiledAt: time.Now().UTC(),
	}, nil
}
