// Package transform provides the transform/inference node. It evaluates a
// user expression over the node's resolved inputs.
package transform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/nodeloom/loom/pkg/protocol"
)

// Node implements expression-based transformation.
type Node struct {
	expression string
	program    *vm.Program
}

// New compiles the configured expression once, so a bad expression fails at
// graph load rather than mid-run. An empty expression makes the node an
// identity transform.
func New(config map[string]any) (*Node, error) {
	expression, _ := config["expression"].(string)

	node := &Node{expression: expression}

	if expression != "" {
		program, err := expr.Compile(expression)
		if err != nil {
			return nil, fmt.Errorf("invalid transform expression: %w", err)
		}

		node.program = program
	}

	return node, nil
}

// Execute evaluates the expression with "inputs" and "vars" in scope.
func (n *Node) Execute(_ context.Context, in protocol.NodeInputs, logger *slog.Logger) (any, error) {
	logger.Info("Executing transform node", "expression", n.expression)

	if n.program == nil {
		return map[string]any{"result": in.Inputs}, nil
	}

	env := map[string]any{
		"inputs": in.Inputs,
		"vars":   in.Variables,
	}

	result, err := expr.Run(n.program, env)
	if err != nil {
		return nil, fmt.Errorf("transform expression failed: %w", err)
	}

	return map[string]any{"result": result}, nil
}

// Schema returns the JSON schema for transform node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Expression evaluated with 'inputs' and 'vars' in scope",
				"examples": []string{
					`inputs["fetch"].data.price * 1.2`,
					`len(vars.items)`,
				},
			},
		},
	}
}
