// Package passthrough provides the generic passthrough node: inputs flow
// through unchanged, optionally under a single named key.
package passthrough

import (
	"context"
	"log/slog"

	"github.com/nodeloom/loom/pkg/protocol"
)

type Node struct {
	key string
}

func New(config map[string]any) (*Node, error) {
	key, _ := config["key"].(string)

	return &Node{key: key}, nil
}

func (n *Node) Execute(_ context.Context, in protocol.NodeInputs, logger *slog.Logger) (any, error) {
	logger.Info("Executing passthrough node")

	if n.key != "" {
		return map[string]any{n.key: in.Inputs}, nil
	}

	return in.Inputs, nil
}

// Schema returns the JSON schema for passthrough node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key": map[string]any{
				"type":        "string",
				"description": "Optional key to wrap the forwarded inputs under",
			},
		},
	}
}
