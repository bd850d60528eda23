// Package ingress provides the data ingress node: it seeds a run with the
// trigger payload merged over any static payload configured on the node.
package ingress

import (
	"context"
	"log/slog"

	"github.com/nodeloom/loom/pkg/protocol"
)

// Node implements the ingress behavior.
type Node struct {
	payload map[string]any
}

// New creates an ingress node from its configuration.
func New(config map[string]any) (*Node, error) {
	payload, _ := config["payload"].(map[string]any)

	return &Node{payload: payload}, nil
}

// Execute merges the incoming trigger data over the static payload. Incoming
// keys win.
func (n *Node) Execute(_ context.Context, in protocol.NodeInputs, logger *slog.Logger) (any, error) {
	logger.Info("Executing ingress node")

	data := make(map[string]any, len(n.payload)+len(in.Inputs))

	for k, v := range n.payload {
		data[k] = v
	}

	for k, v := range in.Inputs {
		data[k] = v
	}

	return map[string]any{
		"source": in.NodeLabel,
		"data":   data,
	}, nil
}

// Schema returns the JSON schema for ingress node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"payload": map[string]any{
				"type":        "object",
				"description": "Static payload merged under the trigger data",
			},
		},
	}
}
