// Package visualize provides the visualization node. It does not render
// anything itself: it produces a chart descriptor the frontend canvas turns
// into an actual widget.
package visualize

import (
	"context"
	"log/slog"

	"github.com/nodeloom/loom/pkg/protocol"
)

type Node struct {
	chartType string
	title     string
}

func New(config map[string]any) (*Node, error) {
	chartType, _ := config["chart_type"].(string)
	if chartType == "" {
		chartType = "table"
	}

	title, _ := config["title"].(string)

	return &Node{chartType: chartType, title: title}, nil
}

// Execute wraps the resolved inputs as the series of a chart descriptor.
func (n *Node) Execute(_ context.Context, in protocol.NodeInputs, logger *slog.Logger) (any, error) {
	logger.Info("Executing visualize node", "chart_type", n.chartType)

	title := n.title
	if title == "" {
		title = in.NodeLabel
	}

	return map[string]any{
		"chart":  n.chartType,
		"title":  title,
		"series": in.Inputs,
	}, nil
}

// Schema returns the JSON schema for visualize node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"chart_type": map[string]any{
				"type":        "string",
				"description": "Widget kind rendered by the canvas",
				"enum":        []any{"table", "line", "bar", "pie", "scatter"},
				"default":     "table",
			},
			"title": map[string]any{
				"type":        "string",
				"description": "Widget title, defaults to the node label",
			},
		},
	}
}
