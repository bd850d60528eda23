// Package query provides the storage query node. The backing store is an
// external collaborator; when no fetcher is injected the node answers from
// the run's own outputs so graphs stay executable in isolation.
package query

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nodeloom/loom/pkg/protocol"
)

// Fetcher resolves a query against an external store.
type Fetcher func(ctx context.Context, query string, limit int) ([]map[string]any, error)

const defaultLimit = 100

type Node struct {
	query   string
	limit   int
	fetcher Fetcher
}

func New(config map[string]any) (*Node, error) {
	query, _ := config["query"].(string)
	if query == "" {
		return nil, errors.New("missing required field 'query'")
	}

	limit := defaultLimit
	if v, ok := config["limit"].(float64); ok && int(v) > 0 {
		limit = int(v)
	}

	return &Node{query: query, limit: limit}, nil
}

// WithFetcher injects the external store access. Without it the node echoes
// its inputs as a single-row result.
func (n *Node) WithFetcher(fetcher Fetcher) *Node {
	n.fetcher = fetcher

	return n
}

func (n *Node) Execute(ctx context.Context, in protocol.NodeInputs, logger *slog.Logger) (any, error) {
	logger.Info("Executing query node", "query", n.query, "limit", n.limit)

	if n.fetcher == nil {
		rows := []map[string]any{{"query": n.query, "inputs": in.Inputs}}

		return map[string]any{"rows": rows, "count": len(rows)}, nil
	}

	rows, err := n.fetcher(ctx, n.query, n.limit)
	if err != nil {
		return nil, err
	}

	return map[string]any{"rows": rows, "count": len(rows)}, nil
}

// Schema returns the JSON schema for query node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Query executed against the configured store",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum rows returned",
				"default":     defaultLimit,
			},
		},
		"required": []any{"query"},
	}
}
