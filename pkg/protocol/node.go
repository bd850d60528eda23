// Package protocol defines the contracts between the engine and pluggable
// node handlers.
package protocol

import (
	"context"
	"log/slog"
)

// NodeInputs carries everything a handler may read during execution. Inputs
// maps predecessor node IDs to their outputs; for root nodes it additionally
// holds the externally supplied initial input. Handlers must treat both maps
// as read-only.
type NodeInputs struct {
	NodeID    string
	NodeLabel string
	Inputs    map[string]any
	Variables map[string]any
}

// NodeHandler executes one node. Implementations return a structured output
// value or an error; they never panic across this boundary (the executor
// recovers just in case) and must honor ctx cancellation for long work.
type NodeHandler interface {
	Execute(ctx context.Context, in NodeInputs, logger *slog.Logger) (any, error)
}

// NodeHandlerFunc adapts a plain function to NodeHandler.
type NodeHandlerFunc func(ctx context.Context, in NodeInputs, logger *slog.Logger) (any, error)

func (f NodeHandlerFunc) Execute(ctx context.Context, in NodeInputs, logger *slog.Logger) (any, error) {
	return f(ctx, in, logger)
}
