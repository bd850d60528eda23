// Package engine executes node graphs: it orders nodes, runs each one with
// failure containment, and aggregates logs and outputs into a final result.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nodeloom/loom/pkg/models"
	"github.com/nodeloom/loom/pkg/protocol"
	"github.com/nodeloom/loom/pkg/registry"
)

// logSink receives log events as a node produces them. The engine's run
// recorder implements it; tests can substitute their own.
type logSink func(event models.LogEvent)

// Executor runs a single node. A zero timeout means node execution is
// unbounded; setting one converts "never returns" into a failure.
type Executor struct {
	registry *registry.Registry
	timeout  time.Duration
	logger   *slog.Logger
}

func NewExecutor(reg *registry.Registry, timeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{
		registry: reg,
		timeout:  timeout,
		logger:   logger.With("module", "node_executor"),
	}
}

// ExecuteNode dispatches on the node's kind, emits a start event before
// running and a success or error event after. Panics inside a handler are
// recovered and converted into failures so one node cannot take down the
// run's host.
func (e *Executor) ExecuteNode(
	ctx context.Context,
	node *models.Node,
	inputs protocol.NodeInputs,
	sink logSink,
) (output any, err error) {
	logger := e.logger.With("node_id", node.ID, "node_kind", node.Kind)

	sink(models.LogEvent{
		Timestamp: time.Now().UTC(),
		NodeID:    node.ID,
		NodeLabel: node.Label,
		Kind:      models.LogKindStart,
		Message:   fmt.Sprintf("Executing node %q", node.Label),
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node %s panicked: %v", node.ID, r)
			output = nil

			logger.Error("Recovered node panic", "panic", r)
		}

		if err != nil {
			sink(models.LogEvent{
				Timestamp: time.Now().UTC(),
				NodeID:    node.ID,
				NodeLabel: node.Label,
				Kind:      models.LogKindError,
				Message:   err.Error(),
			})
		} else {
			sink(models.LogEvent{
				Timestamp: time.Now().UTC(),
				NodeID:    node.ID,
				NodeLabel: node.Label,
				Kind:      models.LogKindSuccess,
				Message:   fmt.Sprintf("Node %q completed", node.Label),
				Data:      output,
			})
		}
	}()

	handler, err := e.registry.HandlerFor(node)
	if err != nil {
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	output, err = handler.Execute(ctx, inputs, logger)
	if err != nil {
		return nil, fmt.Errorf("node %s failed: %w", node.ID, err)
	}

	return output, nil
}
