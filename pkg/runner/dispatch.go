package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nodeloom/loom/pkg/engine"
	"github.com/nodeloom/loom/pkg/eventbus"
	"github.com/nodeloom/loom/pkg/events"
	"github.com/nodeloom/loom/pkg/jobs"
)

// JobStore is the submission surface the local dispatcher needs.
type JobStore interface {
	jobs.Store
	jobs.SubmitWithID
}

// LocalDispatcher starts runs in-process through the job store; the
// execution identifier is the job identifier, so webhook callers can poll
// the run they triggered.
type LocalDispatcher struct {
	store JobStore
}

func NewLocalDispatcher(store JobStore) *LocalDispatcher {
	return &LocalDispatcher{store: store}
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, graphID string, input map[string]any) (string, error) {
	executionID := engine.NewExecutionID()

	params := map[string]any{
		"graph_id":     graphID,
		"execution_id": executionID,
		"input":        input,
	}

	if err := d.store.SubmitID(ctx, executionID, params); err != nil {
		return "", fmt.Errorf("failed to submit run: %w", err)
	}

	return executionID, nil
}

// BusDispatcher publishes run.triggered events for detached workers to pick
// up. Used when execution runs in a separate binary.
type BusDispatcher struct {
	bus    eventbus.EventPublisher
	logger *slog.Logger
}

func NewBusDispatcher(bus eventbus.EventPublisher, logger *slog.Logger) *BusDispatcher {
	return &BusDispatcher{
		bus:    bus,
		logger: logger.With("module", "bus_dispatcher"),
	}
}

func (d *BusDispatcher) Dispatch(ctx context.Context, graphID string, input map[string]any) (string, error) {
	executionID := engine.NewExecutionID()

	event := events.RunTriggered{
		BaseEvent:   events.NewBaseEvent(events.RunTriggeredEvent, graphID),
		ExecutionID: executionID,
		Input:       input,
	}

	if err := d.bus.Publish(ctx, executionID, event); err != nil {
		return "", fmt.Errorf("failed to publish run.triggered: %w", err)
	}

	d.logger.Info("Run dispatched to bus", "graph_id", graphID, "execution_id", executionID)

	return executionID, nil
}
