package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nodeloom/loom/pkg/eventbus"
	"github.com/nodeloom/loom/pkg/events"
	"github.com/nodeloom/loom/pkg/otelhelper"
	"github.com/nodeloom/loom/pkg/runner"
)

// Worker consumes run.triggered events and executes the referenced graph.
type Worker struct {
	id       string
	logger   *slog.Logger
	eventBus eventbus.EventBus
	runner   *runner.Runner
}

func NewWorker(id string, bus eventbus.EventBus, run *runner.Runner, logger *slog.Logger) *Worker {
	return &Worker{
		id:       id,
		logger:   logger.With("module", "loom-worker"),
		eventBus: bus,
		runner:   run,
	}
}

// Start subscribes to the event bus and blocks until SIGINT or SIGTERM.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker", "worker_id", w.id)

	tp, err := otelhelper.InitTracer(ctx, "loom-worker")
	if err != nil {
		w.logger.WarnContext(ctx, "Tracing disabled", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				w.logger.Error("Failed to shut down tracer provider", "error", err)
			}
		}()
	}

	if err := w.eventBus.Handle(events.RunTriggeredEvent, w.handleRunTriggered); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *Worker) handleRunTriggered(ctx context.Context, event any) error {
	triggered, ok := event.(*events.RunTriggered)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for RunTriggered")

		return nil
	}

	logger := w.logger.With(
		"graph_id", triggered.GraphID,
		"execution_id", triggered.ExecutionID,
		"event_id", triggered.ID,
	)
	logger.InfoContext(ctx, "Processing run triggered event")

	result, err := w.runner.Execute(ctx, triggered.ExecutionID, triggered.GraphID, triggered.Input)
	if err != nil {
		logger.ErrorContext(ctx, "Run failed", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Run finished",
		"success", result.Success,
		"duration_ms", result.DurationMs,
	)

	return nil
}
