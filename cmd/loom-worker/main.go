package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nodeloom/loom/pkg/cmd"
	"github.com/nodeloom/loom/pkg/engine"
	"github.com/nodeloom/loom/pkg/log"
	"github.com/nodeloom/loom/pkg/registry"
	"github.com/nodeloom/loom/pkg/runner"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "loom-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker that executes triggered graph runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Storage URL (postgres://, memory://, or a file root)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider (kafka)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka broker addresses when the event bus is kafka",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.IntFlag{
				Name:    "max-parallel",
				Usage:   "Maximum nodes executed concurrently per run",
				Value:   1,
				Sources: cli.EnvVars("MAX_PARALLEL"),
			},
			&cli.DurationFlag{
				Name:    "node-timeout",
				Usage:   "Per-node execution timeout (0 disables)",
				Value:   30 * time.Second,
				Sources: cli.EnvVars("NODE_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "Emit logs as JSON",
				Sources: cli.EnvVars("LOG_JSON"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.Bool("log-json"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("loom-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Loom Worker")

			eventBus := cmd.NewEventBus(
				command.String("event-bus"),
				"loom-worker",
				command.StringSlice("kafka-brokers"),
				logger,
			)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			reg := registry.NewRegistry(logger)
			eng := engine.NewEngine(reg, logger,
				engine.WithNodeTimeout(command.Duration("node-timeout")),
				engine.WithMaxParallel(int(command.Int("max-parallel"))),
				engine.WithEventBus(eventBus),
			)
			run := runner.NewRunner(persistence, eng, logger)

			worker := NewWorker(workerID, eventBus, run, logger)

			if err := worker.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
