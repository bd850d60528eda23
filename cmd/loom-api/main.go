package main

import (
	"context"
	"os"
	"time"

	"github.com/nodeloom/loom/pkg/cmd"
	"github.com/nodeloom/loom/pkg/engine"
	"github.com/nodeloom/loom/pkg/log"
	"github.com/nodeloom/loom/pkg/registry"
	"github.com/nodeloom/loom/pkg/runner"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9092

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "loom-api",
		Usage:                 "Create and run node graphs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Storage URL (postgres://, memory://, or a file root)",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for shared job results (empty keeps jobs in-process)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (memory, kafka)",
				Value:   "memory",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
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

			logger.InfoContext(ctx, "Initializing Loom API")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(
				command.String("event-bus"),
				"loom-api",
				command.StringSlice("kafka-brokers"),
				logger,
			)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			reg := registry.NewRegistry(logger)
			eng := engine.NewEngine(reg, logger,
				engine.WithNodeTimeout(command.Duration("node-timeout")),
				engine.WithMaxParallel(int(command.Int("max-parallel"))),
				engine.WithEventBus(eventBus),
			)
			run := runner.NewRunner(persistence, eng, logger)

			api := NewAPI(
				logger,
				persistence,
				reg,
				run,
				command.String("redis-url"),
			)
			defer api.Stop()

			if err := api.Start(int(command.Int("port"))); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
