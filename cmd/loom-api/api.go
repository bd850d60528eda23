// Package main provides the Loom API server implementation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/nodeloom/loom/pkg/cmd"
	"github.com/nodeloom/loom/pkg/compile"
	"github.com/nodeloom/loom/pkg/jobs"
	"github.com/nodeloom/loom/pkg/persistence"
	"github.com/nodeloom/loom/pkg/registry"
	"github.com/nodeloom/loom/pkg/runner"
	"github.com/nodeloom/loom/pkg/schedule"
	"github.com/nodeloom/loom/pkg/web"
	"github.com/nodeloom/loom/pkg/webhook"
)

type sweeper interface {
	StartSweeper()
	StopSweeper()
}

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	runner      *runner.Runner
	validate    *validator.Validate
	redisURL    string

	app      *fiber.App
	sweepers []sweeper
	sched    *schedule.Scheduler
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	reg *registry.Registry,
	run *runner.Runner,
	redisURL string,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		registry:    reg,
		runner:      run,
		redisURL:    redisURL,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	compiler := compile.NewCompiler(a.registry)

	runStore := cmd.NewJobStore(a.redisURL, a.runner.JobRunner(), a.logger)
	compileStore := cmd.NewJobStore(a.redisURL, a.compileRunner(compiler), a.logger)

	for _, store := range []any{runStore, compileStore} {
		if s, ok := store.(sweeper); ok {
			s.StartSweeper()
			a.sweepers = append(a.sweepers, s)
		}
	}

	dispatcher := runner.NewLocalDispatcher(runStore)
	gateway := webhook.NewGateway(a.persistence, dispatcher, a.logger)

	a.sched = schedule.NewScheduler(dispatcher, a.logger)
	a.sched.Start()

	handlers := web.NewAPIHandlers(
		a.persistence,
		gateway,
		runStore,
		compileStore,
		compiler,
		a.sched,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Loom API")
	})

	g := app.Group("/graphs")
	g.Get("/", handlers.GetGraphs)
	g.Post("/", handlers.CreateGraph)
	g.Get("/:id", handlers.GetGraph)
	g.Delete("/:id", handlers.DeleteGraph)
	g.Post("/:id/validate", handlers.ValidateGraph)
	g.Get("/:id/plan", handlers.CompilePreview)
	g.Post("/:id/webhooks", handlers.CreateWebhook)
	g.Post("/:id/schedules", handlers.CreateSchedule)

	app.Post("/runs", handlers.SubmitRun)
	app.Get("/runs/:id", handlers.GetRun)

	app.Post("/compile", handlers.SubmitCompile)
	app.Get("/compile/:id", handlers.GetCompile)

	app.All("/webhooks/:key", handlers.HandleWebhook)

	return app
}

// compileRunner wraps graph compilation as job store work.
func (a *API) compileRunner(compiler *compile.Compiler) jobs.Runner {
	return func(ctx context.Context, params map[string]any) (any, error) {
		graphID, _ := params["graph_id"].(string)
		if graphID == "" {
			return nil, fmt.Errorf("missing graph_id parameter")
		}

		graph, err := a.persistence.GraphRepository().GraphByID(ctx, graphID)
		if err != nil {
			return nil, fmt.Errorf("failed to load graph %s: %w", graphID, err)
		}

		return compiler.Compile(graph)
	}
}

func (a *API) Start(port int) error {
	a.app = a.App()

	return a.app.Listen(":" + strconv.Itoa(port))
}

func (a *API) Stop() {
	if a.sched != nil {
		a.sched.Stop()
	}

	for _, s := range a.sweepers {
		s.StopSweeper()
	}
}
