package cmd

import (
	"fmt"
	"log/slog"

	"github.com/nodeloom/loom/pkg/jobs"
	"github.com/nodeloom/loom/pkg/runner"
	"github.com/redis/go-redis/v9"
)

// NewJobStore selects a job store backend. An empty redisURL keeps jobs
// in-process; otherwise results are shared through Redis.
func NewJobStore(redisURL string, run jobs.Runner, logger *slog.Logger) runner.JobStore {
	if redisURL == "" {
		return jobs.NewMemoryStore(run, logger)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse redis URL: %w", err))
	}

	return jobs.NewRedisStore(redis.NewClient(opts), run, logger)
}
