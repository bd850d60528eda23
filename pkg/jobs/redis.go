package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nodeloom/loom/pkg/models"
	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "loom:jobs:"

// RedisStore is the externally backed Store implementation: job records live
// in Redis under a TTL equal to the retention window, refreshed on every
// state transition. Expiry needs no sweeper; Redis evicts on its own.
type RedisStore struct {
	client    redis.UniversalClient
	runner    Runner
	logger    *slog.Logger
	retention time.Duration
}

func NewRedisStore(client redis.UniversalClient, runner Runner, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client:    client,
		runner:    runner,
		logger:    logger.With("module", "job_store_redis"),
		retention: DefaultRetention,
	}
}

func (s *RedisStore) Submit(ctx context.Context, params map[string]any) (string, error) {
	id := uuid.New().String()

	return id, s.SubmitID(ctx, id, params)
}

func (s *RedisStore) SubmitID(ctx context.Context, id string, params map[string]any) error {
	now := time.Now().UTC()

	job := &models.Job{
		ID:        id,
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.save(ctx, job); err != nil {
		return fmt.Errorf("failed to store job %s: %w", id, err)
	}

	s.logger.Info("Job submitted", "job_id", id)

	go s.process(context.Background(), id, params)

	return nil
}

func (s *RedisStore) Status(ctx context.Context, id string) (*models.Job, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch job %s: %w", id, err)
	}

	var job models.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}

	return &job, nil
}

func (s *RedisStore) process(ctx context.Context, id string, params map[string]any) {
	s.transition(ctx, id, func(job *models.Job) {
		job.Status = models.JobStatusProcessing
	})

	result, err := s.invoke(ctx, params)

	if err != nil {
		s.logger.Error("Job failed", "job_id", id, "error", err)
		s.transition(ctx, id, func(job *models.Job) {
			job.Status = models.JobStatusFailed
			job.Error = err.Error()
		})

		return
	}

	s.logger.Info("Job completed", "job_id", id)
	s.transition(ctx, id, func(job *models.Job) {
		job.Status = models.JobStatusCompleted
		job.Result = result
	})
}

func (s *RedisStore) invoke(ctx context.Context, params map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return s.runner(ctx, params)
}

func (s *RedisStore) transition(ctx context.Context, id string, mutate func(*models.Job)) {
	job, err := s.Status(ctx, id)
	if err != nil {
		// Expired mid-flight; the result is discarded.
		return
	}

	mutate(job)
	job.UpdatedAt = time.Now().UTC()

	if err := s.save(ctx, job); err != nil {
		s.logger.Error("Failed to persist job transition", "job_id", id, "error", err)
	}
}

func (s *RedisStore) save(ctx context.Context, job *models.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, redisKeyPrefix+job.ID, payload, s.retention).Err()
}
