package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nodeloom/loom/pkg/models"
)

// MemoryStore is the in-process Store implementation. Submission, the
// background worker's state transitions, and the periodic sweep all mutate
// the same registry under one mutex, so a worker completing a job can never
// race the sweep deleting it.
type MemoryStore struct {
	runner        Runner
	logger        *slog.Logger
	clock         Clock
	retention     time.Duration
	sweepInterval time.Duration

	mu   sync.Mutex
	jobs map[string]*models.Job

	stopSweep chan struct{}
	sweepOnce sync.Once
	wg        sync.WaitGroup
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock substitutes the time source.
func WithClock(clock Clock) MemoryOption {
	return func(s *MemoryStore) { s.clock = clock }
}

// WithRetention overrides the retention window.
func WithRetention(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.retention = d }
}

// WithSweepInterval overrides the sweep cadence.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.sweepInterval = d }
}

func NewMemoryStore(runner Runner, logger *slog.Logger, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		runner:        runner,
		logger:        logger.With("module", "job_store"),
		clock:         time.Now,
		retention:     DefaultRetention,
		sweepInterval: DefaultSweepInterval,
		jobs:          make(map[string]*models.Job),
		stopSweep:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *MemoryStore) Submit(ctx context.Context, params map[string]any) (string, error) {
	id := uuid.New().String()

	return id, s.SubmitID(ctx, id, params)
}

func (s *MemoryStore) SubmitID(_ context.Context, id string, params map[string]any) error {
	now := s.clock().UTC()

	job := &models.Job{
		ID:        id,
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	if _, exists := s.jobs[id]; exists {
		s.mu.Unlock()

		return fmt.Errorf("job %s already submitted", id)
	}

	s.jobs[id] = job
	s.mu.Unlock()

	s.logger.Info("Job submitted", "job_id", id)

	s.wg.Add(1)

	// The HTTP caller is never blocked on the work itself; execution
	// detaches from the request context.
	go s.process(context.Background(), id, params)

	return nil
}

func (s *MemoryStore) Status(_ context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	copied := *job

	return &copied, nil
}

// process runs one job to completion. Any error or panic from the runner is
// recorded as the job's failed state; nothing escapes to the host process.
func (s *MemoryStore) process(ctx context.Context, id string, params map[string]any) {
	defer s.wg.Done()

	s.transition(id, func(job *models.Job) {
		job.Status = models.JobStatusProcessing
	})

	result, err := s.invoke(ctx, params)

	if err != nil {
		s.logger.Error("Job failed", "job_id", id, "error", err)
		s.transition(id, func(job *models.Job) {
			job.Status = models.JobStatusFailed
			job.Error = err.Error()
		})

		return
	}

	s.logger.Info("Job completed", "job_id", id)
	s.transition(id, func(job *models.Job) {
		job.Status = models.JobStatusCompleted
		job.Result = result
	})
}

func (s *MemoryStore) invoke(ctx context.Context, params map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return s.runner(ctx, params)
}

func (s *MemoryStore) transition(id string, mutate func(*models.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		// Swept while processing; the result is discarded, matching the
		// expiry contract.
		return
	}

	mutate(job)
	job.UpdatedAt = s.clock().UTC()
}

// StartSweeper begins the periodic expiry sweep. It is owned by the store's
// lifecycle: call StopSweeper on shutdown.
func (s *MemoryStore) StartSweeper() {
	ticker := time.NewTicker(s.sweepInterval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopSweep:
				return
			}
		}
	}()
}

// StopSweeper halts the sweep and waits for in-flight jobs to finish.
func (s *MemoryStore) StopSweeper() {
	s.sweepOnce.Do(func() { close(s.stopSweep) })
	s.wg.Wait()
}

// Sweep removes jobs whose last update is older than the retention window,
// regardless of whether anyone polled them.
func (s *MemoryStore) Sweep() int {
	cutoff := s.clock().UTC().Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	for id, job := range s.jobs {
		if job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)

			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("Swept expired jobs", "count", removed)
	}

	return removed
}
