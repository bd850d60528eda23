// Package jobs implements the asynchronous job store and poll protocol: a
// submission gets an opaque identifier immediately, the work runs in the
// background, and callers poll for status until completion, failure, or
// expiry. The store is generic over the work it runs, so the same component
// serves both workflow runs and graph compiles.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/nodeloom/loom/pkg/models"
)

// ErrJobNotFound is returned when a job identifier is unknown or the job has
// expired. The two cases are intentionally indistinguishable.
var ErrJobNotFound = errors.New("job not found")

// Runner performs the background work of one job.
type Runner func(ctx context.Context, params map[string]any) (any, error)

// Clock supplies the store's notion of now; tests substitute a fake.
type Clock func() time.Time

const (
	// DefaultRetention is how long a job survives after its last update.
	DefaultRetention = 10 * time.Minute

	// DefaultSweepInterval is the cadence of the expiry sweep.
	DefaultSweepInterval = 60 * time.Second
)

// Store assigns identifiers to background work and answers polls.
type Store interface {
	// Submit creates a pending job, begins background execution, and
	// returns without waiting for it.
	Submit(ctx context.Context, params map[string]any) (string, error)

	// Status returns the job or ErrJobNotFound if the identifier is unknown
	// or expired.
	Status(ctx context.Context, id string) (*models.Job, error)
}

// SubmitWithID is implemented by stores that accept a caller-chosen job
// identifier, used to correlate webhook execution IDs with their jobs.
type SubmitWithID interface {
	SubmitID(ctx context.Context, id string, params map[string]any) error
}
