package models

import "time"

// JobStatus mirrors RunStatus for independently polled background work.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is an opaque, independently polled handle wrapping a background unit
// of work. After the retention window elapses the job disappears and polling
// it is indistinguishable from polling an invalid identifier.
type Job struct {
	ID        string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
