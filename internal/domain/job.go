package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a batch job.
// Values include JobStatusPending, JobStatusRunning, JobStatusCompleted,
// JobStatusFailed, and JobStatusStopped.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusStopped   JobStatus = "stopped"
)

var allowedTransitions = map[JobStatus]map[JobStatus]bool{
	JobStatusPending: {
		JobStatusRunning: true,
		JobStatusStopped: true,
	},
	JobStatusRunning: {
		JobStatusCompleted: true,
		JobStatusFailed:    true,
		JobStatusStopped:   true,
	},
	JobStatusFailed: {
		JobStatusPending: true, // explicit retry request
	},
	JobStatusCompleted: {},
	JobStatusStopped:   {},
}

// IsKnownStatus reports whether status is one of the defined job states.
func IsKnownStatus(status JobStatus) bool {
	_, ok := allowedTransitions[status]
	return ok
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to JobStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// IsTerminal reports whether a status resolves the job (completed or failed).
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Artifact is a side-output file attached to a job. The artifact list on a
// job is append-only.
type Artifact struct {
	Type      string         `json:"type"`
	Path      string         `json:"path"`
	CreatedAt time.Time      `json:"created_at"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Job is one unit of work derived from one input row. RowData is immutable
// after creation; only Status, ErrorMessage, CompletedAt, and Artifacts mutate.
type Job struct {
	JobID        string     `json:"job_id"`
	RunID        string     `json:"run_id"`
	BatchID      string     `json:"batch_id"`
	RowIndex     int        `json:"row_index"`
	RowData      *RowData   `json:"row_data"`
	Status       JobStatus  `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Artifacts    []Artifact `json:"artifacts"`
}

// NewJob builds a pending job for one row. Sequence numbers are 1-based and
// produce the deterministic id "<run_id>_<seq:04d>".
func NewJob(runID, batchID string, seq int, row *RowData, now time.Time) *Job {
	return &Job{
		JobID:     fmt.Sprintf("%s_%04d", runID, seq),
		RunID:     runID,
		BatchID:   batchID,
		RowIndex:  seq - 1,
		RowData:   row,
		Status:    JobStatusPending,
		CreatedAt: now.UTC(),
		Artifacts: []Artifact{},
	}
}

// Transition moves the job to the given status, enforcing the allowed
// transition table.
func (j *Job) Transition(to JobStatus) error {
	if !CanTransition(j.Status, to) {
		return &ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("invalid transition %q -> %q for job %s", j.Status, to, j.JobID),
		}
	}
	j.Status = to
	return nil
}
