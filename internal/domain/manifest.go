package domain

import (
	"fmt"
	"time"
)

// Manifest is the durable record of one batch and all of its jobs. It is the
// single source of truth for job state; jobs are never removed or reordered.
type Manifest struct {
	BatchID       string    `json:"batch_id"`
	RunID         string    `json:"run_id"`
	InputPath     string    `json:"input_path"`
	TotalJobs     int       `json:"total_jobs"`
	CompletedJobs int       `json:"completed_jobs"`
	FailedJobs    int       `json:"failed_jobs"`
	CreatedAt     time.Time `json:"created_at"`
	Jobs          []*Job    `json:"jobs"`
}

// Job returns the job with the given id, or nil.
func (m *Manifest) Job(jobID string) *Job {
	for _, j := range m.Jobs {
		if j.JobID == jobID {
			return j
		}
	}
	return nil
}

// PendingJobs returns the jobs still pending, in row order.
func (m *Manifest) PendingJobs() []*Job {
	var out []*Job
	for _, j := range m.Jobs {
		if j.Status == JobStatusPending {
			out = append(out, j)
		}
	}
	return out
}

// CountByStatus returns the number of jobs in the given status.
func (m *Manifest) CountByStatus(status JobStatus) int {
	n := 0
	for _, j := range m.Jobs {
		if j.Status == status {
			n++
		}
	}
	return n
}

// Resolved reports whether no job remains pending or running.
func (m *Manifest) Resolved() bool {
	for _, j := range m.Jobs {
		if j.Status == JobStatusPending || j.Status == JobStatusRunning {
			return false
		}
	}
	return true
}

// Validate checks the manifest's structural invariants: total matches the job
// list, counters stay within bounds, and job ids are unique.
func (m *Manifest) Validate() error {
	if m.TotalJobs != len(m.Jobs) {
		return fmt.Errorf("manifest %s: total_jobs=%d but %d jobs", m.BatchID, m.TotalJobs, len(m.Jobs))
	}
	if m.CompletedJobs+m.FailedJobs > m.TotalJobs {
		return fmt.Errorf("manifest %s: completed=%d + failed=%d exceeds total=%d",
			m.BatchID, m.CompletedJobs, m.FailedJobs, m.TotalJobs)
	}
	seen := make(map[string]bool, len(m.Jobs))
	for _, j := range m.Jobs {
		if seen[j.JobID] {
			return fmt.Errorf("manifest %s: duplicate job id %s", m.BatchID, j.JobID)
		}
		seen[j.JobID] = true
	}
	return nil
}
