package domain

import "time"

// JobSnapshot is the per-job slice of a batch summary.
type JobSnapshot struct {
	JobID        string     `json:"job_id"`
	Status       JobStatus  `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Summary is a derived view of a manifest. It is never authoritative and is
// always recomputable from the manifest it was built from.
type Summary struct {
	BatchID       string        `json:"batch_id"`
	RunID         string        `json:"run_id"`
	TotalJobs     int           `json:"total_jobs"`
	CompletedJobs int           `json:"completed_jobs"`
	FailedJobs    int           `json:"failed_jobs"`
	PendingJobs   int           `json:"pending_jobs"`
	SuccessRate   float64       `json:"success_rate"`
	CreatedAt     time.Time     `json:"created_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	Jobs          []JobSnapshot `json:"jobs"`
}

// Summarize computes a summary from a manifest. Counts come from the job list
// itself rather than the rolling counters, so the result is correct even for a
// manifest mid-flight.
func Summarize(m *Manifest) *Summary {
	s := &Summary{
		BatchID:   m.BatchID,
		RunID:     m.RunID,
		TotalJobs: len(m.Jobs),
		CreatedAt: m.CreatedAt,
		Jobs:      make([]JobSnapshot, 0, len(m.Jobs)),
	}

	var latest *time.Time
	for _, j := range m.Jobs {
		switch j.Status {
		case JobStatusCompleted:
			s.CompletedJobs++
		case JobStatusFailed:
			s.FailedJobs++
		case JobStatusPending:
			s.PendingJobs++
		}
		if j.CompletedAt != nil && (latest == nil || j.CompletedAt.After(*latest)) {
			t := *j.CompletedAt
			latest = &t
		}
		s.Jobs = append(s.Jobs, JobSnapshot{
			JobID:        j.JobID,
			Status:       j.Status,
			CreatedAt:    j.CreatedAt,
			CompletedAt:  j.CompletedAt,
			ErrorMessage: j.ErrorMessage,
		})
	}

	if resolved := s.CompletedJobs + s.FailedJobs; resolved > 0 {
		s.SuccessRate = float64(s.CompletedJobs) / float64(resolved) * 100
	}
	if m.Resolved() {
		s.CompletedAt = latest
	}
	return s
}
