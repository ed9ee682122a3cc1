package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dkaiser/batchline/internal/domain"
	"github.com/dkaiser/batchline/internal/logger"
)

// SkippedJob names a retry-request job that was not reset, and why.
type SkippedJob struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason"`
}

// RetryResult reports what RetryJobs reset and what it skipped.
type RetryResult struct {
	BatchID string       `json:"batch_id"`
	Reset   []string     `json:"reset"`
	Skipped []SkippedJob `json:"skipped"`
}

// StopResult reports what StopBatch affected.
type StopResult struct {
	BatchID    string `json:"batch_id"`
	Stopped    int    `json:"stopped"`
	Unaffected int    `json:"unaffected"`
	Total      int    `json:"total"`
}

// RetryJobs resets the named failed jobs back to pending so a later
// ExecuteBatch picks them up. Jobs in any other status are reported as
// skipped and left untouched. It validates everything before mutating and
// executes nothing.
func (s *BatchService) RetryJobs(ctx context.Context, batchID string, jobIDs []string, policy RetryPolicy) (*RetryResult, error) {
	if batchID == "" {
		return nil, &domain.ValidationError{Field: "batch_id", Message: "must not be empty"}
	}
	if len(jobIDs) == 0 {
		return nil, &domain.ValidationError{Field: "job_ids", Message: "must not be empty"}
	}
	seen := make(map[string]bool, len(jobIDs))
	for _, id := range jobIDs {
		if seen[id] {
			return nil, &domain.ValidationError{Field: "job_ids", Message: fmt.Sprintf("duplicate id %s", id)}
		}
		seen[id] = true
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	m, err := s.repo.Load(ctx, batchID)
	if err != nil {
		return nil, err
	}
	for _, id := range jobIDs {
		if m.Job(id) == nil {
			return nil, &domain.ValidationError{Field: "job_ids", Message: fmt.Sprintf("job %s not in batch %s", id, batchID)}
		}
	}

	result := &RetryResult{BatchID: batchID}
	for _, id := range jobIDs {
		job := m.Job(id)
		if job.Status != domain.JobStatusFailed {
			result.Skipped = append(result.Skipped, SkippedJob{
				JobID:  id,
				Reason: fmt.Sprintf("status is %s, only failed jobs can be retried", job.Status),
			})
			continue
		}
		if err := job.Transition(domain.JobStatusPending); err != nil {
			return nil, err
		}
		job.ErrorMessage = ""
		job.CompletedAt = nil
		m.FailedJobs--
		result.Reset = append(result.Reset, id)
	}

	if len(result.Reset) > 0 {
		if err := s.repo.Save(ctx, m); err != nil {
			return nil, err
		}
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldBatchID: batchID,
		"reset":             len(result.Reset),
		"skipped":           len(result.Skipped),
	}).Info("Retry preparation finished")
	return result, nil
}

// StopBatch flips every pending or running job to stopped. Already resolved
// jobs are left untouched and counted as unaffected. Idempotent: a second
// call stops zero jobs.
func (s *BatchService) StopBatch(ctx context.Context, batchID string) (*StopResult, error) {
	if batchID == "" {
		return nil, &domain.ValidationError{Field: "batch_id", Message: "must not be empty"}
	}

	m, err := s.repo.Load(ctx, batchID)
	if err != nil {
		return nil, err
	}

	result := &StopResult{BatchID: batchID, Total: m.TotalJobs}
	now := time.Now().UTC()
	for _, job := range m.Jobs {
		switch job.Status {
		case domain.JobStatusPending, domain.JobStatusRunning:
			if err := job.Transition(domain.JobStatusStopped); err != nil {
				return nil, err
			}
			t := now
			job.CompletedAt = &t
			result.Stopped++
		default:
			result.Unaffected++
		}
	}

	if result.Stopped > 0 {
		if err := s.repo.Save(ctx, m); err != nil {
			return nil, err
		}
	}

	// Let an in-flight execution loop observe the stop at its next job
	// boundary.
	s.raiseStop(batchID)

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldBatchID: batchID,
		"stopped":           result.Stopped,
		"unaffected":        result.Unaffected,
	}).Info("Batch stop processed")
	return result, nil
}
