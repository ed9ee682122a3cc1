package service

import (
	"context"
	"time"

	"github.com/dkaiser/batchline/internal/domain"
	"github.com/dkaiser/batchline/internal/logger"
)

// ExecuteResult reports what one ExecuteBatch call did.
type ExecuteResult struct {
	BatchID   string `json:"batch_id"`
	Executed  int    `json:"executed"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Stopped   int    `json:"stopped"`
}

// ExecuteBatch runs every pending job of a batch sequentially, persisting the
// manifest after each transition. Jobs never overlap within one batch. When
// the batch fully resolves, a summary is written and, if any job failed, a
// failed-rows export.
func (s *BatchService) ExecuteBatch(ctx context.Context, batchID string, policy RetryPolicy, onProgress ProgressFunc) (*ExecuteResult, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	m, err := s.repo.Load(ctx, batchID)
	if err != nil {
		return nil, err
	}

	result := &ExecuteResult{BatchID: batchID}
	pending := m.PendingJobs()
	if len(pending) == 0 {
		s.log(ctx).WithField(logger.FieldBatchID, batchID).Info("No pending jobs, nothing to execute")
		return result, nil
	}

	ctx = logger.SetBatchID(ctx, batchID)
	// a stop raised during a previous execution does not carry over
	s.clearStop(batchID)
	stop := s.stopChan(batchID)
	defer s.clearStop(batchID)

	for _, job := range pending {
		if stopRequested(stop) {
			// StopBatch already persisted the stopped statuses; pick up
			// its view instead of clobbering it with ours.
			reloaded, err := s.repo.Load(ctx, batchID)
			if err != nil {
				return result, err
			}
			m = reloaded
			result.Stopped = m.CountByStatus(domain.JobStatusStopped)
			break
		}

		jobCtx := logger.SetJobID(ctx, job.JobID)
		if err := job.Transition(domain.JobStatusRunning); err != nil {
			return result, err
		}
		if err := s.repo.Save(jobCtx, m); err != nil {
			return result, err
		}

		start := time.Now()
		attempts, execErr := s.ExecuteWithRetry(jobCtx, job, policy)
		now := time.Now().UTC()
		job.CompletedAt = &now

		if execErr != nil {
			job.ErrorMessage = attemptSummary(attempts, execErr)
			if err := job.Transition(domain.JobStatusFailed); err != nil {
				return result, err
			}
			m.FailedJobs++
			result.Failed++
		} else {
			if err := job.Transition(domain.JobStatusCompleted); err != nil {
				return result, err
			}
			m.CompletedJobs++
			result.Completed++
		}
		result.Executed++

		if stopRequested(stop) {
			// StopBatch persisted stopped statuses while this job was in
			// flight. Fold the job's real outcome into that view; saving the
			// stale in-memory manifest would revert the stops.
			reloaded, err := s.repo.Load(jobCtx, batchID)
			if err != nil {
				return result, err
			}
			if rj := reloaded.Job(job.JobID); rj != nil {
				rj.Status = job.Status
				rj.ErrorMessage = job.ErrorMessage
				rj.CompletedAt = job.CompletedAt
			}
			reloaded.CompletedJobs = m.CompletedJobs
			reloaded.FailedJobs = m.FailedJobs
			m = reloaded
		}

		if err := s.repo.Save(jobCtx, m); err != nil {
			return result, err
		}

		s.log(jobCtx).WithFields(logger.Fields{
			logger.FieldStatus:     string(job.Status),
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Info("Job resolved")

		s.notifyProgress(jobCtx, onProgress, m.CompletedJobs+m.FailedJobs, m.TotalJobs)
	}

	if m.Resolved() {
		if err := s.finalize(ctx, m); err != nil {
			// summary and export are best-effort; the manifest is already
			// consistent
			s.log(ctx).WithError(err).Warn("Batch finalization incomplete")
		}
	}

	s.log(ctx).WithFields(logger.Fields{
		"executed":  result.Executed,
		"completed": result.Completed,
		"failed":    result.Failed,
	}).Info("Batch execution finished")
	return result, nil
}

// notifyProgress invokes the caller's progress callback, isolating any panic
// or misbehavior from job processing.
func (s *BatchService) notifyProgress(ctx context.Context, onProgress ProgressFunc, completed, total int) {
	if onProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log(ctx).WithField("panic", r).Warn("Progress callback panicked")
		}
	}()
	onProgress(completed, total)
}

// finalize writes the summary and, when failures exist, the failed-rows
// export.
func (s *BatchService) finalize(ctx context.Context, m *domain.Manifest) error {
	if _, err := s.WriteSummary(ctx, m); err != nil {
		return err
	}
	if m.CountByStatus(domain.JobStatusFailed) > 0 {
		if err := s.ExportFailedRows(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
