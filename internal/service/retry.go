package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkaiser/batchline/internal/config"
	"github.com/dkaiser/batchline/internal/domain"
	"github.com/dkaiser/batchline/internal/logger"
)

// RetryPolicy bounds the retry behavior for one job: up to MaxRetries+1
// attempts with a capped geometric backoff between failures.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

// Validate checks the policy's ranges.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return &domain.ValidationError{Field: "max_retries", Message: fmt.Sprintf("must be >= 0, got %d", p.MaxRetries)}
	}
	if p.InitialDelay <= 0 {
		return &domain.ValidationError{Field: "initial_delay", Message: fmt.Sprintf("must be > 0, got %s", p.InitialDelay)}
	}
	if p.BackoffFactor <= 1.0 {
		return &domain.ValidationError{Field: "backoff_factor", Message: fmt.Sprintf("must be > 1.0, got %g", p.BackoffFactor)}
	}
	if p.MaxDelay <= 0 {
		return &domain.ValidationError{Field: "max_delay", Message: fmt.Sprintf("must be > 0, got %s", p.MaxDelay)}
	}
	return nil
}

// PolicyFromConfig converts the configured retry defaults into a policy.
func PolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		InitialDelay:  time.Duration(cfg.InitialDelayMs) * time.Millisecond,
		BackoffFactor: cfg.BackoffFactor,
		MaxDelay:      time.Duration(cfg.MaxDelayMs) * time.Millisecond,
	}
}

// ExecuteWithRetry runs one job through the executor with up to
// MaxRetries+1 attempts, returning how many attempts actually ran. On success
// the error is nil; after exhaustion it is the last underlying failure so a
// direct caller observes the real cause. The wait between attempts suspends
// only this job's goroutine.
func (s *BatchService) ExecuteWithRetry(ctx context.Context, job *domain.Job, policy RetryPolicy) (int, error) {
	if err := policy.Validate(); err != nil {
		return 0, err
	}

	attempts := policy.MaxRetries + 1
	delay := policy.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		err := s.executor.Execute(ctx, job.RowData)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		s.log(ctx).WithFields(logger.Fields{
			logger.FieldJobID:   job.JobID,
			logger.FieldAttempt: attempt,
		}).WithError(err).Warn("Job attempt failed")

		if attempt < attempts {
			if err := s.sleep(ctx, delay); err != nil {
				// cancelled mid-backoff; surface the attempt failure
				return attempt, fmt.Errorf("retry aborted: %w", lastErr)
			}
			delay = time.Duration(float64(delay) * policy.BackoffFactor)
			if delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
		}
	}
	return attempts, lastErr
}

// attemptSummary renders the error_message recorded on a job that exhausted
// its retries: attempt count plus the last failure's kind.
func attemptSummary(attempts int, lastErr error) string {
	kind := "error"
	var execErr *domain.ExecutionError
	if errors.As(lastErr, &execErr) {
		kind = execErr.Kind
	}
	return fmt.Sprintf("failed after %d attempts: %s: %v", attempts, kind, lastErr)
}
