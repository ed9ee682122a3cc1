package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkaiser/batchline/internal/domain"
	"github.com/dkaiser/batchline/internal/executor"
)

var alwaysFail = executor.Func(func(ctx context.Context, row *domain.RowData) error {
	return &domain.ExecutionError{Kind: "timeout", Message: "deadline exceeded"}
})

func testJob() *domain.Job {
	row := domain.NewRowData()
	row.Set("name", "alice")
	return domain.NewJob("run_t", "batch_t", 1, row, time.Now().UTC())
}

func TestExecuteWithRetryBackoffSchedule(t *testing.T) {
	testCases := []struct {
		name   string
		policy RetryPolicy
		want   []time.Duration
	}{
		{
			name: "cap not reached",
			policy: RetryPolicy{
				MaxRetries:    3,
				InitialDelay:  time.Second,
				BackoffFactor: 2.0,
				MaxDelay:      5 * time.Second,
			},
			want: []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		},
		{
			name: "cap binds the last wait",
			policy: RetryPolicy{
				MaxRetries:    3,
				InitialDelay:  time.Second,
				BackoffFactor: 2.0,
				MaxDelay:      2500 * time.Millisecond,
			},
			want: []time.Duration{time.Second, 2 * time.Second, 2500 * time.Millisecond},
		},
		{
			name: "no retries no waits",
			policy: RetryPolicy{
				MaxRetries:    0,
				InitialDelay:  time.Second,
				BackoffFactor: 2.0,
				MaxDelay:      5 * time.Second,
			},
			want: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, alwaysFail)
			var waits []time.Duration
			h.svc.sleep = func(ctx context.Context, d time.Duration) error {
				waits = append(waits, d)
				return nil
			}

			attempts, err := h.svc.ExecuteWithRetry(context.Background(), testJob(), tc.policy)
			if err == nil {
				t.Fatal("expected failure after exhausting retries")
			}
			if attempts != tc.policy.MaxRetries+1 {
				t.Errorf("attempts = %d, want %d", attempts, tc.policy.MaxRetries+1)
			}

			if len(waits) != len(tc.want) {
				t.Fatalf("waits = %v, want %v", waits, tc.want)
			}
			for i := range tc.want {
				if waits[i] != tc.want[i] {
					t.Errorf("wait %d = %s, want %s", i, waits[i], tc.want[i])
				}
			}
		})
	}
}

func TestExecuteWithRetrySucceedsOnLaterAttempt(t *testing.T) {
	calls := 0
	exec := executor.Func(func(ctx context.Context, row *domain.RowData) error {
		calls++
		if calls < 3 {
			return &domain.ExecutionError{Kind: "network", Message: "connection refused"}
		}
		return nil
	})

	h := newHarness(t, exec)
	attempts, err := h.svc.ExecuteWithRetry(context.Background(), testJob(), testPolicy())
	if err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if calls != 3 || attempts != 3 {
		t.Errorf("calls = %d attempts = %d, want 3/3", calls, attempts)
	}
}

func TestExecuteWithRetryReturnsLastError(t *testing.T) {
	h := newHarness(t, alwaysFail)
	_, err := h.svc.ExecuteWithRetry(context.Background(), testJob(), testPolicy())

	var execErr *domain.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if execErr.Kind != "timeout" {
		t.Errorf("kind = %s, want timeout", execErr.Kind)
	}
}

func TestExecuteWithRetryCancelledBackoff(t *testing.T) {
	h := newHarness(t, alwaysFail)
	h.svc.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	attempts, err := h.svc.ExecuteWithRetry(context.Background(), testJob(), testPolicy())
	if err == nil {
		t.Fatal("expected error from aborted retry")
	}
	var execErr *domain.ExecutionError
	if !errors.As(err, &execErr) {
		t.Errorf("aborted retry should still carry the attempt failure, got %v", err)
	}
	// only the first attempt ran before the backoff was cancelled
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryPolicyValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*RetryPolicy)
		field  string
	}{
		{"negative max retries", func(p *RetryPolicy) { p.MaxRetries = -1 }, "max_retries"},
		{"zero initial delay", func(p *RetryPolicy) { p.InitialDelay = 0 }, "initial_delay"},
		{"factor of one", func(p *RetryPolicy) { p.BackoffFactor = 1.0 }, "backoff_factor"},
		{"zero max delay", func(p *RetryPolicy) { p.MaxDelay = 0 }, "max_delay"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := testPolicy()
			tc.mutate(&p)
			err := p.Validate()
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tc.field {
				t.Errorf("field = %s, want %s", vErr.Field, tc.field)
			}
		})
	}

	if err := testPolicy().Validate(); err != nil {
		t.Errorf("valid policy rejected: %v", err)
	}
}

func TestAttemptSummary(t *testing.T) {
	err := &domain.ExecutionError{Kind: "exit_code", Message: "command exited 1"}
	got := attemptSummary(3, err)
	want := "failed after 3 attempts: exit_code: execution failed (exit_code): command exited 1"
	if got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}

	plain := attemptSummary(2, errors.New("boom"))
	if plain != "failed after 2 attempts: error: boom" {
		t.Errorf("summary for untyped error = %q", plain)
	}
}
