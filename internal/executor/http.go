package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dkaiser/batchline/internal/config"
	"github.com/dkaiser/batchline/internal/domain"
)

// HTTPExecutor posts a job's row data as JSON to a webhook endpoint. Any
// non-2xx response or transport failure is an execution failure.
type HTTPExecutor struct {
	client   *resty.Client
	endpoint string
}

// NewHTTPExecutor creates an HTTP executor from configuration.
func NewHTTPExecutor(cfg config.ExecutorConfig) *HTTPExecutor {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(time.Duration(cfg.TimeoutMs) * time.Millisecond)

	return &HTTPExecutor{
		client:   client,
		endpoint: cfg.Endpoint,
	}
}

// Execute implements Executor.
func (e *HTTPExecutor) Execute(ctx context.Context, row *domain.RowData) error {
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(row).
		Post(e.endpoint)
	if err != nil {
		return &domain.ExecutionError{Kind: "network", Message: err.Error(), Err: err}
	}
	if resp.IsError() {
		return &domain.ExecutionError{
			Kind:    "http_status",
			Message: fmt.Sprintf("endpoint returned %d: %s", resp.StatusCode(), truncate(resp.String(), 200)),
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
