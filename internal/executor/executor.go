// Package executor defines the external Job Executor capability and the
// built-in variants the engine can be wired with. The engine itself only sees
// the Executor interface and passes a job's row data; what the executor does
// with it is its own business.
package executor

import (
	"context"
	"fmt"

	"github.com/dkaiser/batchline/internal/config"
	"github.com/dkaiser/batchline/internal/domain"
)

// Executor performs the real work for one job. A nil return means the job
// completed; failures should be *domain.ExecutionError so their kind survives
// into the manifest.
type Executor interface {
	Execute(ctx context.Context, row *domain.RowData) error
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, row *domain.RowData) error

// Execute implements Executor.
func (f Func) Execute(ctx context.Context, row *domain.RowData) error {
	return f(ctx, row)
}

// New selects an executor variant by configured kind.
func New(cfg config.ExecutorConfig) (Executor, error) {
	switch cfg.Kind {
	case "http":
		return NewHTTPExecutor(cfg), nil
	case "command":
		return NewCommandExecutor(cfg), nil
	case "noop":
		return Func(func(ctx context.Context, row *domain.RowData) error {
			return nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown executor kind %q", cfg.Kind)
	}
}
