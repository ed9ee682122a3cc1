package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"time"

	"github.com/dkaiser/batchline/internal/config"
	"github.com/dkaiser/batchline/internal/domain"
)

// CommandExecutor runs a local command for each job, feeding the row data as
// JSON on stdin. A non-zero exit code fails the attempt.
type CommandExecutor struct {
	command string
	timeout time.Duration
}

// NewCommandExecutor creates a command executor from configuration.
func NewCommandExecutor(cfg config.ExecutorConfig) *CommandExecutor {
	return &CommandExecutor{
		command: cfg.Command,
		timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
	}
}

// Execute implements Executor.
func (e *CommandExecutor) Execute(ctx context.Context, row *domain.RowData) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return &domain.ExecutionError{Kind: "encode", Message: err.Error(), Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", e.command)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return &domain.ExecutionError{Kind: "timeout", Message: "command timed out", Err: err}
		}
		return &domain.ExecutionError{
			Kind:    "exit_code",
			Message: truncate(stderr.String(), 200),
			Err:     err,
		}
	}
	return nil
}
