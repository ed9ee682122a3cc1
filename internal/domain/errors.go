package domain

import "fmt"

// ConfigurationError reports an invalid engine setting. It is raised at
// construction time and is fatal to that engine instance.
type ConfigurationError struct {
	Key   string
	Value any
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v", e.Key, e.Value)
}

// FileProcessingError reports a malformed, oversized, empty, or unreadable
// input file. The batch is not created.
type FileProcessingError struct {
	Path    string
	Message string
}

func (e *FileProcessingError) Error() string {
	return fmt.Sprintf("file processing failed for %s: %s", e.Path, e.Message)
}

// SecurityError reports a path-traversal or sensitive-directory violation.
type SecurityError struct {
	Path    string
	Message string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security violation for %s: %s", e.Path, e.Message)
}

// NotFoundError reports a missing input file, batch, or job.
type NotFoundError struct {
	Kind string // "file", "batch", "job"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ValidationError reports a malformed API argument. Nothing is mutated before
// it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ExecutionError is the typed failure an executor raises for one attempt.
// Kind classifies the failure (e.g. "timeout", "http_status", "exit_code").
type ExecutionError struct {
	Kind    string
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("execution failed (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("execution failed (%s)", e.Kind)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
