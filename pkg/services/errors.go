// Package services provides the application-facing operations: workflow
// submission, execution control and progress queries.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowDisabled is returned when starting an execution of a
	// disabled workflow.
	ErrWorkflowDisabled = errors.New("workflow is disabled")

	// ErrNotCancellable is returned when cancelling an execution that has
	// already reached a terminal state.
	ErrNotCancellable = errors.New("execution is not cancellable")

	// ErrNotRunning is returned when pausing or resuming an execution that
	// is not in memory on this worker.
	ErrNotRunning = errors.New("execution is not running on this worker")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
