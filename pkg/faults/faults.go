// Package faults defines the platform error taxonomy: every failure that
// crosses a component boundary is represented as an *Error carrying a
// category, severity, machine code and a user-safe message.
package faults

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category buckets a failure for recovery strategy selection.
type Category string

const (
	CategoryValidation        Category = "validation"
	CategoryAuthentication    Category = "authentication"
	CategoryAuthorization     Category = "authorization"
	CategoryIntegration       Category = "integration"
	CategoryWorkflowExecution Category = "workflow_execution"
	CategoryDatabase          Category = "database"
	CategoryVectorStore       Category = "vector_store"
	CategoryAPI               Category = "api"
	CategoryNetwork           Category = "network"
	CategoryConfiguration     Category = "configuration"
	CategorySystem            Category = "system"
)

// Categories lists every known category, in declaration order.
func Categories() []Category {
	return []Category{
		CategoryValidation,
		CategoryAuthentication,
		CategoryAuthorization,
		CategoryIntegration,
		CategoryWorkflowExecution,
		CategoryDatabase,
		CategoryVectorStore,
		CategoryAPI,
		CategoryNetwork,
		CategoryConfiguration,
		CategorySystem,
	}
}

// Severity grades how serious a failure is for logging and alerting.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error is the typed platform error. It is immutable by convention once
// raised: components attach it to step results or execution records but do
// not mutate it afterwards.
type Error struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	UserMessage string         `json:"user_message"`
	Category    Category       `json:"category"`
	Severity    Severity       `json:"severity"`
	Context     map[string]any `json:"context,omitempty"`
	Recoverable bool           `json:"recoverable"`
	RetryAfter  time.Duration  `json:"retry_after,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`

	// Err is the wrapped cause, kept for errors.Is/As chains. It is
	// serialized as a plain string.
	Err error `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Category, e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("[%s/%s] %s", e.Category, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithContext returns a copy of the error with the given key/value merged
// into its context. The receiver is left untouched.
func (e *Error) WithContext(key string, value any) *Error {
	clone := *e
	clone.Context = make(map[string]any, len(e.Context)+1)

	for k, v := range e.Context {
		clone.Context[k] = v
	}

	clone.Context[key] = value

	return &clone
}

// MergeContext returns a copy of the error with every entry of extra merged
// into its context. Existing keys are preserved.
func (e *Error) MergeContext(extra map[string]any) *Error {
	if len(extra) == 0 {
		return e
	}

	clone := *e
	clone.Context = make(map[string]any, len(e.Context)+len(extra))

	for k, v := range extra {
		clone.Context[k] = v
	}

	for k, v := range e.Context {
		clone.Context[k] = v
	}

	return &clone
}

// MarshalJSON includes the wrapped cause as a string so persisted error
// details stay self-contained.
func (e *Error) MarshalJSON() ([]byte, error) {
	type alias Error

	out := struct {
		*alias

		Cause string `json:"cause,omitempty"`
	}{alias: (*alias)(e)}

	if e.Err != nil {
		out.Cause = e.Err.Error()
	}

	return json.Marshal(out)
}

// CounterKey is the identity used by the recovery coordinator's error
// counters.
func (e *Error) CounterKey() string {
	return string(e.Category) + ":" + e.Code
}

// severityFor returns the default severity for a category.
func severityFor(category Category) Severity {
	switch category {
	case CategoryValidation:
		return SeverityLow
	case CategoryAuthentication, CategoryWorkflowExecution, CategoryDatabase:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// userMessageFor returns the fixed user-facing sentence for a category.
// These never leak internal detail.
func userMessageFor(category Category) string {
	switch category {
	case CategoryValidation:
		return "Please check your input and try again."
	case CategoryAuthentication:
		return "Authentication failed. Please check your credentials."
	case CategoryIntegration:
		return "There was an issue connecting to an external service. Please try again later."
	case CategoryWorkflowExecution:
		return "Your workflow encountered an issue during execution. We're working to resolve it."
	case CategoryDatabase:
		return "There was a temporary database issue. Please try again in a moment."
	default:
		return "An unexpected error occurred. Please try again or contact support if the issue persists."
	}
}

// recoverableFor returns whether failures of a category are retryable by
// default. Validation and authentication failures need a human, not a retry.
func recoverableFor(category Category) bool {
	switch category {
	case CategoryValidation, CategoryAuthentication:
		return false
	default:
		return true
	}
}

// New builds an Error for the given category with the category's default
// severity, user message and recoverability.
func New(category Category, code, message string) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		UserMessage: userMessageFor(category),
		Category:    category,
		Severity:    severityFor(category),
		Recoverable: recoverableFor(category),
		Timestamp:   time.Now().UTC(),
	}
}

// Wrap is New with a wrapped cause.
func Wrap(category Category, code string, err error) *Error {
	ferr := New(category, code, err.Error())
	ferr.Err = err

	return ferr
}

// NewValidation raises a validation fault for a specific field/value pair.
func NewValidation(message, field string, value any) *Error {
	ferr := New(CategoryValidation, "VALIDATION_ERROR", message)
	ferr.Context = map[string]any{"field": field, "value": value}

	return ferr
}

// NewAuthentication raises an authentication fault against a service.
func NewAuthentication(message, service string) *Error {
	ferr := New(CategoryAuthentication, "AUTHENTICATION_ERROR", message)
	ferr.Context = map[string]any{"service": service}

	return ferr
}

// NewIntegration raises an external-service integration fault.
func NewIntegration(message, service, operation string) *Error {
	ferr := New(CategoryIntegration, "INTEGRATION_ERROR", message)
	ferr.Context = map[string]any{"service": service, "operation": operation}

	return ferr
}

// NewWorkflowExecution raises a step/run failure carrying enough context to
// locate it: workflow, step and execution ids.
func NewWorkflowExecution(message, workflowID, stepID, executionID string) *Error {
	ferr := New(CategoryWorkflowExecution, "WORKFLOW_EXECUTION_ERROR", message)
	ferr.Context = map[string]any{
		"workflow_id":  workflowID,
		"step_id":      stepID,
		"execution_id": executionID,
	}

	return ferr
}

// NewDatabase raises a database operation fault.
func NewDatabase(message, operation, table string) *Error {
	ferr := New(CategoryDatabase, "DATABASE_ERROR", message)
	ferr.Context = map[string]any{"operation": operation, "table": table}

	return ferr
}

// NewNetwork raises a network-level fault.
func NewNetwork(message string) *Error {
	return New(CategoryNetwork, "NETWORK_ERROR", message)
}
