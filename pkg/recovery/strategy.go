// Package recovery implements the taxonomy-driven failure recovery engine:
// retry, fallback and escalation strategies selected per error category, plus
// the coordinator that classifies, counts and dispatches failures to them.
package recovery

import (
	"context"

	"github.com/stepmill/stepmill/pkg/faults"
)

// Result is the outcome of a recovery attempt.
type Result string

const (
	ResultSuccess          Result = "success"
	ResultRetry            Result = "retry"
	ResultFallback         Result = "fallback"
	ResultUserIntervention Result = "user_intervention"
	ResultFailure          Result = "failure"
)

// Operation is a retryable unit of work. Strategies re-invoke it after a
// failure; it must be safe to call more than once.
type Operation func(ctx context.Context) (any, error)

// Strategy decides what happens after a classified failure. Attempt returns
// ResultSuccess together with the recovered value, ResultUserIntervention
// with an *InterventionRequest payload, or ResultFailure with a nil value.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, ferr *faults.Error, ectx map[string]any, op Operation) (Result, any)
}

// InterventionRequest is the payload surfaced to a human when a strategy
// escalates instead of recovering.
type InterventionRequest struct {
	Message string         `json:"message"`
	Error   *faults.Error  `json:"error"`
	Context map[string]any `json:"context,omitempty"`
}
