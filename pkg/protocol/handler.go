// Package protocol defines the contracts between the engine and pluggable
// step handlers.
package protocol

import (
	"context"

	"github.com/stepmill/stepmill/pkg/models"
)

// StepRequest carries everything a handler may need to execute one step.
// Data is the accumulated output of upstream steps, keyed by step id; a
// handler must treat it as read-only.
type StepRequest struct {
	Step        *models.Step
	WorkflowID  string
	ExecutionID string
	Data        map[string]any
	Context     map[string]any
}

// StepOutcome is a handler's result. Condition is set only by condition-kind
// handlers; the orchestrator skips the step's transitive dependents when it
// is false.
type StepOutcome struct {
	Data      map[string]any
	Condition *bool
}

// TemplateData exposes the request to template expressions: upstream outputs
// under .steps, the caller-supplied context under .context, and the ids under
// .execution.
func (r StepRequest) TemplateData() map[string]any {
	return map[string]any{
		"steps":   r.Data,
		"context": r.Context,
		"execution": map[string]any{
			"id":          r.ExecutionID,
			"workflow_id": r.WorkflowID,
		},
	}
}

// StepHandler executes one step. The engine does not know what a handler does
// internally; it may call external services, run templates, or anything else.
// Handlers must honor ctx cancellation and deadlines.
type StepHandler interface {
	Execute(ctx context.Context, req StepRequest) (*StepOutcome, error)
}

// HandlerFactory creates handler instances for a step kind and describes the
// configuration the kind accepts.
type HandlerFactory interface {
	// Create builds a handler for the given step. Configuration errors
	// should be reported here, before execution starts.
	Create(ctx context.Context, step *models.Step) (StepHandler, error)

	// Kind returns the step kind this factory serves.
	Kind() models.StepKind

	// Name returns a human-readable name for the handler type.
	Name() string

	// Description explains what handlers of this kind do.
	Description() string

	// Schema returns the JSON schema for the step config.
	Schema() map[string]any
}
