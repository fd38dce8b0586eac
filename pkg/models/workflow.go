// Package models defines the core domain models for declarative step-graph workflows.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// StepKind identifies the kind of work a step performs. Dispatch of step
// handlers is keyed by kind.
type StepKind string

const (
	StepKindTrigger   StepKind = "trigger"
	StepKindAction    StepKind = "action"
	StepKindCondition StepKind = "condition"
	StepKindTransform StepKind = "transform"
)

// ErrorPolicy controls how the orchestrator reacts when a step ultimately
// fails after recovery has been exhausted.
type ErrorPolicy struct {
	// ContinueOnError lets the execution proceed past a failed step. Later
	// steps that depend on the failed step will observe a missing upstream
	// result and fail with a typed error rather than reading a hole.
	ContinueOnError bool `json:"continue_on_error"`
}

// Step is a single unit of work in a workflow. Steps reference each other by
// id through Dependencies; the dependency relation must be acyclic.
type Step struct {
	ID           string         `json:"id"            validate:"required"`
	Name         string         `json:"name"          validate:"required,min=1,max=255"`
	Kind         StepKind       `json:"kind"          validate:"required,oneof=trigger action condition transform"`
	Service      string         `json:"service,omitempty" validate:"max=100"`
	Config       map[string]any `json:"config,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty" validate:"unique"`
	ErrorPolicy  ErrorPolicy    `json:"error_policy"`
}

// Workflow is a named, validated graph of steps.
type Workflow struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"        validate:"required,min=1,max=255"`
	Description             string    `json:"description" validate:"max=1000"`
	Steps                   []*Step   `json:"steps"       validate:"required,min=1,dive"`
	Schedule                *string   `json:"schedule,omitempty"`
	Enabled                 bool      `json:"enabled"`
	EstimatedRuntimeSeconds int       `json:"estimated_runtime_seconds" validate:"gt=0"`
	CreatedAt               time.Time `json:"created_at"`
}

var validate = validator.New()

// Validate checks field-level constraints, the optional cron schedule, and the
// structural graph invariants. It returns the first violation found. A
// workflow that passes Validate is safe to hand to TopologicalOrder.
func (w *Workflow) Validate() error {
	if err := validate.Struct(w); err != nil {
		return fmt.Errorf("workflow validation failed: %w", err)
	}

	for _, step := range w.Steps {
		if strings.TrimSpace(step.Name) == "" {
			return fmt.Errorf("step %s: name cannot be blank", step.ID)
		}
	}

	if err := w.validateSchedule(); err != nil {
		return err
	}

	return ValidateGraph(w)
}

// validateSchedule accepts standard 5-field cron expressions, with an
// optional leading seconds field.
func (w *Workflow) validateSchedule() error {
	if w.Schedule == nil || strings.TrimSpace(*w.Schedule) == "" {
		return nil
	}

	expr := strings.TrimSpace(*w.Schedule)

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if len(strings.Fields(expr)) == 6 {
		parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	}

	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	return nil
}

// StepByID returns the step with the given id, if present.
func (w *Workflow) StepByID(id string) (*Step, bool) {
	for _, step := range w.Steps {
		if step.ID == id {
			return step, true
		}
	}

	return nil, false
}
