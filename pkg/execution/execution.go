// Package execution defines the execution record and the in-memory tracker
// that guards its state machine.
package execution

import (
	"time"

	"github.com/google/uuid"

	"github.com/stepmill/stepmill/pkg/faults"
)

// Status is the lifecycle state of one execution.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// StepStatus is the recorded outcome of one step within an execution.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// StepResult is the persisted record of one step run. Error keeps the full
// typed fault so per-step category, severity and user message survive into
// the record.
type StepResult struct {
	StepID      string         `json:"step_id"`
	Name        string         `json:"name"`
	Status      StepStatus     `json:"status"`
	Data        map[string]any `json:"data,omitempty"`
	Error       *faults.Error  `json:"error,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Execution is one run of a workflow.
type Execution struct {
	ID                   string                `json:"id"`
	WorkflowID           string                `json:"workflow_id"`
	UserID               string                `json:"user_id,omitempty"`
	Status               Status                `json:"status"`
	Context              map[string]any        `json:"context,omitempty"`
	StepResults          map[string]StepResult `json:"step_results"`
	ErrorDetails         *faults.Error         `json:"error_details,omitempty"`
	StartedAt            time.Time             `json:"started_at"`
	CompletedAt          *time.Time            `json:"completed_at,omitempty"`
	ExecutionTimeSeconds float64               `json:"execution_time_seconds"`
}

// NewExecution creates a running execution with a fresh id.
func NewExecution(workflowID, userID string, execContext map[string]any) *Execution {
	return &Execution{
		ID:          uuid.New().String(),
		WorkflowID:  workflowID,
		UserID:      userID,
		Status:      StatusRunning,
		Context:     execContext,
		StepResults: make(map[string]StepResult),
		StartedAt:   time.Now().UTC(),
	}
}
