// Package events defines event types for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/stepmill/stepmill/pkg/execution"
)

type EventType string

// Topic carries all execution lifecycle events.
const Topic = "stepmill.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionRequestedEvent EventType = "execution.requested"
	ExecutionStartedEvent   EventType = "execution.started"
	StepFinishedEvent       EventType = "execution.step.finished"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

// ExecutionRequested asks a worker to start one execution of a workflow.
type ExecutionRequested struct {
	BaseEvent

	UserID  string         `json:"user_id,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e ExecutionRequested) GetType() EventType {
	return ExecutionRequestedEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	WorkflowName string `json:"workflow_name"`
	TotalSteps   int    `json:"total_steps"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type StepFinished struct {
	BaseEvent

	ExecutionID string               `json:"execution_id"`
	StepID      string               `json:"step_id"`
	Status      execution.StepStatus `json:"status"`
}

func (e StepFinished) GetType() EventType {
	return StepFinishedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string  `json:"execution_id"`
	StepsExecuted int     `json:"steps_executed"`
	DurationSecs  float64 `json:"duration_seconds"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID  string  `json:"execution_id"`
	StepID       string  `json:"step_id,omitempty"`
	Code         string  `json:"code"`
	Error        string  `json:"error"`
	DurationSecs float64 `json:"duration_seconds"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID   string  `json:"execution_id"`
	StepsExecuted int     `json:"steps_executed"`
	DurationSecs  float64 `json:"duration_seconds"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

type ExecutionPaused struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	PausedAtStep string `json:"paused_at_step,omitempty"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}
