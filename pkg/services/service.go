package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/stepmill/stepmill/pkg/eventbus"
	"github.com/stepmill/stepmill/pkg/events"
	"github.com/stepmill/stepmill/pkg/execution"
	"github.com/stepmill/stepmill/pkg/models"
	"github.com/stepmill/stepmill/pkg/persistence"
	"github.com/stepmill/stepmill/pkg/registry"
	"github.com/stepmill/stepmill/pkg/workflow"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// ErrExecutionNotFound is returned when an execution record is not found.
var ErrExecutionNotFound = persistence.ErrExecutionNotFound

// Service coordinates workflow storage, execution startup and execution
// control. Running executions are tracked in memory by execution id so
// cancel, pause and resume can reach them.
type Service struct {
	persistence  persistence.Persistence
	registry     *registry.Registry
	orchestrator *workflow.Orchestrator
	publisher    eventbus.EventPublisher
	logger       *slog.Logger

	mu      sync.Mutex
	running map[string]*execution.Tracker
}

func NewService(
	store persistence.Persistence,
	reg *registry.Registry,
	orchestrator *workflow.Orchestrator,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		persistence:  store,
		registry:     reg,
		orchestrator: orchestrator,
		publisher:    publisher,
		logger:       logger.With("module", "services"),
		running:      make(map[string]*execution.Tracker),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Service) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateWorkflow validates the workflow, including each step's config against
// its kind's schema, and stores it. A missing id is assigned.
func (s *Service) CreateWorkflow(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}

	if err := wf.Validate(); err != nil {
		return nil, NewValidationError("CreateWorkflow", "INVALID_WORKFLOW", err.Error(), err)
	}

	for _, step := range wf.Steps {
		if err := s.registry.ValidateStepConfig(step); err != nil {
			return nil, NewValidationError("CreateWorkflow", "INVALID_STEP_CONFIG", err.Error(), err)
		}
	}

	if err := s.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	s.logger.InfoContext(ctx, "Workflow created", "workflow_id", wf.ID, "steps", len(wf.Steps))

	return wf, nil
}

// GetWorkflow returns a stored workflow by id.
func (s *Service) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	return s.persistence.WorkflowRepository().GetByID(ctx, id)
}

// ListWorkflows returns all stored workflows.
func (s *Service) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	return s.persistence.WorkflowRepository().List(ctx)
}

// DeleteWorkflow removes a stored workflow.
func (s *Service) DeleteWorkflow(ctx context.Context, id string) error {
	return s.persistence.WorkflowRepository().Delete(ctx, id)
}

// StartExecution launches one execution of the workflow in the background and
// returns its initial record. The run proceeds independently of ctx.
func (s *Service) StartExecution(ctx context.Context, workflowID, userID string, execContext map[string]any) (*execution.Execution, error) {
	wf, tracker, err := s.prepare(ctx, workflowID, userID, execContext)
	if err != nil {
		return nil, err
	}

	initial := tracker.Execution()

	go func() {
		defer s.forget(initial.ID)

		runCtx := context.WithoutCancel(ctx)
		if _, err := s.orchestrator.Run(runCtx, wf, tracker); err != nil {
			s.logger.Error("Execution run failed", "execution_id", initial.ID, "error", err)
		}
	}()

	return initial, nil
}

// ExecuteWorkflow runs one execution synchronously and returns the terminal
// record. Used by workers that own their goroutine already.
func (s *Service) ExecuteWorkflow(ctx context.Context, workflowID, userID string, execContext map[string]any) (*execution.Execution, error) {
	wf, tracker, err := s.prepare(ctx, workflowID, userID, execContext)
	if err != nil {
		return nil, err
	}

	defer s.forget(tracker.Execution().ID)

	return s.orchestrator.Run(ctx, wf, tracker)
}

func (s *Service) prepare(ctx context.Context, workflowID, userID string, execContext map[string]any) (*models.Workflow, *execution.Tracker, error) {
	wf, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, nil, err
	}

	if !wf.Enabled {
		return nil, nil, &ServiceError{Op: "StartExecution", Code: "WORKFLOW_DISABLED", Err: ErrWorkflowDisabled}
	}

	exec := execution.NewExecution(workflowID, userID, execContext)
	tracker := execution.NewTracker(exec, len(wf.Steps))

	if err := s.persistence.ExecutionRepository().Save(ctx, tracker.Execution()); err != nil {
		return nil, nil, fmt.Errorf("failed to persist execution record: %w", err)
	}

	s.mu.Lock()
	s.running[exec.ID] = tracker
	s.mu.Unlock()

	return wf, tracker, nil
}

func (s *Service) forget(executionID string) {
	s.mu.Lock()
	delete(s.running, executionID)
	s.mu.Unlock()
}

func (s *Service) tracker(executionID string) (*execution.Tracker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracker, ok := s.running[executionID]

	return tracker, ok
}

// CancelExecution requests cooperative cancellation. The orchestrator honors
// the request at its next step boundary; the step in flight is allowed to
// finish.
func (s *Service) CancelExecution(ctx context.Context, executionID string) error {
	if tracker, ok := s.tracker(executionID); ok {
		tracker.RequestCancel()
		s.logger.InfoContext(ctx, "Cancellation requested", "execution_id", executionID)

		return nil
	}

	exec, err := s.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if exec.Status.Terminal() {
		return &ServiceError{
			Op:      "CancelExecution",
			Code:    "NOT_CANCELLABLE",
			Message: fmt.Sprintf("execution %s already %s", executionID, exec.Status),
			Err:     ErrNotCancellable,
		}
	}

	return &ServiceError{Op: "CancelExecution", Code: "NOT_RUNNING", Err: ErrNotRunning}
}

// PauseExecution asks a running execution to hold before its next step.
func (s *Service) PauseExecution(ctx context.Context, executionID string) error {
	tracker, ok := s.tracker(executionID)
	if !ok {
		return &ServiceError{Op: "PauseExecution", Code: "NOT_RUNNING", Err: ErrNotRunning}
	}

	if err := tracker.Pause(); err != nil {
		return err
	}

	snapshot := tracker.Snapshot()
	s.logger.InfoContext(ctx, "Execution paused", "execution_id", executionID)
	s.publishEvent(ctx, executionID, events.ExecutionPaused{
		BaseEvent:    events.NewBaseEvent(events.ExecutionPausedEvent, snapshot.WorkflowID),
		ExecutionID:  executionID,
		PausedAtStep: snapshot.CurrentStepName,
	})

	return nil
}

// ResumeExecution releases a paused execution.
func (s *Service) ResumeExecution(ctx context.Context, executionID string) error {
	tracker, ok := s.tracker(executionID)
	if !ok {
		return &ServiceError{Op: "ResumeExecution", Code: "NOT_RUNNING", Err: ErrNotRunning}
	}

	if err := tracker.Resume(); err != nil {
		return err
	}

	snapshot := tracker.Snapshot()
	s.logger.InfoContext(ctx, "Execution resumed", "execution_id", executionID)
	s.publishEvent(ctx, executionID, events.ExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, snapshot.WorkflowID),
		ExecutionID: executionID,
	})

	return nil
}

// ExecutionSnapshot returns live progress for a running execution, falling
// back to the persisted record for finished ones.
func (s *Service) ExecutionSnapshot(ctx context.Context, executionID string) (*execution.Snapshot, error) {
	if tracker, ok := s.tracker(executionID); ok {
		snapshot := tracker.Snapshot()

		return &snapshot, nil
	}

	exec, err := s.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	// A failed or cancelled run has fewer results than the workflow has
	// steps; report the workflow's count so progress is honest.
	totalSteps := len(exec.StepResults)
	if wf, err := s.persistence.WorkflowRepository().GetByID(ctx, exec.WorkflowID); err == nil {
		totalSteps = len(wf.Steps)
	}

	return &execution.Snapshot{
		ExecutionID:    exec.ID,
		WorkflowID:     exec.WorkflowID,
		Status:         exec.Status,
		CompletedSteps: len(exec.StepResults),
		TotalSteps:     totalSteps,
	}, nil
}

// GetExecution returns a persisted execution record.
func (s *Service) GetExecution(ctx context.Context, executionID string) (*execution.Execution, error) {
	return s.persistence.ExecutionRepository().GetByID(ctx, executionID)
}

// ListExecutions returns all execution records for a workflow.
func (s *Service) ListExecutions(ctx context.Context, workflowID string) ([]*execution.Execution, error) {
	return s.persistence.ExecutionRepository().ListByWorkflow(ctx, workflowID)
}

func (s *Service) publishEvent(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
