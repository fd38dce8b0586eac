// Package workflow contains the orchestrator that runs one execution of a
// workflow: steps in dependency order, one at a time, with recovery, skip
// propagation and per-step persistence.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stepmill/stepmill/pkg/dispatcher"
	"github.com/stepmill/stepmill/pkg/eventbus"
	"github.com/stepmill/stepmill/pkg/events"
	"github.com/stepmill/stepmill/pkg/execution"
	"github.com/stepmill/stepmill/pkg/faults"
	"github.com/stepmill/stepmill/pkg/models"
	"github.com/stepmill/stepmill/pkg/persistence"
	"github.com/stepmill/stepmill/pkg/protocol"
	"github.com/stepmill/stepmill/pkg/recovery"
)

// Orchestrator runs executions. A single orchestrator is shared by all
// concurrent executions; each Run call owns its tracker and its accumulated
// step data, so runs never share mutable state.
type Orchestrator struct {
	dispatcher  *dispatcher.Dispatcher
	coordinator *recovery.Coordinator
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	workerID    string
}

func NewOrchestrator(
	disp *dispatcher.Dispatcher,
	coordinator *recovery.Coordinator,
	store persistence.Persistence,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	workerID string,
) *Orchestrator {
	return &Orchestrator{
		dispatcher:  disp,
		coordinator: coordinator,
		persistence: store,
		publisher:   publisher,
		logger:      logger.With("module", "orchestrator"),
		workerID:    workerID,
	}
}

// Run executes the workflow's steps in topological order, sequentially. It
// returns the terminal execution record; the error return is reserved for
// infrastructure failures (ordering, persistence), not step failures, which
// are captured in the record itself.
func (o *Orchestrator) Run(ctx context.Context, wf *models.Workflow, tracker *execution.Tracker) (*execution.Execution, error) {
	ordered, err := models.TopologicalOrder(wf)
	if err != nil {
		ferr := faults.Classify(err, nil)
		_ = tracker.Fail(ferr)

		return tracker.Execution(), fmt.Errorf("failed to order workflow %s: %w", wf.ID, err)
	}

	exec := tracker.Execution()
	logger := o.logger.With("workflow_id", wf.ID, "execution_id", exec.ID)

	logger.InfoContext(ctx, "Execution started", "steps", len(ordered))
	o.publish(ctx, exec.ID, events.ExecutionStarted{
		BaseEvent:    o.baseEvent(events.ExecutionStartedEvent, wf.ID),
		ExecutionID:  exec.ID,
		WorkflowName: wf.Name,
		TotalSteps:   len(ordered),
	})

	// Output of each finished step, keyed by step id. Failed steps that the
	// execution continued past leave a hole here on purpose.
	data := make(map[string]any, len(ordered))
	skipped := make(map[string]bool)
	dependents := transitiveDependents(wf)

	for _, step := range ordered {
		if halted, err := o.checkpoint(ctx, wf, tracker, logger); halted {
			return tracker.Execution(), err
		}

		if skipped[step.ID] {
			o.recordStep(ctx, tracker, execution.StepResult{
				StepID:      step.ID,
				Name:        step.Name,
				Status:      execution.StepStatusSkipped,
				CompletedAt: time.Now().UTC(),
			}, logger)

			continue
		}

		tracker.SetCurrentStep(step.Name)

		outcome, ferr := o.runStep(ctx, wf, step, tracker, data)
		if ferr != nil {
			o.recordStep(ctx, tracker, execution.StepResult{
				StepID:      step.ID,
				Name:        step.Name,
				Status:      execution.StepStatusFailed,
				Error:       ferr,
				CompletedAt: time.Now().UTC(),
			}, logger)

			if step.ErrorPolicy.ContinueOnError {
				logger.WarnContext(ctx, "Step failed, continuing past it",
					"step_id", step.ID, "code", ferr.Code)

				continue
			}

			// A cancel acknowledged mid-step (aborting its recovery) wins
			// over the failure.
			if tracker.CancelRequested() {
				return o.finishCancelled(ctx, wf, tracker, logger)
			}

			return o.finishFailed(ctx, wf, tracker, step.ID, ferr, logger)
		}

		data[step.ID] = outcome.Data

		o.recordStep(ctx, tracker, execution.StepResult{
			StepID:      step.ID,
			Name:        step.Name,
			Status:      execution.StepStatusSuccess,
			Data:        outcome.Data,
			CompletedAt: time.Now().UTC(),
		}, logger)

		if outcome.Condition != nil && !*outcome.Condition {
			for _, dep := range dependents[step.ID] {
				skipped[dep] = true
			}

			logger.InfoContext(ctx, "Condition false, skipping dependents",
				"step_id", step.ID, "skipped", len(dependents[step.ID]))
		}
	}

	// A cancel requested during the final step still wins over completion.
	if tracker.CancelRequested() {
		return o.finishCancelled(ctx, wf, tracker, logger)
	}

	if err := tracker.Complete(); err != nil {
		return tracker.Execution(), err
	}

	final := tracker.Execution()
	o.persist(ctx, final, logger)

	logger.InfoContext(ctx, "Execution completed",
		"steps_executed", len(final.StepResults),
		"duration_seconds", final.ExecutionTimeSeconds)
	o.publish(ctx, final.ID, events.ExecutionCompleted{
		BaseEvent:     o.baseEvent(events.ExecutionCompletedEvent, wf.ID),
		ExecutionID:   final.ID,
		StepsExecuted: len(final.StepResults),
		DurationSecs:  final.ExecutionTimeSeconds,
	})

	return final, nil
}

// runStep dispatches one step and, on failure, routes the fault through the
// recovery coordinator with a re-dispatch operation. The returned fault is
// non-nil only when recovery was exhausted.
func (o *Orchestrator) runStep(
	ctx context.Context,
	wf *models.Workflow,
	step *models.Step,
	tracker *execution.Tracker,
	data map[string]any,
) (*protocol.StepOutcome, *faults.Error) {
	exec := tracker.Execution()

	for _, dep := range step.Dependencies {
		if _, ok := data[dep]; !ok {
			ferr := faults.New(faults.CategoryWorkflowExecution, "MISSING_UPSTREAM_RESULT",
				fmt.Sprintf("step %s requires output of step %s, which did not produce one", step.ID, dep))
			ferr.Context = map[string]any{
				"workflow_id":  wf.ID,
				"step_id":      step.ID,
				"execution_id": exec.ID,
				"dependency":   dep,
			}

			o.coordinator.Handle(ctx, ferr, ferr.Context, nil)

			return nil, ferr
		}
	}

	req := protocol.StepRequest{
		Step:        step,
		WorkflowID:  wf.ID,
		ExecutionID: exec.ID,
		Data:        data,
		Context:     exec.Context,
	}

	// A cancel request must reach the handler and any pending retry backoff,
	// not just the next step boundary.
	stepCtx, cancelStep := context.WithCancel(ctx)
	defer cancelStep()

	go func() {
		select {
		case <-tracker.Done():
			cancelStep()
		case <-stepCtx.Done():
		}
	}()

	outcome, err := o.dispatcher.Dispatch(stepCtx, req)
	if err == nil {
		return outcome, nil
	}

	ferr := o.stepFault(err, wf.ID, step.ID, exec.ID)

	op := func(ctx context.Context) (any, error) {
		return o.dispatcher.Dispatch(ctx, req)
	}

	result, value := o.coordinator.Handle(stepCtx, ferr, ferr.Context, op)
	if result == recovery.ResultSuccess {
		return asOutcome(value), nil
	}

	return nil, ferr
}

// checkpoint is the cooperative cancel/pause point between steps. It returns
// halted=true when the run must not continue.
func (o *Orchestrator) checkpoint(ctx context.Context, wf *models.Workflow, tracker *execution.Tracker, logger *slog.Logger) (bool, error) {
	if tracker.CancelRequested() {
		_, err := o.finishCancelled(ctx, wf, tracker, logger)

		return true, err
	}

	if err := tracker.AwaitResume(ctx); err != nil {
		_, err := o.finishCancelled(ctx, wf, tracker, logger)

		return true, err
	}

	// A cancel may have arrived while paused.
	if tracker.CancelRequested() {
		_, err := o.finishCancelled(ctx, wf, tracker, logger)

		return true, err
	}

	return false, nil
}

func (o *Orchestrator) finishFailed(ctx context.Context, wf *models.Workflow, tracker *execution.Tracker, stepID string, ferr *faults.Error, logger *slog.Logger) (*execution.Execution, error) {
	if err := tracker.Fail(ferr); err != nil {
		return tracker.Execution(), err
	}

	final := tracker.Execution()
	o.persist(ctx, final, logger)

	logger.ErrorContext(ctx, "Execution failed",
		"step_id", stepID, "code", ferr.Code, "category", ferr.Category)
	o.publish(ctx, final.ID, events.ExecutionFailed{
		BaseEvent:    o.baseEvent(events.ExecutionFailedEvent, wf.ID),
		ExecutionID:  final.ID,
		StepID:       stepID,
		Code:         ferr.Code,
		Error:        ferr.Message,
		DurationSecs: final.ExecutionTimeSeconds,
	})

	return final, nil
}

func (o *Orchestrator) finishCancelled(ctx context.Context, wf *models.Workflow, tracker *execution.Tracker, logger *slog.Logger) (*execution.Execution, error) {
	if err := tracker.Cancel(); err != nil {
		return tracker.Execution(), err
	}

	final := tracker.Execution()
	o.persist(ctx, final, logger)

	logger.InfoContext(ctx, "Execution cancelled", "steps_executed", len(final.StepResults))
	o.publish(ctx, final.ID, events.ExecutionCancelled{
		BaseEvent:     o.baseEvent(events.ExecutionCancelledEvent, wf.ID),
		ExecutionID:   final.ID,
		StepsExecuted: len(final.StepResults),
		DurationSecs:  final.ExecutionTimeSeconds,
	})

	return final, nil
}

// recordStep stores the result in the tracker, upserts the record and
// publishes the step event. Persistence problems are logged, not fatal: the
// run's in-memory state stays authoritative.
func (o *Orchestrator) recordStep(ctx context.Context, tracker *execution.Tracker, result execution.StepResult, logger *slog.Logger) {
	tracker.RecordStepResult(result)

	exec := tracker.Execution()
	o.persist(ctx, exec, logger)

	o.publish(ctx, exec.ID, events.StepFinished{
		BaseEvent:   o.baseEvent(events.StepFinishedEvent, exec.WorkflowID),
		ExecutionID: exec.ID,
		StepID:      result.StepID,
		Status:      result.Status,
	})
}

func (o *Orchestrator) persist(ctx context.Context, exec *execution.Execution, logger *slog.Logger) {
	if o.persistence == nil {
		return
	}

	if err := o.persistence.ExecutionRepository().Save(ctx, exec); err != nil {
		logger.ErrorContext(ctx, "Failed to persist execution record", "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	if err := o.publisher.Publish(ctx, key, event); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func (o *Orchestrator) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, workflowID)
	base.WorkerID = o.workerID

	return base
}

// stepFault normalizes a step failure. Typed faults pass through with the
// execution ids merged into their context; anything else becomes a workflow
// execution fault wrapping the cause.
func (o *Orchestrator) stepFault(err error, workflowID, stepID, executionID string) *faults.Error {
	ids := map[string]any{
		"workflow_id":  workflowID,
		"step_id":      stepID,
		"execution_id": executionID,
	}

	var ferr *faults.Error
	if errors.As(err, &ferr) {
		return ferr.MergeContext(ids)
	}

	wrapped := faults.NewWorkflowExecution(err.Error(), workflowID, stepID, executionID)
	wrapped.Err = err

	return wrapped
}

// asOutcome adapts a recovery value to a step outcome. Retry strategies hand
// back the re-dispatched *StepOutcome; fallback strategies may hand back an
// arbitrary substitute value.
func asOutcome(value any) *protocol.StepOutcome {
	switch v := value.(type) {
	case *protocol.StepOutcome:
		return v
	case map[string]any:
		return &protocol.StepOutcome{Data: v}
	default:
		return &protocol.StepOutcome{Data: map[string]any{"result": value}}
	}
}

// transitiveDependents maps each step id to every step reachable from it over
// dependency edges, in the dependent direction.
func transitiveDependents(wf *models.Workflow) map[string][]string {
	direct := make(map[string][]string)
	for _, step := range wf.Steps {
		for _, dep := range step.Dependencies {
			direct[dep] = append(direct[dep], step.ID)
		}
	}

	result := make(map[string][]string, len(wf.Steps))

	for _, step := range wf.Steps {
		seen := make(map[string]bool)
		queue := append([]string(nil), direct[step.ID]...)

		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]

			if seen[id] {
				continue
			}

			seen[id] = true
			result[step.ID] = append(result[step.ID], id)
			queue = append(queue, direct[id]...)
		}
	}

	return result
}
