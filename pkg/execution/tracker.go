package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stepmill/stepmill/pkg/faults"
)

var ErrTerminal = errors.New("execution already in a terminal state")

// Snapshot is a point-in-time view of an execution's progress.
type Snapshot struct {
	ExecutionID     string
	WorkflowID      string
	Status          Status
	CompletedSteps  int
	TotalSteps      int
	CurrentStepName string
}

// Tracker owns the mutable state of one running execution. All transitions go
// through the tracker so concurrent observers always see a consistent record.
type Tracker struct {
	mu sync.Mutex

	execution       *Execution
	totalSteps      int
	currentStepName string
	cancelRequested bool
	resumeCh        chan struct{}
	done            chan struct{}
}

func NewTracker(exec *Execution, totalSteps int) *Tracker {
	return &Tracker{
		execution:  exec,
		totalSteps: totalSteps,
		done:       make(chan struct{}),
	}
}

// SetCurrentStep records the step the orchestrator is about to run.
func (t *Tracker) SetCurrentStep(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.currentStepName = name
}

// RecordStepResult stores the outcome of one step run.
func (t *Tracker) RecordStepResult(result StepResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.execution.StepResults[result.StepID] = result
}

// Snapshot returns the current progress. Completed counts every step with a
// recorded result, including skipped ones.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Snapshot{
		ExecutionID:     t.execution.ID,
		WorkflowID:      t.execution.WorkflowID,
		Status:          t.execution.Status,
		CompletedSteps:  len(t.execution.StepResults),
		TotalSteps:      t.totalSteps,
		CurrentStepName: t.currentStepName,
	}
}

// Execution returns a copy of the record, safe to persist or serialize while
// the run continues.
func (t *Tracker) Execution() *Execution {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.copyLocked()
}

func (t *Tracker) copyLocked() *Execution {
	clone := *t.execution

	clone.StepResults = make(map[string]StepResult, len(t.execution.StepResults))
	for id, result := range t.execution.StepResults {
		clone.StepResults[id] = result
	}

	if t.execution.CompletedAt != nil {
		completedAt := *t.execution.CompletedAt
		clone.CompletedAt = &completedAt
	}

	return &clone
}

// Complete transitions the execution to completed and stamps timing.
func (t *Tracker) Complete() error {
	return t.finish(StatusCompleted, nil)
}

// Fail transitions the execution to failed with the fault that ended it.
func (t *Tracker) Fail(ferr *faults.Error) error {
	return t.finish(StatusFailed, ferr)
}

// Cancel transitions the execution to cancelled.
func (t *Tracker) Cancel() error {
	return t.finish(StatusCancelled, nil)
}

func (t *Tracker) finish(status Status, ferr *faults.Error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.execution.Status.Terminal() {
		return fmt.Errorf("cannot transition %s to %s: %w", t.execution.Status, status, ErrTerminal)
	}

	now := time.Now().UTC()
	t.execution.Status = status
	t.execution.CompletedAt = &now
	t.execution.ExecutionTimeSeconds = now.Sub(t.execution.StartedAt).Seconds()
	t.execution.ErrorDetails = ferr
	t.currentStepName = ""

	if t.resumeCh != nil {
		close(t.resumeCh)
		t.resumeCh = nil
	}

	return nil
}

// RequestCancel marks the execution for cooperative cancellation. The
// orchestrator observes the flag at its next step boundary; Done fires so a
// pending retry backoff aborts instead of sleeping out.
func (t *Tracker) RequestCancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancelRequested {
		return
	}

	t.cancelRequested = true
	close(t.done)

	// A paused run must wake up to observe the request.
	if t.resumeCh != nil {
		close(t.resumeCh)
		t.resumeCh = nil
	}
}

// Done returns a channel closed when cancellation has been requested. The
// orchestrator merges it into the per-step context so in-flight handlers and
// pending backoffs see the request promptly.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

func (t *Tracker) CancelRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cancelRequested
}

// Pause asks the run to hold before its next step. Only a running execution
// can pause.
func (t *Tracker) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.execution.Status != StatusRunning {
		return fmt.Errorf("cannot pause execution in state %s", t.execution.Status)
	}

	t.execution.Status = StatusPaused
	t.resumeCh = make(chan struct{})

	return nil
}

// Resume releases a paused execution.
func (t *Tracker) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.execution.Status != StatusPaused {
		return fmt.Errorf("cannot resume execution in state %s", t.execution.Status)
	}

	t.execution.Status = StatusRunning

	if t.resumeCh != nil {
		close(t.resumeCh)
		t.resumeCh = nil
	}

	return nil
}

// AwaitResume blocks while the execution is paused. It returns immediately
// when the run is not paused, and returns ctx.Err() if the context ends
// first. Callers must re-check CancelRequested afterwards.
func (t *Tracker) AwaitResume(ctx context.Context) error {
	t.mu.Lock()
	ch := t.resumeCh
	t.mu.Unlock()

	if ch == nil {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
