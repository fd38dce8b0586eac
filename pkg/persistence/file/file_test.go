package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepmill/stepmill/pkg/execution"
	"github.com/stepmill/stepmill/pkg/faults"
	"github.com/stepmill/stepmill/pkg/models"
	"github.com/stepmill/stepmill/pkg/persistence"
	"github.com/stepmill/stepmill/pkg/persistence/file"
)

func newStore(t *testing.T) persistence.Persistence {
	t.Helper()

	return file.NewPersistence(t.TempDir())
}

func sampleWorkflow(id string) *models.Workflow {
	return &models.Workflow{
		ID:   id,
		Name: "sample " + id,
		Steps: []*models.Step{
			{ID: "fetch", Name: "Fetch", Kind: models.StepKindAction},
		},
		Enabled:                 true,
		EstimatedRuntimeSeconds: 30,
	}
}

func TestWorkflowSaveAndGet(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	wf := sampleWorkflow("wf-1")
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))
	assert.False(t, wf.CreatedAt.IsZero(), "save stamps a missing creation time")

	loaded, err := store.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, wf.Name, loaded.Name)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, models.StepKindAction, loaded.Steps[0].Kind)
}

func TestWorkflowSaveIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	wf := sampleWorkflow("wf-1")
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	wf.Name = "renamed"
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	loaded, err := store.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", loaded.Name)

	list, err := store.WorkflowRepository().List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1, "a re-save must not create a second record")
}

func TestWorkflowGetMissingIsTyped(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	_, err := store.WorkflowRepository().GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowListSortsNewestFirst(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	older := sampleWorkflow("older")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := sampleWorkflow("newer")
	newer.CreatedAt = time.Now().UTC()

	require.NoError(t, store.WorkflowRepository().Save(ctx, older))
	require.NoError(t, store.WorkflowRepository().Save(ctx, newer))

	list, err := store.WorkflowRepository().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID)
	assert.Equal(t, "older", list[1].ID)
}

func TestWorkflowListEmptyStore(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	list, err := store.WorkflowRepository().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWorkflowDelete(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.WorkflowRepository().Save(ctx, sampleWorkflow("wf-1")))
	require.NoError(t, store.WorkflowRepository().Delete(ctx, "wf-1"))

	_, err := store.WorkflowRepository().GetByID(ctx, "wf-1")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	assert.NoError(t, store.WorkflowRepository().Delete(ctx, "wf-1"), "deleting a missing workflow is not an error")
}

func TestExecutionSaveAndGet(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	exec := execution.NewExecution("wf-1", "user-1", map[string]any{"env": "test"})
	exec.StepResults["fetch"] = execution.StepResult{
		StepID:      "fetch",
		Name:        "Fetch",
		Status:      execution.StepStatusSuccess,
		Data:        map[string]any{"rows": 3.0},
		CompletedAt: time.Now().UTC(),
	}

	require.NoError(t, store.ExecutionRepository().Save(ctx, exec))

	loaded, err := store.ExecutionRepository().GetByID(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusRunning, loaded.Status)
	assert.Equal(t, "wf-1", loaded.WorkflowID)
	require.Contains(t, loaded.StepResults, "fetch")
	assert.Equal(t, execution.StepStatusSuccess, loaded.StepResults["fetch"].Status)
}

func TestExecutionSaveIsIdempotentPerStep(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	exec := execution.NewExecution("wf-1", "user-1", nil)
	require.NoError(t, store.ExecutionRepository().Save(ctx, exec))

	// The orchestrator re-saves the whole record after every step.
	exec.StepResults["a"] = execution.StepResult{StepID: "a", Status: execution.StepStatusSuccess}
	require.NoError(t, store.ExecutionRepository().Save(ctx, exec))

	ferr := faults.NewNetwork("connection reset")
	exec.StepResults["b"] = execution.StepResult{StepID: "b", Status: execution.StepStatusFailed, Error: ferr}
	exec.Status = execution.StatusFailed
	exec.ErrorDetails = ferr
	require.NoError(t, store.ExecutionRepository().Save(ctx, exec))

	loaded, err := store.ExecutionRepository().GetByID(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusFailed, loaded.Status)
	require.NotNil(t, loaded.ErrorDetails)
	assert.Equal(t, "NETWORK_ERROR", loaded.ErrorDetails.Code)

	// The step-level fault keeps its taxonomy through the roundtrip.
	require.NotNil(t, loaded.StepResults["b"].Error)
	assert.Equal(t, faults.CategoryNetwork, loaded.StepResults["b"].Error.Category)
	assert.Equal(t, "NETWORK_ERROR", loaded.StepResults["b"].Error.Code)

	list, err := store.ExecutionRepository().ListByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestExecutionGetMissingIsTyped(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	_, err := store.ExecutionRepository().GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionListFiltersByWorkflow(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	first := execution.NewExecution("wf-1", "user-1", nil)
	first.StartedAt = time.Now().UTC().Add(-time.Hour)
	second := execution.NewExecution("wf-1", "user-1", nil)
	other := execution.NewExecution("wf-2", "user-1", nil)

	require.NoError(t, store.ExecutionRepository().Save(ctx, first))
	require.NoError(t, store.ExecutionRepository().Save(ctx, second))
	require.NoError(t, store.ExecutionRepository().Save(ctx, other))

	list, err := store.ExecutionRepository().ListByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, first.ID, list[1].ID)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
	assert.NoError(t, store.Close(context.Background()))

	missing := file.NewPersistence("/nonexistent/stepmill-test-root")
	assert.Error(t, missing.HealthCheck(context.Background()))
}
