package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/stepmill/stepmill/pkg/execution"
	"github.com/stepmill/stepmill/pkg/persistence"
)

// ExecutionRepository handles execution-record file operations.
type ExecutionRepository struct {
	root string
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

// Save writes the execution record keyed by its id. Repeated saves of the same
// id replace the file, which keeps the per-step persistence idempotent.
func (er *ExecutionRepository) Save(_ context.Context, exec *execution.Execution) error {
	dir := path.Join(er.root, "executions")

	if err := os.MkdirAll(dir, 0750); err != nil {
		return persistence.NewExecutionError("Save", exec.ID, fmt.Errorf("failed to create executions directory: %w", err))
	}

	data, err := json.MarshalIndent(exec, "", "  ")
	if err != nil {
		return persistence.NewExecutionError("Save", exec.ID, fmt.Errorf("failed to marshal execution: %w", err))
	}

	filePath := path.Join(dir, exec.ID+".json")
	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return persistence.NewExecutionError("Save", exec.ID, err)
	}

	return nil
}

// GetByID retrieves an execution record by its ID.
func (er *ExecutionRepository) GetByID(_ context.Context, executionID string) (*execution.Execution, error) {
	filePath := filepath.Clean(path.Join(er.root, "executions", executionID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", executionID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", executionID, err)
	}

	var exec execution.Execution
	if err := json.Unmarshal(body, &exec); err != nil {
		return nil, persistence.NewExecutionError("GetByID", executionID, fmt.Errorf("failed to unmarshal execution: %w", err))
	}

	return &exec, nil
}

// ListByWorkflow returns all execution records for a workflow, newest first.
func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*execution.Execution, error) {
	dir := path.Join(er.root, "executions")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []*execution.Execution{}, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*execution.Execution, 0)

	for _, file := range jsonFiles {
		executionID := file[:len(file)-len(".json")]

		exec, err := er.GetByID(ctx, executionID)
		if err != nil {
			return nil, err
		}

		if exec.WorkflowID == workflowID {
			executions = append(executions, exec)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	return executions, nil
}
