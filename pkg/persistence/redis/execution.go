package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/stepmill/stepmill/pkg/execution"
	"github.com/stepmill/stepmill/pkg/persistence"
)

// ExecutionRepository handles execution-record storage in Redis.
type ExecutionRepository struct {
	client *goredis.Client
}

func NewExecutionRepository(client *goredis.Client) *ExecutionRepository {
	return &ExecutionRepository{client: client}
}

// Save stores the record JSON under its key and indexes the id in the
// workflow's execution set. Both operations are idempotent per id.
func (er *ExecutionRepository) Save(ctx context.Context, exec *execution.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return persistence.NewExecutionError("Save", exec.ID, fmt.Errorf("failed to marshal execution: %w", err))
	}

	pipe := er.client.TxPipeline()
	pipe.Set(ctx, executionKeyPrefix+exec.ID, data, 0)
	pipe.SAdd(ctx, indexKey(exec.WorkflowID), exec.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewExecutionError("Save", exec.ID, err)
	}

	return nil
}

// GetByID returns an execution record by its id.
func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*execution.Execution, error) {
	data, err := er.client.Get(ctx, executionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	var exec execution.Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, fmt.Errorf("failed to unmarshal execution: %w", err))
	}

	return &exec, nil
}

// ListByWorkflow returns all execution records for a workflow, newest first.
func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*execution.Execution, error) {
	ids, err := er.client.SMembers(ctx, indexKey(workflowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read execution index for workflow %s: %w", workflowID, err)
	}

	executions := make([]*execution.Execution, 0, len(ids))

	for _, id := range ids {
		exec, err := er.GetByID(ctx, id)
		if err != nil {
			if persistence.IsExecutionNotFound(err) {
				continue
			}

			return nil, err
		}

		executions = append(executions, exec)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	return executions, nil
}

func indexKey(workflowID string) string {
	return workflowKeyPrefix + workflowID + executionIndexInfix
}
