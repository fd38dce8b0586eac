package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stepmill/stepmill/pkg/execution"
	"github.com/stepmill/stepmill/pkg/faults"
	"github.com/stepmill/stepmill/pkg/persistence"
)

// ExecutionRepository handles execution-record storage in PostgreSQL.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Save upserts the execution record keyed by id. The orchestrator saves after
// every step, so the upsert must replace rather than duplicate.
func (er *ExecutionRepository) Save(ctx context.Context, exec *execution.Execution) error {
	stepResults, err := json.Marshal(exec.StepResults)
	if err != nil {
		return persistence.NewExecutionError("Save", exec.ID, fmt.Errorf("failed to marshal step results: %w", err))
	}

	var execContext []byte
	if exec.Context != nil {
		execContext, err = json.Marshal(exec.Context)
		if err != nil {
			return persistence.NewExecutionError("Save", exec.ID, fmt.Errorf("failed to marshal context: %w", err))
		}
	}

	var errorDetails []byte
	if exec.ErrorDetails != nil {
		errorDetails, err = json.Marshal(exec.ErrorDetails)
		if err != nil {
			return persistence.NewExecutionError("Save", exec.ID, fmt.Errorf("failed to marshal error details: %w", err))
		}
	}

	query := `
		INSERT INTO executions (id, workflow_id, user_id, status, context, step_results, error_details, started_at, completed_at, execution_time_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			step_results = EXCLUDED.step_results,
			error_details = EXCLUDED.error_details,
			completed_at = EXCLUDED.completed_at,
			execution_time_seconds = EXCLUDED.execution_time_seconds
	`

	_, err = er.db.ExecContext(ctx, query,
		exec.ID,
		exec.WorkflowID,
		exec.UserID,
		exec.Status,
		execContext,
		stepResults,
		errorDetails,
		exec.StartedAt,
		exec.CompletedAt,
		exec.ExecutionTimeSeconds,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", exec.ID, err)
	}

	return nil
}

// GetByID returns an execution record by its id.
func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*execution.Execution, error) {
	query := `
		SELECT id, workflow_id, user_id, status, context, step_results, error_details, started_at, completed_at, execution_time_seconds
		FROM executions
		WHERE id = $1
	`

	exec, err := scanExecution(er.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return exec, nil
}

// ListByWorkflow returns all execution records for a workflow, newest first.
func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*execution.Execution, error) {
	query := `
		SELECT id, workflow_id, user_id, status, context, step_results, error_details, started_at, completed_at, execution_time_seconds
		FROM executions
		WHERE workflow_id = $1
		ORDER BY started_at DESC
	`

	rows, err := er.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	executions := make([]*execution.Execution, 0)

	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}

	return executions, nil
}

func scanExecution(row rowScanner) (*execution.Execution, error) {
	var (
		exec         execution.Execution
		execContext  []byte
		stepResults  []byte
		errorDetails []byte
	)

	err := row.Scan(
		&exec.ID,
		&exec.WorkflowID,
		&exec.UserID,
		&exec.Status,
		&execContext,
		&stepResults,
		&errorDetails,
		&exec.StartedAt,
		&exec.CompletedAt,
		&exec.ExecutionTimeSeconds,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stepResults, &exec.StepResults); err != nil {
		return nil, fmt.Errorf("failed to unmarshal step results: %w", err)
	}

	if execContext != nil {
		if err := json.Unmarshal(execContext, &exec.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context: %w", err)
		}
	}

	if errorDetails != nil {
		exec.ErrorDetails = &faults.Error{}
		if err := json.Unmarshal(errorDetails, exec.ErrorDetails); err != nil {
			return nil, fmt.Errorf("failed to unmarshal error details: %w", err)
		}
	}

	return &exec, nil
}
