// Package persistence provides the storage abstraction for workflows and
// execution records.
package persistence

import (
	"context"

	"github.com/stepmill/stepmill/pkg/execution"
	"github.com/stepmill/stepmill/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

type WorkflowRepository interface {
	// Save creates or replaces the workflow keyed by its id.
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

type ExecutionRepository interface {
	// Save upserts the execution record keyed by its id. The orchestrator
	// calls it after every step, so repeated saves of the same id must
	// replace, never duplicate.
	Save(ctx context.Context, exec *execution.Execution) error
	GetByID(ctx context.Context, id string) (*execution.Execution, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*execution.Execution, error)
}
