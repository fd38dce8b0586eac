package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stepmill/stepmill/pkg/persistence"
)

func TestWorkflowErrorWrapping(t *testing.T) {
	t.Parallel()

	err := persistence.NewWorkflowError("GetByID", "wf-1", persistence.ErrWorkflowNotFound)

	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
	assert.Contains(t, err.Error(), "GetByID")
	assert.Contains(t, err.Error(), "wf-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))
	assert.False(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionErrorWrapping(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := persistence.NewExecutionError("Save", "exec-1", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "exec-1")
	assert.False(t, persistence.IsExecutionNotFound(err))
}

func TestNotFoundSurvivesFurtherWrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("loading execution: %w",
		persistence.NewExecutionError("GetByID", "exec-1", persistence.ErrExecutionNotFound))

	assert.True(t, persistence.IsExecutionNotFound(err))
}
