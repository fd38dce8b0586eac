package models_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepmill/stepmill/pkg/models"
)

func step(id string, deps ...string) *models.Step {
	return &models.Step{
		ID:           id,
		Name:         "Step " + id,
		Kind:         models.StepKindAction,
		Dependencies: deps,
	}
}

func workflowWith(steps ...*models.Step) *models.Workflow {
	return &models.Workflow{
		ID:                      "wf-1",
		Name:                    "test workflow",
		Steps:                   steps,
		Enabled:                 true,
		EstimatedRuntimeSeconds: 60,
	}
}

func TestValidateGraph(t *testing.T) {
	t.Parallel()

	t.Run("accepts a diamond", func(t *testing.T) {
		t.Parallel()

		wf := workflowWith(
			step("a"),
			step("b", "a"),
			step("c", "a"),
			step("d", "b", "c"),
		)

		require.NoError(t, models.ValidateGraph(wf))
	})

	t.Run("rejects empty workflows", func(t *testing.T) {
		t.Parallel()

		err := models.ValidateGraph(workflowWith())
		assert.ErrorIs(t, err, models.ErrNoSteps)
	})

	t.Run("rejects duplicate step ids", func(t *testing.T) {
		t.Parallel()

		err := models.ValidateGraph(workflowWith(step("a"), step("a")))
		require.ErrorIs(t, err, models.ErrDuplicateStepID)

		var gerr *models.GraphError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, "a", gerr.StepID)
	})

	t.Run("rejects dangling dependencies naming step and target", func(t *testing.T) {
		t.Parallel()

		err := models.ValidateGraph(workflowWith(step("a"), step("b", "ghost")))
		require.ErrorIs(t, err, models.ErrDanglingDependency)

		var gerr *models.GraphError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, "b", gerr.StepID)
		assert.Equal(t, "ghost", gerr.DependencyID)
	})

	t.Run("rejects a two step cycle", func(t *testing.T) {
		t.Parallel()

		err := models.ValidateGraph(workflowWith(step("a", "b"), step("b", "a")))
		assert.ErrorIs(t, err, models.ErrCircularDependency)
	})

	t.Run("rejects a self dependency", func(t *testing.T) {
		t.Parallel()

		err := models.ValidateGraph(workflowWith(step("a", "a")))
		assert.ErrorIs(t, err, models.ErrCircularDependency)
	})

	t.Run("rejects a long cycle behind a valid prefix", func(t *testing.T) {
		t.Parallel()

		wf := workflowWith(
			step("start"),
			step("a", "start", "c"),
			step("b", "a"),
			step("c", "b"),
		)

		err := models.ValidateGraph(wf)
		assert.ErrorIs(t, err, models.ErrCircularDependency)
	})

	t.Run("handles deep chains without recursion", func(t *testing.T) {
		t.Parallel()

		steps := []*models.Step{step(id(0))}
		for i := 1; i < 5000; i++ {
			steps = append(steps, step(id(i), id(i-1)))
		}

		require.NoError(t, models.ValidateGraph(workflowWith(steps...)))
	})
}

func id(i int) string {
	return "s" + string(rune('0'+i/1000)) + string(rune('0'+i/100%10)) + string(rune('0'+i/10%10)) + string(rune('0'+i%10))
}

func TestTopologicalOrder(t *testing.T) {
	t.Parallel()

	t.Run("orders the diamond deterministically", func(t *testing.T) {
		t.Parallel()

		wf := workflowWith(
			step("a"),
			step("b", "a"),
			step("c", "a"),
			step("d", "b", "c"),
		)

		ordered, err := models.TopologicalOrder(wf)
		require.NoError(t, err)

		ids := make([]string, 0, len(ordered))
		for _, s := range ordered {
			ids = append(ids, s.ID)
		}

		assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	})

	t.Run("same workflow yields identical sequences", func(t *testing.T) {
		t.Parallel()

		wf := workflowWith(
			step("z"),
			step("m", "z"),
			step("a", "z"),
			step("k", "m", "a"),
		)

		first, err := models.TopologicalOrder(wf)
		require.NoError(t, err)

		for range 20 {
			again, err := models.TopologicalOrder(wf)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})

	t.Run("ties break by declaration order", func(t *testing.T) {
		t.Parallel()

		wf := workflowWith(step("b"), step("a"))

		ordered, err := models.TopologicalOrder(wf)
		require.NoError(t, err)
		assert.Equal(t, "b", ordered[0].ID)
		assert.Equal(t, "a", ordered[1].ID)
	})

	t.Run("propagates validation failures", func(t *testing.T) {
		t.Parallel()

		_, err := models.TopologicalOrder(workflowWith(step("a", "b"), step("b", "a")))
		assert.True(t, errors.Is(err, models.ErrCircularDependency))
	})
}
