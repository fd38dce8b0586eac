package transform_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepmill/stepmill/pkg/handlers/transform"
	"github.com/stepmill/stepmill/pkg/models"
	"github.com/stepmill/stepmill/pkg/protocol"
)

func request(data map[string]any) protocol.StepRequest {
	return protocol.StepRequest{
		Step:        &models.Step{ID: "reshape", Kind: models.StepKindTransform},
		WorkflowID:  "wf-1",
		ExecutionID: "exec-1",
		Data:        data,
	}
}

func TestNewHandlerRequiresExpression(t *testing.T) {
	t.Parallel()

	_, err := transform.NewHandler(map[string]any{})
	assert.Error(t, err)
}

func TestExecuteReshapesUpstreamData(t *testing.T) {
	t.Parallel()

	handler, err := transform.NewHandler(map[string]any{
		"expression": `{"user": "{{ .steps.fetch.user }}", "count": {{ .steps.fetch.count }}}`,
	})
	require.NoError(t, err)

	outcome, err := handler.Execute(context.Background(), request(map[string]any{
		"fetch": map[string]any{"user": "ada", "count": 2.0},
	}))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"user": "ada", "count": float64(2)}, outcome.Data["result"])
	assert.Nil(t, outcome.Condition)
}

func TestExecuteCoercesScalars(t *testing.T) {
	t.Parallel()

	handler, err := transform.NewHandler(map[string]any{"expression": "{{ .steps.fetch.count }}"})
	require.NoError(t, err)

	outcome, err := handler.Execute(context.Background(), request(map[string]any{
		"fetch": map[string]any{"count": 7.0},
	}))
	require.NoError(t, err)

	assert.Equal(t, float64(7), outcome.Data["result"])
}

func TestExecuteReportsTemplateErrors(t *testing.T) {
	t.Parallel()

	handler, err := transform.NewHandler(map[string]any{"expression": "{{ call .missing }}"})
	require.NoError(t, err)

	_, err = handler.Execute(context.Background(), request(nil))
	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	t.Parallel()

	factory := transform.NewHandlerFactory()
	assert.Equal(t, models.StepKindTransform, factory.Kind())
	assert.Contains(t, factory.Schema()["required"], "expression")
}
