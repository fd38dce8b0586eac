package trigger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepmill/stepmill/pkg/handlers/trigger"
	"github.com/stepmill/stepmill/pkg/models"
	"github.com/stepmill/stepmill/pkg/protocol"
)

func TestExecuteDefaultsToManual(t *testing.T) {
	t.Parallel()

	step := &models.Step{ID: "start", Kind: models.StepKindTrigger}
	handler := trigger.NewHandler(step)

	outcome, err := handler.Execute(context.Background(), protocol.StepRequest{Step: step})
	require.NoError(t, err)

	assert.Equal(t, true, outcome.Data["triggered"])
	assert.Equal(t, "manual", outcome.Data["trigger_type"])
}

func TestExecuteEchoesServiceAndConfig(t *testing.T) {
	t.Parallel()

	step := &models.Step{
		ID:      "start",
		Kind:    models.StepKindTrigger,
		Service: "schedule",
		Config:  map[string]any{"cron": "0 2 * * *"},
	}

	outcome, err := trigger.NewHandler(step).Execute(context.Background(), protocol.StepRequest{Step: step})
	require.NoError(t, err)

	assert.Equal(t, "schedule", outcome.Data["trigger_type"])
	assert.Equal(t, map[string]any{"cron": "0 2 * * *"}, outcome.Data["trigger_data"])
}

func TestFactory(t *testing.T) {
	t.Parallel()

	factory := trigger.NewHandlerFactory()
	assert.Equal(t, models.StepKindTrigger, factory.Kind())

	handler, err := factory.Create(context.Background(), &models.Step{ID: "start"})
	require.NoError(t, err)
	assert.NotNil(t, handler)
}
