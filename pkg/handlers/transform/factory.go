package transform

import (
	"context"

	"github.com/stepmill/stepmill/pkg/models"
	"github.com/stepmill/stepmill/pkg/protocol"
)

type HandlerFactory struct{}

func NewHandlerFactory() protocol.HandlerFactory {
	return &HandlerFactory{}
}

func (f *HandlerFactory) Create(_ context.Context, step *models.Step) (protocol.StepHandler, error) {
	return NewHandler(step.Config)
}

func (f *HandlerFactory) Kind() models.StepKind {
	return models.StepKindTransform
}

func (f *HandlerFactory) Name() string {
	return "Transform"
}

func (f *HandlerFactory) Description() string {
	return "Reshapes accumulated step data with a template expression"
}

func (f *HandlerFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Template expression producing the transformed value",
				"examples": []string{
					`{"user_id": "{{.steps.fetch_user.json.id}}", "at": "{{now}}"}`,
					"{{len .steps.list_orders.json}}",
				},
			},
		},
		"required": []string{"expression"},
	}
}
