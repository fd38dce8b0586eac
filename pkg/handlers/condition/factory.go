package condition

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
	return models.StepKindCondition
}

func (f *HandlerFactory) Name() string {
	return "Condition"
}

func (f *HandlerFactory) Description() string {
	return "Evaluates a boolean template expression; dependents are skipped when it is false"
}

func (f *HandlerFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Template expression that must render to a boolean",
				"examples": []string{
					"{{gt (len .steps.fetch.items) 0}}",
					"{{.context.dry_run}}",
				},
			},
		},
		"required": []string{"expression"},
	}
}
