package trigger

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
	return NewHandler(step), nil
}

func (f *HandlerFactory) Kind() models.StepKind {
	return models.StepKindTrigger
}

func (f *HandlerFactory) Name() string {
	return "Trigger"
}

func (f *HandlerFactory) Description() string {
	return "Records what fired the execution and exposes the trigger payload to downstream steps"
}

func (f *HandlerFactory) Schema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
	}
}
