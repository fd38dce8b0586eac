package httpaction

import (
	"context"
	"log/slog"

	"github.com/stepmill/stepmill/pkg/models"
	"github.com/stepmill/stepmill/pkg/protocol"
)

type HandlerFactory struct {
	logger *slog.Logger
}

func NewHandlerFactory(logger *slog.Logger) protocol.HandlerFactory {
	return &HandlerFactory{logger: logger}
}

func (f *HandlerFactory) Create(_ context.Context, step *models.Step) (protocol.StepHandler, error) {
	return NewHandler(step.Config, f.logger)
}

func (f *HandlerFactory) Kind() models.StepKind {
	return models.StepKindAction
}

func (f *HandlerFactory) Name() string {
	return "HTTP Action"
}

func (f *HandlerFactory) Description() string {
	return "Calls an HTTP endpoint with templated URL, headers and body"
}

func (f *HandlerFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Request URL, may contain template expressions",
			},
			"method": map[string]any{
				"type": "string",
				"enum": []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
			},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"body": map[string]any{
				"type": "string",
			},
			"timeout": map[string]any{
				"type":    "number",
				"minimum": 1,
				"maximum": 300,
			},
		},
		"required": []string{"url"},
	}
}
