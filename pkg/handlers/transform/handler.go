// Package transform provides the built-in handler for transform steps. The
// configured expression is rendered as a template against the accumulated data
// and the coerced result becomes the step's output.
package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/stepmill/stepmill/pkg/protocol"
	"github.com/stepmill/stepmill/pkg/template"
)

type Handler struct {
	expression string
}

func NewHandler(config map[string]any) (*Handler, error) {
	expression, ok := config["expression"].(string)
	if !ok {
		return nil, errors.New("missing required field 'expression'")
	}

	return &Handler{expression: expression}, nil
}

func (h *Handler) Execute(_ context.Context, req protocol.StepRequest) (*protocol.StepOutcome, error) {
	value, err := template.Render(h.expression, req.TemplateData())
	if err != nil {
		return nil, fmt.Errorf("transform failed: %w", err)
	}

	return &protocol.StepOutcome{
		Data: map[string]any{"result": value},
	}, nil
}
