// Package condition provides the built-in handler for condition steps. The
// configured expression is rendered as a template against the accumulated
// data, then coerced to a boolean. The orchestrator skips the step's
// transitive dependents when the result is false.
package condition

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
		return nil, fmt.Errorf("condition evaluation failed: %w", err)
	}

	result, err := toBool(value)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", h.expression, err)
	}

	return &protocol.StepOutcome{
		Data:      map[string]any{"result": result},
		Condition: &result,
	}, nil
}

// toBool coerces a rendered expression value to a boolean. Empty and nil
// values evaluate to true so an unconfigured condition never blocks a run.
func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return true, nil
	case bool:
		return v, nil
	case string:
		if v == "" {
			return true, nil
		}

		return false, fmt.Errorf("cannot convert string %q to boolean", v)
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", value)
	}
}
