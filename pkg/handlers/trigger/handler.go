// Package trigger provides the built-in handler for trigger steps. The engine
// runs one submitted execution; trigger steps record what fired the run rather
// than waiting for anything, so the handler echoes the trigger metadata into
// the accumulated data for downstream steps.
package trigger

import (
	"context"

	"github.com/stepmill/stepmill/pkg/models"
	"github.com/stepmill/stepmill/pkg/protocol"
)

type Handler struct {
	step *models.Step
}

func NewHandler(step *models.Step) *Handler {
	return &Handler{step: step}
}

func (h *Handler) Execute(_ context.Context, req protocol.StepRequest) (*protocol.StepOutcome, error) {
	triggerType := h.step.Service
	if triggerType == "" {
		triggerType = "manual"
	}

	return &protocol.StepOutcome{
		Data: map[string]any{
			"triggered":    true,
			"trigger_type": triggerType,
			"trigger_data": h.step.Config,
		},
	}, nil
}
