package recovery

import (
	"context"
	"log/slog"

	"github.com/stepmill/stepmill/pkg/faults"
)

// UserInterventionStrategy escalates the failure to a human instead of
// attempting recovery. It never invokes the retryable operation and fires
// even for non-recoverable errors, since those are exactly the ones that need
// a person.
type UserInterventionStrategy struct {
	// Message overrides the error's user message in the request payload.
	Message string

	// Callback, when set, is notified before the request is returned.
	Callback func(ctx context.Context, req *InterventionRequest)

	Logger *slog.Logger
}

func (s *UserInterventionStrategy) Name() string {
	return "user_intervention"
}

func (s *UserInterventionStrategy) Attempt(ctx context.Context, ferr *faults.Error, ectx map[string]any, _ Operation) (Result, any) {
	message := s.Message
	if message == "" && ferr != nil {
		message = ferr.UserMessage
	}

	request := &InterventionRequest{
		Message: message,
		Error:   ferr,
		Context: ectx,
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.With("module", "recovery")
	}

	logger.InfoContext(ctx, "Requesting user intervention", "message", message)

	if s.Callback != nil {
		s.Callback(ctx, request)
	}

	return ResultUserIntervention, request
}
