package recovery

import (
	"context"
	"log/slog"

	"github.com/stepmill/stepmill/pkg/faults"
)

// FallbackStrategy substitutes the failed operation's result: either by
// invoking an alternative operation or by returning a static value. It makes
// a single attempt.
type FallbackStrategy struct {
	// Func is the substitute operation, tried first when set.
	Func Operation

	// Value is the static substitute, used when Func is unset.
	Value any

	Logger *slog.Logger
}

func (s *FallbackStrategy) Name() string {
	return "fallback"
}

func (s *FallbackStrategy) Attempt(ctx context.Context, ferr *faults.Error, ectx map[string]any, _ Operation) (Result, any) {
	if ferr != nil && !ferr.Recoverable {
		return ResultFailure, nil
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.With("module", "recovery")
	}

	if s.Func != nil {
		value, err := s.Func(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Fallback operation failed", "error", err)

			return ResultFailure, nil
		}

		logger.InfoContext(ctx, "Recovered via fallback operation")

		return ResultSuccess, value
	}

	if s.Value != nil {
		logger.InfoContext(ctx, "Recovered via fallback value")

		return ResultSuccess, s.Value
	}

	logger.WarnContext(ctx, "No fallback operation or value configured")

	return ResultFailure, nil
}
