package recovery

import (
	"context"
	"log/slog"

	"github.com/stepmill/stepmill/pkg/faults"
)

// CompositeStrategy chains sub-strategies in order. Each sub-strategy bounds
// its own retries internally; Success or UserIntervention short-circuits the
// chain, anything else advances to the next strategy. Exhausting the chain
// yields Failure.
type CompositeStrategy struct {
	ChainName  string
	Strategies []Strategy

	Logger *slog.Logger
}

func (s *CompositeStrategy) Name() string {
	if s.ChainName != "" {
		return s.ChainName
	}

	return "composite"
}

// Add appends a sub-strategy to the chain.
func (s *CompositeStrategy) Add(strategy Strategy) {
	s.Strategies = append(s.Strategies, strategy)
}

func (s *CompositeStrategy) Attempt(ctx context.Context, ferr *faults.Error, ectx map[string]any, op Operation) (Result, any) {
	logger := s.Logger
	if logger == nil {
		logger = slog.With("module", "recovery")
	}

	for _, sub := range s.Strategies {
		logger.InfoContext(ctx, "Trying recovery strategy", "strategy", sub.Name(), "chain", s.Name())

		result, value := sub.Attempt(ctx, ferr, ectx, op)
		if result == ResultSuccess || result == ResultUserIntervention {
			return result, value
		}
	}

	return ResultFailure, nil
}
