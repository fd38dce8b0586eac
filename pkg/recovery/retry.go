package recovery

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/stepmill/stepmill/pkg/faults"
)

// RetryStrategy re-invokes the failed operation with exponential backoff.
//
// The delay before attempt n is min(BaseDelay * Coefficient^(n-1), MaxDelay),
// optionally scaled by a jitter factor in [0.5, 1.0). When the classified
// error carries a RetryAfter hint, the delay floor is raised to it.
type RetryStrategy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Coefficient float64
	Jitter      bool

	Logger *slog.Logger

	// sleep waits for the backoff delay. Overridable in tests; the default
	// uses a cancellable timer so a pending retry does not outlive its
	// context.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryStrategy returns a RetryStrategy with the conventional defaults:
// doubling backoff from base, capped at 60s, with jitter enabled.
func NewRetryStrategy(maxAttempts int, base time.Duration) *RetryStrategy {
	return &RetryStrategy{
		MaxAttempts: maxAttempts,
		BaseDelay:   base,
		MaxDelay:    60 * time.Second,
		Coefficient: 2.0,
		Jitter:      true,
	}
}

func (s *RetryStrategy) Name() string {
	return "retry"
}

// Attempt sleeps and re-invokes op until it succeeds or MaxAttempts
// consecutive failures have been observed. The context aborts a pending
// backoff promptly; an aborted backoff counts as failure without another
// invocation of op.
func (s *RetryStrategy) Attempt(ctx context.Context, ferr *faults.Error, ectx map[string]any, op Operation) (Result, any) {
	if op == nil || (ferr != nil && !ferr.Recoverable) {
		return ResultFailure, nil
	}

	logger := s.logger()

	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		delay := s.delayFor(attempt, ferr)

		logger.InfoContext(ctx, "Retrying operation",
			"delay", delay,
			"attempt", attempt,
			"max_attempts", s.MaxAttempts)

		if err := s.doSleep(ctx, delay); err != nil {
			return ResultFailure, nil
		}

		value, err := op(ctx)
		if err == nil {
			logger.InfoContext(ctx, "Retry succeeded", "attempt", attempt)

			return ResultSuccess, value
		}

		logger.WarnContext(ctx, "Retry attempt failed", "attempt", attempt, "error", err)
	}

	return ResultFailure, nil
}

// delayFor computes the backoff delay before the given 1-based attempt.
func (s *RetryStrategy) delayFor(attempt int, ferr *faults.Error) time.Duration {
	coefficient := s.Coefficient
	if coefficient <= 0 {
		coefficient = 2.0
	}

	delay := time.Duration(float64(s.BaseDelay) * math.Pow(coefficient, float64(attempt-1)))
	if s.MaxDelay > 0 && delay > s.MaxDelay {
		delay = s.MaxDelay
	}

	if s.Jitter {
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
	}

	if ferr != nil && ferr.RetryAfter > delay {
		delay = ferr.RetryAfter
	}

	return delay
}

func (s *RetryStrategy) doSleep(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}

	return sleepContext(ctx, d)
}

func (s *RetryStrategy) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}

	return slog.With("module", "recovery")
}

// sleepContext blocks for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
