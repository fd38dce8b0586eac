package recovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepmill/stepmill/pkg/faults"
)

func newTestCoordinator() *Coordinator {
	return NewCoordinator(slog.Default())
}

func TestCoordinatorCountsByCategoryAndCode(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator()

	c.Handle(context.Background(), faults.NewNetwork("down"), nil, nil)
	c.Handle(context.Background(), faults.NewNetwork("down again"), nil, nil)
	c.Handle(context.Background(), faults.NewValidation("bad", "f", nil), nil, nil)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats["network:NETWORK_ERROR"])
	assert.Equal(t, int64(1), stats["validation:VALIDATION_ERROR"])
	assert.Equal(t, int64(3), c.TotalErrors())
}

func TestCoordinatorWithoutOperationFails(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator()

	result, value := c.Handle(context.Background(), errors.New("boom"), nil, nil)

	assert.Equal(t, ResultFailure, result)
	assert.Nil(t, value)
	assert.Equal(t, int64(1), c.TotalErrors())
}

func TestCoordinatorRecoversThroughCategoryStrategy(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator()

	// Replace the network chain with a zero-delay retry for the test.
	retry := NewRetryStrategy(3, time.Millisecond)
	retry.Jitter = false
	retry.sleep = func(context.Context, time.Duration) error { return nil }
	c.RegisterStrategy(faults.CategoryNetwork, retry)

	calls := 0
	op := func(_ context.Context) (any, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("still down")
		}

		return "recovered", nil
	}

	result, value := c.Handle(context.Background(), faults.NewNetwork("down"), nil, op)

	assert.Equal(t, ResultSuccess, result)
	assert.Equal(t, "recovered", value)
	assert.Equal(t, 2, calls)
}

func TestCoordinatorValidationEscalatesToUser(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator()

	calls := 0
	op := func(_ context.Context) (any, error) {
		calls++

		return "never", nil
	}

	result, value := c.Handle(context.Background(), faults.NewValidation("bad email", "email", "x"), nil, op)

	assert.Equal(t, ResultUserIntervention, result)
	assert.Zero(t, calls, "validation faults go to a human, not a retry")

	request, ok := value.(*InterventionRequest)
	require.True(t, ok)
	assert.NotEmpty(t, request.Message)
}

func TestCoordinatorNotifiesObservers(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator()

	var observed []*faults.Error

	c.AddObserver(func(_ context.Context, ferr *faults.Error, _ map[string]any) {
		observed = append(observed, ferr)
	})

	c.Handle(context.Background(), errors.New("database is locked"), nil, nil)

	require.Len(t, observed, 1)
	assert.Equal(t, faults.CategoryDatabase, observed[0].Category)
}

func TestCoordinatorStatsReturnsCopy(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator()
	c.Handle(context.Background(), faults.NewNetwork("down"), nil, nil)

	stats := c.Stats()
	stats["network:NETWORK_ERROR"] = 99

	assert.Equal(t, int64(1), c.Stats()["network:NETWORK_ERROR"])
}

func TestCoordinatorConcurrentHandling(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator()

	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			c.Handle(context.Background(), faults.NewNetwork("down"), nil, nil)
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(50), c.TotalErrors())
}
