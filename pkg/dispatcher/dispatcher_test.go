package dispatcher_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepmill/stepmill/pkg/dispatcher"
	"github.com/stepmill/stepmill/pkg/models"
	"github.com/stepmill/stepmill/pkg/protocol"
	"github.com/stepmill/stepmill/pkg/registry"
)

type handlerFunc func(ctx context.Context, req protocol.StepRequest) (*protocol.StepOutcome, error)

func (f handlerFunc) Execute(ctx context.Context, req protocol.StepRequest) (*protocol.StepOutcome, error) {
	return f(ctx, req)
}

type stubFactory struct {
	kind models.StepKind
	fn   handlerFunc
}

func (s *stubFactory) Create(_ context.Context, _ *models.Step) (protocol.StepHandler, error) {
	return s.fn, nil
}

func (s *stubFactory) Kind() models.StepKind  { return s.kind }
func (s *stubFactory) Name() string           { return string(s.kind) }
func (s *stubFactory) Description() string    { return "test handler" }
func (s *stubFactory) Schema() map[string]any { return nil }

func newDispatcher(fn handlerFunc) *dispatcher.Dispatcher {
	reg := registry.NewRegistry(slog.Default())
	reg.Register(&stubFactory{kind: models.StepKindAction, fn: fn})

	return dispatcher.NewDispatcher(reg, slog.Default(), nil)
}

func actionRequest() protocol.StepRequest {
	return protocol.StepRequest{
		Step:        &models.Step{ID: "call", Kind: models.StepKindAction},
		WorkflowID:  "wf-1",
		ExecutionID: "exec-1",
	}
}

func TestBudgetPerKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Minute, dispatcher.Budget(models.StepKindTrigger))
	assert.Equal(t, 10*time.Minute, dispatcher.Budget(models.StepKindAction))
	assert.Equal(t, 2*time.Minute, dispatcher.Budget(models.StepKindCondition))
	assert.Equal(t, 5*time.Minute, dispatcher.Budget(models.StepKindTransform))
	assert.Equal(t, 5*time.Minute, dispatcher.Budget(models.StepKind("unknown")))
}

func TestDispatchRunsHandler(t *testing.T) {
	t.Parallel()

	d := newDispatcher(func(_ context.Context, req protocol.StepRequest) (*protocol.StepOutcome, error) {
		return &protocol.StepOutcome{Data: map[string]any{"step": req.Step.ID}}, nil
	})

	outcome, err := d.Dispatch(context.Background(), actionRequest())
	require.NoError(t, err)
	assert.Equal(t, "call", outcome.Data["step"])
}

func TestDispatchSetsDeadline(t *testing.T) {
	t.Parallel()

	d := newDispatcher(func(ctx context.Context, _ protocol.StepRequest) (*protocol.StepOutcome, error) {
		deadline, ok := ctx.Deadline()
		assert.True(t, ok, "handlers run under the kind's budget")
		assert.LessOrEqual(t, time.Until(deadline), 10*time.Minute)

		return &protocol.StepOutcome{}, nil
	})

	_, err := d.Dispatch(context.Background(), actionRequest())
	require.NoError(t, err)
}

func TestDispatchUnregisteredKind(t *testing.T) {
	t.Parallel()

	d := dispatcher.NewDispatcher(registry.NewRegistry(slog.Default()), slog.Default(), nil)

	_, err := d.Dispatch(context.Background(), actionRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create handler")
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("handler exploded")

	d := newDispatcher(func(_ context.Context, _ protocol.StepRequest) (*protocol.StepOutcome, error) {
		return nil, boom
	})

	_, err := d.Dispatch(context.Background(), actionRequest())
	assert.ErrorIs(t, err, boom)
}

func TestDispatchMarksBudgetExhaustion(t *testing.T) {
	t.Parallel()

	d := newDispatcher(func(ctx context.Context, _ protocol.StepRequest) (*protocol.StepOutcome, error) {
		<-ctx.Done()

		return nil, ctx.Err()
	})

	// An already expired deadline makes the handler's context fire immediately.
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	time.Sleep(5 * time.Millisecond)

	_, err := d.Dispatch(ctx, actionRequest())
	assert.ErrorIs(t, err, dispatcher.ErrBudgetExceeded)
}
