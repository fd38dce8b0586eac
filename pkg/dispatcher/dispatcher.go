// Package dispatcher routes single steps to their registered handlers. It
// enforces a per-kind execution budget and emits a trace span per step, but
// knows nothing about ordering or recovery.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/stepmill/stepmill/pkg/models"
	"github.com/stepmill/stepmill/pkg/otelhelper"
	"github.com/stepmill/stepmill/pkg/protocol"
	"github.com/stepmill/stepmill/pkg/registry"
)

// Execution budgets per step kind. A handler that has not returned when the
// budget elapses sees its context cancelled and the step fails with
// ErrBudgetExceeded.
var kindBudgets = map[models.StepKind]time.Duration{
	models.StepKindTrigger:   5 * time.Minute,
	models.StepKindAction:    10 * time.Minute,
	models.StepKindCondition: 2 * time.Minute,
	models.StepKindTransform: 5 * time.Minute,
}

var ErrBudgetExceeded = errors.New("step execution budget exceeded")

type Dispatcher struct {
	registry *registry.Registry
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewDispatcher(reg *registry.Registry, logger *slog.Logger, tracer trace.Tracer) *Dispatcher {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("dispatcher")
	}

	return &Dispatcher{
		registry: reg,
		logger:   logger.With("module", "dispatcher"),
		tracer:   tracer,
	}
}

// Budget returns the execution budget for a step kind.
func Budget(kind models.StepKind) time.Duration {
	if budget, ok := kindBudgets[kind]; ok {
		return budget
	}

	return 5 * time.Minute
}

// Dispatch creates the step's handler and runs it under the kind's budget.
func (d *Dispatcher) Dispatch(ctx context.Context, req protocol.StepRequest) (*protocol.StepOutcome, error) {
	step := req.Step

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.dispatch",
		attribute.String(otelhelper.WorkflowIDKey, req.WorkflowID),
		attribute.String(otelhelper.ExecutionIDKey, req.ExecutionID),
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.StepKindKey, string(step.Kind)),
	)
	defer span.End()

	handler, err := d.registry.CreateHandler(ctx, step)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to create handler for step %s: %w", step.ID, err)
	}

	budget := Budget(step.Kind)
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	started := time.Now()

	d.logger.DebugContext(ctx, "Dispatching step",
		"step_id", step.ID,
		"step_kind", step.Kind,
		"budget", budget,
	)

	outcome, err := handler.Execute(ctx, req)

	elapsed := time.Since(started)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("step %s: %w after %s", step.ID, ErrBudgetExceeded, elapsed.Round(time.Millisecond))
		}

		otelhelper.SetError(span, err)

		return nil, err
	}

	d.logger.DebugContext(ctx, "Step dispatched",
		"step_id", step.ID,
		"duration", elapsed,
	)

	return outcome, nil
}
