package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/trace"

	"github.com/stepmill/stepmill/pkg/dispatcher"
	"github.com/stepmill/stepmill/pkg/eventbus"
	"github.com/stepmill/stepmill/pkg/events"
	"github.com/stepmill/stepmill/pkg/persistence"
	"github.com/stepmill/stepmill/pkg/recovery"
	"github.com/stepmill/stepmill/pkg/registry"
	"github.com/stepmill/stepmill/pkg/services"
	"github.com/stepmill/stepmill/pkg/workflow"
)

// Worker consumes execution requests from the event bus and runs each one to
// completion through the services layer.
type Worker struct {
	id       string
	logger   *slog.Logger
	eventBus eventbus.EventBus
	service  *services.Service
}

func NewWorker(
	id string,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Worker {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultHandlers()

	coordinator := recovery.NewCoordinator(logger)
	disp := dispatcher.NewDispatcher(reg, logger, tracer)
	orchestrator := workflow.NewOrchestrator(disp, coordinator, store, eventBus, logger, id)

	return &Worker{
		id:       id,
		logger:   logger,
		eventBus: eventBus,
		service:  services.NewService(store, reg, orchestrator, eventBus, logger),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	err := w.eventBus.Handle(events.ExecutionRequestedEvent, w.handleExecutionRequested)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *Worker) handleExecutionRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.ExecutionRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ExecutionRequested")

		return nil
	}

	logger := w.logger.With(
		"workflow_id", requested.WorkflowID,
		"event_id", requested.ID,
	)
	logger.InfoContext(ctx, "Processing execution request")

	final, err := w.service.ExecuteWorkflow(ctx, requested.WorkflowID, requested.UserID, requested.Context)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to execute workflow", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Execution finished",
		"execution_id", final.ID,
		"status", final.Status,
		"duration_seconds", final.ExecutionTimeSeconds)

	return nil
}
