// Package registry provides step handler factory registration and config
// schema validation.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stepmill/stepmill/pkg/models"
	"github.com/stepmill/stepmill/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// Registry maps step kinds to handler factories. The hosting application
// registers factories; the engine only looks them up.
type Registry struct {
	logger    *slog.Logger
	factories map[models.StepKind]protocol.HandlerFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[models.StepKind]protocol.HandlerFactory),
	}
}

// Register installs a factory for its kind, replacing any previous one.
func (r *Registry) Register(factory protocol.HandlerFactory) {
	r.factories[factory.Kind()] = factory
}

// Factory returns the factory registered for a kind.
func (r *Registry) Factory(kind models.StepKind) (protocol.HandlerFactory, bool) {
	factory, ok := r.factories[kind]

	return factory, ok
}

// CreateHandler builds a handler for the step via its kind's factory.
func (r *Registry) CreateHandler(ctx context.Context, step *models.Step) (protocol.StepHandler, error) {
	factory, ok := r.factories[step.Kind]
	if !ok {
		return nil, fmt.Errorf("step kind %q not registered", step.Kind)
	}

	return factory.Create(ctx, step)
}

// ValidateStepConfig checks a step's config against the JSON schema published
// by its kind's factory. Steps of unregistered kinds are rejected so invalid
// workflows are caught at submission, not mid-run.
func (r *Registry) ValidateStepConfig(step *models.Step) error {
	factory, ok := r.factories[step.Kind]
	if !ok {
		return fmt.Errorf("step %s: kind %q not registered", step.ID, step.Kind)
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	config := step.Config
	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("step %s: schema validation failed: %w", step.ID, err)
	}

	if !result.Valid() {
		first := result.Errors()[0]

		return fmt.Errorf("step %s: invalid config: %s", step.ID, first.String())
	}

	return nil
}
