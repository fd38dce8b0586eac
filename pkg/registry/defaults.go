// Package registry provides the built-in handler set for registry setup.
package registry

import (
	"github.com/stepmill/stepmill/pkg/handlers/condition"
	"github.com/stepmill/stepmill/pkg/handlers/httpaction"
	"github.com/stepmill/stepmill/pkg/handlers/transform"
	"github.com/stepmill/stepmill/pkg/handlers/trigger"
)

// RegisterDefaultHandlers installs the built-in handler factories for every
// step kind. Hosting applications may replace any of them afterwards.
func (r *Registry) RegisterDefaultHandlers() {
	r.Register(trigger.NewHandlerFactory())
	r.Register(httpaction.NewHandlerFactory(r.logger))
	r.Register(condition.NewHandlerFactory())
	r.Register(transform.NewHandlerFactory())
}
