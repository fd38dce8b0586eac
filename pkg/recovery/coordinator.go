package recovery

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stepmill/stepmill/pkg/faults"
)

// Observer is notified of every classified failure the coordinator handles.
type Observer func(ctx context.Context, ferr *faults.Error, ectx map[string]any)

// Coordinator is the process-wide failure handling front door. It classifies
// a raw failure, logs it by severity, counts it, notifies observers, and —
// when a retryable operation was supplied — delegates to the category's
// recovery strategy.
//
// A single Coordinator is shared by all concurrent executions; its counter
// map is the only cross-execution mutable state in the engine and is guarded
// accordingly.
type Coordinator struct {
	logger *slog.Logger

	mu         sync.Mutex
	counts     map[string]int64
	strategies map[faults.Category]Strategy
	observers  []Observer
}

// NewCoordinator builds a Coordinator with the default strategy table
// installed for every category.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.With("module", "recovery")
	}

	c := &Coordinator{
		logger:     logger,
		counts:     make(map[string]int64),
		strategies: make(map[faults.Category]Strategy),
	}

	for _, category := range faults.Categories() {
		c.strategies[category] = DefaultStrategy(category)
	}

	return c
}

// RegisterStrategy replaces the strategy for a category.
func (c *Coordinator) RegisterStrategy(category faults.Category, strategy Strategy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.strategies[category] = strategy
}

// AddObserver registers a callback invoked for every handled failure.
func (c *Coordinator) AddObserver(observer Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.observers = append(c.observers, observer)
}

// Handle classifies err and runs the standard pipeline. When op is nil there
// is nothing to recover, so Handle returns ResultFailure immediately after
// logging and counting.
func (c *Coordinator) Handle(ctx context.Context, err error, ectx map[string]any, op Operation) (Result, any) {
	ferr := faults.Classify(err, ectx)

	c.logFault(ctx, ferr)
	c.count(ferr)

	for _, observer := range c.snapshotObservers() {
		observer(ctx, ferr, ectx)
	}

	if op == nil {
		return ResultFailure, nil
	}

	strategy := c.strategyFor(ferr.Category)
	if strategy == nil {
		c.logger.WarnContext(ctx, "No recovery strategy for category", "category", ferr.Category)

		return ResultFailure, nil
	}

	result, value := strategy.Attempt(ctx, ferr, ectx, op)
	recoveriesTotal.WithLabelValues(string(ferr.Category), string(result)).Inc()

	return result, value
}

// Stats returns a copy of the per-category:code error counts.
func (c *Coordinator) Stats() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		stats[k] = v
	}

	return stats
}

// TotalErrors returns the total number of failures handled.
func (c *Coordinator) TotalErrors() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, v := range c.counts {
		total += v
	}

	return total
}

func (c *Coordinator) logFault(ctx context.Context, ferr *faults.Error) {
	attrs := []any{
		"code", ferr.Code,
		"category", ferr.Category,
		"severity", ferr.Severity,
		"context", ferr.Context,
	}

	switch ferr.Severity {
	case faults.SeverityCritical, faults.SeverityHigh:
		c.logger.ErrorContext(ctx, ferr.Message, attrs...)
	case faults.SeverityMedium:
		c.logger.WarnContext(ctx, ferr.Message, attrs...)
	default:
		c.logger.InfoContext(ctx, ferr.Message, attrs...)
	}
}

func (c *Coordinator) count(ferr *faults.Error) {
	c.mu.Lock()
	c.counts[ferr.CounterKey()]++
	c.mu.Unlock()

	errorsTotal.WithLabelValues(string(ferr.Category), ferr.Code).Inc()
}

func (c *Coordinator) strategyFor(category faults.Category) Strategy {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.strategies[category]
}

func (c *Coordinator) snapshotObservers() []Observer {
	c.mu.Lock()
	defer c.mu.Unlock()

	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)

	return observers
}
