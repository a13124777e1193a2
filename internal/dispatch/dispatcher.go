package dispatch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/domain/inventory"
	"github.com/example/liquor-inventory/internal/metrics"
)

// Handler reacts to a detected problem
type Handler interface {
	Name() string
	Handle(ctx context.Context, problem inventory.ProblemDetected) error
}

// Dispatcher delivers problems synchronously to every registered handler, in
// registration order. It implements inventory.ProblemPublisher: handler
// failures are logged and counted but never returned, because the mutation
// that raised the problem has already committed.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewDispatcher(logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		logger:  logger.With(zap.String("component", "dispatcher")),
		metrics: m,
	}
}

// Register adds a handler
func (d *Dispatcher) Register(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// Publish hands the problem to each handler in turn
func (d *Dispatcher) Publish(ctx context.Context, problem inventory.ProblemDetected) {
	d.mu.RLock()
	handlers := append([]Handler(nil), d.handlers...)
	d.mu.RUnlock()

	for _, h := range handlers {
		err := d.deliver(ctx, h, problem)
		d.metrics.RecordDispatch(h.Name(), err == nil)
		if err != nil {
			d.logger.Error("problem dispatch failed",
				zap.String("handler", h.Name()),
				zap.String("type", string(problem.Type)),
				zap.String("severity", string(problem.Severity)),
				zap.Int64("product_id", problem.ProductID),
				zap.Int64("warehouse_id", problem.WarehouseID),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, h Handler, problem inventory.ProblemDetected) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, problem)
}
