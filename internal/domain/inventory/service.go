package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/domain/aggregate"
	"github.com/example/liquor-inventory/internal/infrastructure/store"
	"github.com/example/liquor-inventory/internal/metrics"
)

// DefaultMaxAttempts bounds how often a mutation is re-decided after losing a
// version compare-and-swap.
const DefaultMaxAttempts = 5

// Service is the stock ledger. It owns every mutation of inventory records.
type Service struct {
	eventStore  store.EventStoreInterface
	catalog     ProductCatalog
	directory   WarehouseDirectory
	publisher   ProblemPublisher
	logger      *zap.Logger
	metrics     *metrics.Metrics
	locks       *keyedMutex
	maxAttempts int
	now         func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used for event timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxAttempts sets the compare-and-swap attempt budget per mutation
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithMetrics records mutation outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(es store.EventStoreInterface, catalog ProductCatalog, directory WarehouseDirectory, publisher ProblemPublisher, logger *zap.Logger, opts ...Option) *Service {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		eventStore:  es,
		catalog:     catalog,
		directory:   directory,
		publisher:   publisher,
		logger:      logger.With(zap.String("component", "inventory")),
		locks:       newKeyedMutex(),
		maxAttempts: DefaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// decision is what a mutation wants to append, plus an optional problem to
// deliver once the append has committed.
type decision struct {
	eventType string
	data      any
	problem   *ProblemDetected
}

type decideFunc func(rec *Record, at time.Time) (decision, error)

// Create opens a new ledger record. A deleted record may be created again.
func (s *Service) Create(ctx context.Context, productID, warehouseID int64, qty int, bestBefore time.Time) (*Record, error) {
	if err := validateKey(productID, warehouseID); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if bestBefore.IsZero() {
		return nil, ErrInvalidBestBeforeDate
	}
	if err := s.resolve(ctx, "create", productID, warehouseID); err != nil {
		return nil, err
	}

	return s.mutate(ctx, "create", productID, warehouseID, func(rec *Record, at time.Time) (decision, error) {
		if rec.exists() {
			return decision{}, fmt.Errorf("%w: %s", ErrInventoryAlreadyExists, rec.GetID())
		}
		return decision{eventType: EventInventoryCreated, data: created(productID, warehouseID, qty, bestBefore, at)}, nil
	})
}

// AddStock adds a lot to the record, creating the record when it does not exist.
// The record keeps the earliest best-before date of all lots merged into it.
func (s *Service) AddStock(ctx context.Context, productID, warehouseID int64, qty int, bestBefore time.Time) (*Record, error) {
	if err := validateKey(productID, warehouseID); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := s.resolve(ctx, "add", productID, warehouseID); err != nil {
		return nil, err
	}

	return s.mutate(ctx, "add", productID, warehouseID, func(rec *Record, at time.Time) (decision, error) {
		if !rec.exists() {
			if bestBefore.IsZero() {
				return decision{}, ErrInvalidBestBeforeDate
			}
			return decision{eventType: EventInventoryCreated, data: created(productID, warehouseID, qty, bestBefore, at)}, nil
		}
		event, err := rec.decideAdd(qty, bestBefore, at)
		if err != nil {
			return decision{}, err
		}
		return decision{eventType: EventStockAdded, data: event}, nil
	})
}

// ReduceStock takes qty units out of the record. A reduction leaving the stock
// at or below the product's minimum raises one stock-low problem, delivered
// after the reduction has been stored.
func (s *Service) ReduceStock(ctx context.Context, productID, warehouseID int64, qty int, bestBefore time.Time) (*Record, error) {
	if err := validateKey(productID, warehouseID); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	minimumStock, err := s.catalog.MinimumStock(ctx, productID)
	if err != nil {
		s.metrics.RecordMutation("reduce", err)
		return nil, fmt.Errorf("failed to resolve minimum stock of product %d: %w", productID, err)
	}

	return s.mutate(ctx, "reduce", productID, warehouseID, func(rec *Record, at time.Time) (decision, error) {
		if !rec.exists() || !rec.HasLot(bestBefore) {
			return decision{}, fmt.Errorf("%w: %s", ErrInventoryNotFound, rec.GetID())
		}
		event, problem, err := rec.decideReduce(qty, minimumStock, at)
		if err != nil {
			return decision{}, err
		}
		return decision{eventType: EventStockReduced, data: event, problem: problem}, nil
	})
}

// UpdateBestBeforeDate replaces the record's best-before date. An earlier date
// than the current one is accepted.
func (s *Service) UpdateBestBeforeDate(ctx context.Context, productID, warehouseID int64, bestBefore time.Time) (*Record, error) {
	if err := validateKey(productID, warehouseID); err != nil {
		return nil, err
	}
	if bestBefore.IsZero() {
		return nil, ErrInvalidBestBeforeDate
	}

	return s.mutate(ctx, "update_best_before", productID, warehouseID, func(rec *Record, at time.Time) (decision, error) {
		if !rec.exists() {
			return decision{}, fmt.Errorf("%w: %s", ErrInventoryNotFound, rec.GetID())
		}
		return decision{eventType: EventBestBeforeDateUpdated, data: BestBeforeDateUpdated{
			ProductID:      productID,
			WarehouseID:    warehouseID,
			BestBeforeDate: Date(bestBefore),
			UpdatedAt:      at,
		}}, nil
	})
}

// Delete removes an empty record. Records still holding stock are rejected.
func (s *Service) Delete(ctx context.Context, productID, warehouseID int64, bestBefore time.Time) error {
	if err := validateKey(productID, warehouseID); err != nil {
		return err
	}

	_, err := s.mutate(ctx, "delete", productID, warehouseID, func(rec *Record, at time.Time) (decision, error) {
		if !rec.exists() || !rec.HasLot(bestBefore) {
			return decision{}, fmt.Errorf("%w: %s", ErrInventoryNotFound, rec.GetID())
		}
		if rec.Stock != 0 {
			return decision{}, fmt.Errorf("%w: %s holds %d", ErrStockNotEmpty, rec.GetID(), rec.Stock)
		}
		return decision{eventType: EventInventoryDeleted, data: InventoryDeleted{
			ProductID:   productID,
			WarehouseID: warehouseID,
			DeletedAt:   at,
		}}, nil
	})
	return err
}

// MoveStock moves qty units of a lot between two warehouses as two separate
// mutations. An unknown destination is rejected before the source is touched.
// When the destination add fails the source is restocked; if that fails as
// well the error wraps ErrCompensationFailed.
func (s *Service) MoveStock(ctx context.Context, productID, fromWarehouseID, toWarehouseID int64, qty int, bestBefore time.Time) (*Record, *Record, error) {
	if err := validateKey(productID, fromWarehouseID); err != nil {
		return nil, nil, err
	}
	if err := validateKey(productID, toWarehouseID); err != nil {
		return nil, nil, err
	}
	if fromWarehouseID == toWarehouseID {
		return nil, nil, ErrSameWarehouse
	}
	if qty <= 0 {
		return nil, nil, ErrInvalidQuantity
	}
	if _, err := s.directory.AccountID(ctx, toWarehouseID); err != nil {
		return nil, nil, fmt.Errorf("failed to resolve destination warehouse %d: %w", toWarehouseID, err)
	}

	source, err := s.ReduceStock(ctx, productID, fromWarehouseID, qty, bestBefore)
	if err != nil {
		return nil, nil, err
	}

	destination, err := s.AddStock(ctx, productID, toWarehouseID, qty, source.BestBeforeDate)
	if err == nil {
		return source, destination, nil
	}

	restored, cerr := s.AddStock(ctx, productID, fromWarehouseID, qty, source.BestBeforeDate)
	if cerr != nil {
		s.logger.Error("stock move left source reduced",
			zap.Int64("product_id", productID),
			zap.Int64("from_warehouse_id", fromWarehouseID),
			zap.Int64("to_warehouse_id", toWarehouseID),
			zap.Int("quantity", qty),
			zap.NamedError("add_error", err),
			zap.NamedError("compensation_error", cerr),
		)
		return nil, nil, errors.Join(ErrCompensationFailed, err, cerr)
	}

	s.logger.Warn("stock move rolled back",
		zap.Int64("product_id", productID),
		zap.Int64("from_warehouse_id", fromWarehouseID),
		zap.Int64("to_warehouse_id", toWarehouseID),
		zap.Int("quantity", qty),
		zap.Error(err),
	)
	return restored, nil, fmt.Errorf("failed to add stock to warehouse %d, source restored: %w", toWarehouseID, err)
}

// Get returns the record of a (product, warehouse) pair
func (s *Service) Get(ctx context.Context, productID, warehouseID int64) (*Record, error) {
	return s.GetLot(ctx, productID, warehouseID, time.Time{})
}

// GetLot returns the record only when it holds the lot with the given best-before date
func (s *Service) GetLot(ctx context.Context, productID, warehouseID int64, bestBefore time.Time) (*Record, error) {
	if err := validateKey(productID, warehouseID); err != nil {
		return nil, err
	}
	rec, err := s.load(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	if !rec.exists() || !rec.HasLot(bestBefore) {
		return nil, fmt.Errorf("%w: %s", ErrInventoryNotFound, rec.GetID())
	}
	return rec, nil
}

// resolve checks that both ids are known before a record is opened or restocked
func (s *Service) resolve(ctx context.Context, operation string, productID, warehouseID int64) (err error) {
	defer func() {
		if err != nil {
			s.metrics.RecordMutation(operation, err)
		}
	}()

	if _, err := s.catalog.MinimumStock(ctx, productID); err != nil {
		return fmt.Errorf("failed to resolve product %d: %w", productID, err)
	}
	if _, err := s.directory.AccountID(ctx, warehouseID); err != nil {
		return fmt.Errorf("failed to resolve warehouse %d: %w", warehouseID, err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, productID, warehouseID int64) (*Record, error) {
	rec, _, err := aggregate.LoadAggregate(ctx, s.eventStore, RecordID(productID, warehouseID), func() *Record {
		return newRecord(productID, warehouseID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	return rec, nil
}

// mutate runs decide against the latest record and appends its event with a
// version compare-and-swap. Writers of the same record are serialized
// in-process; writers in other processes are caught by the compare-and-swap,
// in which case the record is reloaded and the decision re-made.
func (s *Service) mutate(ctx context.Context, operation string, productID, warehouseID int64, decide decideFunc) (_ *Record, err error) {
	defer func() { s.metrics.RecordMutation(operation, err) }()

	id := RecordID(productID, warehouseID)
	unlock := s.locks.lock(id)
	defer unlock()

	for attempt := 1; ; attempt++ {
		rec, err := s.load(ctx, productID, warehouseID)
		if err != nil {
			return nil, err
		}

		d, err := decide(rec, s.now())
		if err != nil {
			return nil, err
		}

		event, err := s.eventStore.Append(ctx, id, AggregateType, d.eventType, rec.Version, d.data)
		if errors.Is(err, store.ErrVersionConflict) {
			s.metrics.RecordVersionConflict(operation)
			if attempt >= s.maxAttempts {
				return nil, fmt.Errorf("%w: %s after %d attempts", ErrConcurrentModification, id, attempt)
			}
			s.logger.Debug("version conflict, retrying",
				zap.String("aggregate_id", id),
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if errors.Is(err, store.ErrNotPublished) {
			s.logger.Warn("ledger event stored but not published",
				zap.String("aggregate_id", id),
				zap.String("event_type", d.eventType),
				zap.Error(err),
			)
		} else if err != nil {
			return nil, fmt.Errorf("failed to append %s: %w", d.eventType, err)
		}

		if err := rec.ApplyEvent(*event); err != nil {
			return nil, err
		}

		if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, rec, AggregateType); err != nil {
			s.logger.Warn("failed to create snapshot", zap.String("aggregate_id", id), zap.Error(err))
		}

		if d.problem != nil {
			s.metrics.RecordProblem(string(d.problem.Type), string(d.problem.Severity))
			s.publisher.Publish(ctx, *d.problem)
		}

		return rec, nil
	}
}

func created(productID, warehouseID int64, qty int, bestBefore, at time.Time) InventoryCreated {
	return InventoryCreated{
		ProductID:      productID,
		WarehouseID:    warehouseID,
		Quantity:       qty,
		BestBeforeDate: Date(bestBefore),
		CreatedAt:      at,
	}
}

func validateKey(productID, warehouseID int64) error {
	if productID <= 0 {
		return ErrInvalidProductID
	}
	if warehouseID <= 0 {
		return ErrInvalidWarehouseID
	}
	return nil
}
