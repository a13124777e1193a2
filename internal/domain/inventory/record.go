package inventory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/liquor-inventory/internal/infrastructure/store"
)

const AggregateType = "Inventory"

// AvailabilityState mirrors the stock quantity: OutOfStock exactly when stock is zero.
type AvailabilityState string

const (
	StateWithStock  AvailabilityState = "WITH_STOCK"
	StateOutOfStock AvailabilityState = "OUT_OF_STOCK"
)

// RecordID is the aggregate id of the ledger record for a (product, warehouse) pair
func RecordID(productID, warehouseID int64) string {
	return fmt.Sprintf("inventory-%d-%d", productID, warehouseID)
}

// Date truncates t to its calendar day, keeping the day t's location shows.
func Date(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Record is the ledger entry for one (product, warehouse) pair
type Record struct {
	ProductID      int64             `json:"product_id"`
	WarehouseID    int64             `json:"warehouse_id"`
	BestBeforeDate time.Time         `json:"best_before_date"`
	Stock          int               `json:"stock"`
	State          AvailabilityState `json:"state"`
	Deleted        bool              `json:"deleted"`
	Version        int               `json:"version"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func newRecord(productID, warehouseID int64) *Record {
	return &Record{ProductID: productID, WarehouseID: warehouseID}
}

func (r *Record) GetID() string      { return RecordID(r.ProductID, r.WarehouseID) }
func (r *Record) GetVersion() int    { return r.Version }
func (r *Record) SetVersion(v int)   { r.Version = v }
func (r *Record) exists() bool       { return r.Version > 0 && !r.Deleted }
func (r *Record) IsOutOfStock() bool { return r.State == StateOutOfStock }

// HasLot reports whether the record holds the lot with the given best-before date.
// A zero date selects whatever lot the record holds.
func (r *Record) HasLot(bestBefore time.Time) bool {
	return bestBefore.IsZero() || r.BestBeforeDate.Equal(Date(bestBefore))
}

// ApplyEvent applies a single ledger event and re-checks the record invariants
func (r *Record) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventInventoryCreated:
		var data InventoryCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		*r = Record{
			ProductID:      data.ProductID,
			WarehouseID:    data.WarehouseID,
			BestBeforeDate: Date(data.BestBeforeDate),
			Stock:          data.Quantity,
			State:          StateWithStock,
			CreatedAt:      data.CreatedAt,
			UpdatedAt:      data.CreatedAt,
		}
	case EventStockAdded:
		var data StockAdded
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		r.Stock += data.Quantity
		r.BestBeforeDate = Date(data.BestBeforeDate)
		if r.State == StateOutOfStock && r.Stock > 0 {
			r.State = StateWithStock
		}
		r.UpdatedAt = data.AddedAt
	case EventStockReduced:
		var data StockReduced
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		r.Stock -= data.Quantity
		if r.Stock == 0 {
			r.State = StateOutOfStock
		}
		r.UpdatedAt = data.ReducedAt
	case EventBestBeforeDateUpdated:
		var data BestBeforeDateUpdated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		r.BestBeforeDate = Date(data.BestBeforeDate)
		r.UpdatedAt = data.UpdatedAt
	case EventInventoryDeleted:
		var data InventoryDeleted
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		r.Deleted = true
		r.UpdatedAt = data.DeletedAt
	}
	r.Version = event.Version
	return r.checkInvariants()
}

func (r *Record) checkInvariants() error {
	if r.Stock < 0 {
		return fmt.Errorf("%w: %s has negative stock %d", ErrCorruptLedger, r.GetID(), r.Stock)
	}
	if (r.Stock == 0) != (r.State == StateOutOfStock) {
		return fmt.Errorf("%w: %s has stock %d in state %s", ErrCorruptLedger, r.GetID(), r.Stock, r.State)
	}
	return nil
}

// transitionTo is the strict state guard: moving to the state the record is
// already in is rejected.
func (r *Record) transitionTo(target AvailabilityState) error {
	if r.State == target {
		return fmt.Errorf("%w: %s is already %s", ErrInvalidStateTransition, r.GetID(), target)
	}
	r.State = target
	return nil
}

// The decide* methods work on a copy of the record and only build the event;
// the record itself changes when the stored event is applied.

func (r *Record) decideAdd(qty int, bestBefore, at time.Time) (StockAdded, error) {
	if qty <= 0 {
		return StockAdded{}, ErrInvalidQuantity
	}
	next := *r
	next.Stock += qty
	if r.State == StateOutOfStock {
		if err := next.transitionTo(StateWithStock); err != nil {
			return StockAdded{}, err
		}
	}
	return StockAdded{
		ProductID:      r.ProductID,
		WarehouseID:    r.WarehouseID,
		Quantity:       qty,
		ResultingStock: next.Stock,
		BestBeforeDate: earliest(r.BestBeforeDate, Date(bestBefore)),
		AddedAt:        at,
	}, nil
}

// decideReduce builds the reduction and, when the remaining stock falls to or
// below minimumStock, the low-stock problem carrying the post-reduction figures.
func (r *Record) decideReduce(qty, minimumStock int, at time.Time) (StockReduced, *ProblemDetected, error) {
	if qty <= 0 {
		return StockReduced{}, nil, ErrInvalidQuantity
	}
	if qty > r.Stock {
		return StockReduced{}, nil, fmt.Errorf("%w: %s holds %d, requested %d", ErrInsufficientStock, r.GetID(), r.Stock, qty)
	}

	next := *r
	next.Stock -= qty

	var problem *ProblemDetected
	if next.Stock <= minimumStock {
		problem = &ProblemDetected{
			Type:           ProblemStockLow,
			Severity:       SeverityWarning,
			ProductID:      r.ProductID,
			WarehouseID:    r.WarehouseID,
			Stock:          next.Stock,
			MinimumStock:   minimumStock,
			BestBeforeDate: r.BestBeforeDate,
			DetectedAt:     at,
		}
	}

	if next.Stock == 0 {
		if err := next.transitionTo(StateOutOfStock); err != nil {
			return StockReduced{}, nil, err
		}
	}

	return StockReduced{
		ProductID:      r.ProductID,
		WarehouseID:    r.WarehouseID,
		Quantity:       qty,
		ResultingStock: next.Stock,
		ReducedAt:      at,
	}, problem, nil
}

// DaysUntilExpiry counts calendar days from today to the best-before date.
// Negative once the lot has expired.
func (r *Record) DaysUntilExpiry(today time.Time) int {
	return int(Date(r.BestBeforeDate).Sub(Date(today)).Hours() / 24)
}

// CheckExpirationWarning classifies how close the lot is to its best-before
// date. It returns nil when the lot is more than 30 days out or already expired.
func (r *Record) CheckExpirationWarning(today time.Time) *ProblemDetected {
	days := r.DaysUntilExpiry(today)
	severity, ok := expirationSeverity(days)
	if !ok {
		return nil
	}
	return &ProblemDetected{
		Type:           ProblemExpirationWarning,
		Severity:       severity,
		ProductID:      r.ProductID,
		WarehouseID:    r.WarehouseID,
		Stock:          r.Stock,
		BestBeforeDate: r.BestBeforeDate,
		DaysToExpiry:   days,
		DetectedAt:     today,
	}
}

func expirationSeverity(days int) (Severity, bool) {
	switch {
	case days < 0:
		// Expired lots raise nothing.
		return "", false
	case days <= 3:
		return SeverityWarning, true
	case days <= 7:
		return SeverityHigh, true
	case days <= 14:
		return SeverityMedium, true
	case days <= 30:
		return SeverityLow, true
	}
	return "", false
}

func earliest(current, incoming time.Time) time.Time {
	if current.IsZero() {
		return incoming
	}
	if incoming.IsZero() || current.Before(incoming) {
		return current
	}
	return incoming
}
