package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/domain/inventory"
	"github.com/example/liquor-inventory/internal/infrastructure/store"
	"github.com/example/liquor-inventory/internal/readmodel"
)

// Projector folds ledger events into inventory read models.
// Events at or below the read model's version are skipped, so replays are harmless.
type Projector struct {
	readStore store.ReadStoreInterface
	logger    *zap.Logger
}

func NewProjector(readStore store.ReadStoreInterface, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{
		readStore: readStore,
		logger:    logger.With(zap.String("component", "projector")),
	}
}

// HandleEvent is a kafka.MessageHandler for the ledger event topic
func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return p.Project(ctx, event)
}

// Publish lets the projector sit behind an event store as its publisher
func (p *Projector) Publish(ctx context.Context, key string, event any) error {
	switch e := event.(type) {
	case store.Event:
		return p.Project(ctx, e)
	case *store.Event:
		return p.Project(ctx, *e)
	}
	return fmt.Errorf("projector: unsupported event %T", event)
}

// Project applies a single stored event
func (p *Projector) Project(ctx context.Context, event store.Event) error {
	if event.AggregateType != inventory.AggregateType {
		return nil
	}

	p.logger.Debug("projecting event",
		zap.String("event_type", event.EventType),
		zap.String("aggregate_id", event.AggregateID),
		zap.Int("version", event.Version),
	)

	switch event.EventType {
	case inventory.EventInventoryCreated:
		var e inventory.InventoryCreated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", event.EventType, err)
		}
		return p.create(event, e)

	case inventory.EventStockAdded:
		var e inventory.StockAdded
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", event.EventType, err)
		}
		return p.update(event, func(inv *readmodel.InventoryReadModel) {
			inv.Stock = e.ResultingStock
			inv.BestBeforeDate = e.BestBeforeDate
			inv.State = stateFor(e.ResultingStock)
			inv.UpdatedAt = e.AddedAt
		})

	case inventory.EventStockReduced:
		var e inventory.StockReduced
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", event.EventType, err)
		}
		return p.update(event, func(inv *readmodel.InventoryReadModel) {
			inv.Stock = e.ResultingStock
			inv.State = stateFor(e.ResultingStock)
			inv.UpdatedAt = e.ReducedAt
		})

	case inventory.EventBestBeforeDateUpdated:
		var e inventory.BestBeforeDateUpdated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", event.EventType, err)
		}
		return p.update(event, func(inv *readmodel.InventoryReadModel) {
			inv.BestBeforeDate = e.BestBeforeDate
			inv.UpdatedAt = e.UpdatedAt
		})

	case inventory.EventInventoryDeleted:
		var e inventory.InventoryDeleted
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", event.EventType, err)
		}
		return p.tombstone(event, e)
	}

	p.logger.Warn("unknown inventory event", zap.String("event_type", event.EventType))
	return nil
}

func (p *Projector) create(event store.Event, e inventory.InventoryCreated) error {
	current, found, err := p.current(event.AggregateID)
	if err != nil {
		return err
	}
	if found && current.Version >= event.Version {
		return nil
	}
	err = p.readStore.Set(store.CollectionInventory, event.AggregateID, &readmodel.InventoryReadModel{
		ID:             event.AggregateID,
		ProductID:      e.ProductID,
		WarehouseID:    e.WarehouseID,
		Stock:          e.Quantity,
		State:          stateFor(e.Quantity),
		BestBeforeDate: e.BestBeforeDate,
		Version:        event.Version,
		UpdatedAt:      e.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to set read model %s: %w", event.AggregateID, err)
	}
	return nil
}

// tombstone marks the read model deleted instead of removing it
func (p *Projector) tombstone(event store.Event, e inventory.InventoryDeleted) error {
	current, found, err := p.current(event.AggregateID)
	if err != nil {
		return err
	}
	if found && current.Version >= event.Version {
		return nil
	}
	inv := readmodel.InventoryReadModel{
		ID:          event.AggregateID,
		ProductID:   e.ProductID,
		WarehouseID: e.WarehouseID,
	}
	if found {
		inv = *current
	}
	inv.Stock = 0
	inv.State = stateFor(0)
	inv.Deleted = true
	inv.Version = event.Version
	inv.UpdatedAt = e.DeletedAt
	if err := p.readStore.Set(store.CollectionInventory, event.AggregateID, &inv); err != nil {
		return fmt.Errorf("failed to tombstone read model %s: %w", event.AggregateID, err)
	}
	return nil
}

func (p *Projector) update(event store.Event, apply func(inv *readmodel.InventoryReadModel)) error {
	found, err := p.readStore.Update(store.CollectionInventory, event.AggregateID, func(current any) any {
		inv := *current.(*readmodel.InventoryReadModel)
		if inv.Version >= event.Version {
			return current
		}
		apply(&inv)
		inv.Version = event.Version
		return &inv
	})
	if err != nil {
		return fmt.Errorf("failed to update read model %s: %w", event.AggregateID, err)
	}
	if !found {
		p.logger.Warn("read model missing for event",
			zap.String("aggregate_id", event.AggregateID),
			zap.String("event_type", event.EventType),
			zap.Int("version", event.Version),
		)
	}
	return nil
}

func (p *Projector) current(id string) (*readmodel.InventoryReadModel, bool, error) {
	data, found, err := p.readStore.Get(store.CollectionInventory, id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get read model %s: %w", id, err)
	}
	if !found {
		return nil, false, nil
	}
	return data.(*readmodel.InventoryReadModel), true, nil
}

func stateFor(stock int) string {
	if stock == 0 {
		return string(inventory.StateOutOfStock)
	}
	return string(inventory.StateWithStock)
}
