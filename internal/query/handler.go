package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/domain/alert"
	"github.com/example/liquor-inventory/internal/domain/inventory"
	"github.com/example/liquor-inventory/internal/infrastructure/store"
)

type Handler struct {
	readStore store.ReadStoreInterface
	alertSvc  *alert.Service
	logger    *zap.Logger
}

func NewHandler(readStore store.ReadStoreInterface, alertSvc *alert.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		readStore: readStore,
		alertSvc:  alertSvc,
		logger:    logger.With(zap.String("component", "query")),
	}
}

// Inventory
func (h *Handler) GetInventory(productID, warehouseID int64) (*InventoryReadModel, bool) {
	return h.GetLot(productID, warehouseID, time.Time{})
}

// GetLot returns the record only when its best-before date matches. A zero date matches any lot.
func (h *Handler) GetLot(productID, warehouseID int64, bestBefore time.Time) (*InventoryReadModel, bool) {
	id := inventory.RecordID(productID, warehouseID)
	data, ok, err := h.readStore.Get(store.CollectionInventory, id)
	if err != nil {
		h.logger.Error("failed to get inventory", zap.String("id", id), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	inv := data.(*InventoryReadModel)
	if inv.Deleted || !inv.HasBestBefore(inventory.Date(bestBefore)) {
		return nil, false
	}
	return inv, true
}

// ListByWarehouse returns the warehouse's records ordered by product
func (h *Handler) ListByWarehouse(warehouseID int64) []*InventoryReadModel {
	all, err := h.ListAll(context.Background())
	if err != nil {
		h.logger.Error("failed to list inventory", zap.Int64("warehouse_id", warehouseID), zap.Error(err))
		return nil
	}
	records := make([]*InventoryReadModel, 0)
	for _, inv := range all {
		if inv.WarehouseID == warehouseID {
			records = append(records, inv)
		}
	}
	return records
}

// ListAll returns every live record ordered by warehouse and product
func (h *Handler) ListAll(ctx context.Context) ([]*InventoryReadModel, error) {
	items, err := h.readStore.GetAll(store.CollectionInventory)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	records := make([]*InventoryReadModel, 0, len(items))
	for _, item := range items {
		if inv := item.(*InventoryReadModel); !inv.Deleted {
			records = append(records, inv)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].WarehouseID != records[j].WarehouseID {
			return records[i].WarehouseID < records[j].WarehouseID
		}
		return records[i].ProductID < records[j].ProductID
	})
	return records, nil
}

// Alerts
func (h *Handler) GetAlert(ctx context.Context, id string) (*alert.Alert, error) {
	return h.alertSvc.Get(ctx, id)
}

// ListAlerts returns an account's alerts, newest first. An empty state lists all of them.
func (h *Handler) ListAlerts(ctx context.Context, accountID int64, state string) ([]*alert.Alert, error) {
	st, err := alert.ParseState(state)
	if err != nil {
		return nil, err
	}
	return h.alertSvc.ListByAccount(ctx, accountID, st)
}
