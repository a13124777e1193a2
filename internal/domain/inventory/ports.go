package inventory

import "context"

// ProductCatalog resolves per-product stock thresholds.
// Unknown products yield ErrProductNotFound.
type ProductCatalog interface {
	MinimumStock(ctx context.Context, productID int64) (int, error)
}

// WarehouseDirectory resolves the account owning a warehouse.
// Unknown warehouses yield ErrWarehouseNotFound.
type WarehouseDirectory interface {
	AccountID(ctx context.Context, warehouseID int64) (int64, error)
}

// AlertingFacade is the only way into the alerting module. It is implemented
// there and injected at wiring time; ids cross the boundary as plain values.
type AlertingFacade interface {
	CreateAlert(ctx context.Context, title, message, severity, alertType string, accountID, productID, warehouseID int64) (string, error)
}
