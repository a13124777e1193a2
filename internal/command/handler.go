package command

import (
	"context"

	"github.com/example/liquor-inventory/internal/domain/alert"
	"github.com/example/liquor-inventory/internal/domain/inventory"
)

// Handler validates commands and runs them against the domain services
type Handler struct {
	inventorySvc *inventory.Service
	alertSvc     *alert.Service
}

func NewHandler(inventorySvc *inventory.Service, alertSvc *alert.Service) *Handler {
	return &Handler{
		inventorySvc: inventorySvc,
		alertSvc:     alertSvc,
	}
}

// CreateInventory opens a new ledger record
func (h *Handler) CreateInventory(ctx context.Context, cmd CreateInventory) (*inventory.Record, error) {
	if err := Validate(cmd); err != nil {
		return nil, err
	}
	return h.inventorySvc.Create(ctx, cmd.ProductID, cmd.WarehouseID, cmd.Quantity, cmd.BestBeforeDate.Time)
}

// AddStock adds stock, creating the record if it does not exist yet
func (h *Handler) AddStock(ctx context.Context, cmd AddStock) (*inventory.Record, error) {
	if err := Validate(cmd); err != nil {
		return nil, err
	}
	return h.inventorySvc.AddStock(ctx, cmd.ProductID, cmd.WarehouseID, cmd.Quantity, cmd.BestBeforeDate.Time)
}

func (h *Handler) ReduceStock(ctx context.Context, cmd ReduceStock) (*inventory.Record, error) {
	if err := Validate(cmd); err != nil {
		return nil, err
	}
	return h.inventorySvc.ReduceStock(ctx, cmd.ProductID, cmd.WarehouseID, cmd.Quantity, cmd.BestBeforeDate.Time)
}

// MoveStock reduces the source and adds to the destination.
// A failed add is compensated by returning the stock to the source.
func (h *Handler) MoveStock(ctx context.Context, cmd MoveStock) (*inventory.Record, *inventory.Record, error) {
	if err := Validate(cmd); err != nil {
		return nil, nil, err
	}
	return h.inventorySvc.MoveStock(ctx, cmd.ProductID, cmd.FromWarehouseID, cmd.ToWarehouseID, cmd.Quantity, cmd.BestBeforeDate.Time)
}

func (h *Handler) UpdateBestBeforeDate(ctx context.Context, cmd UpdateBestBeforeDate) (*inventory.Record, error) {
	if err := Validate(cmd); err != nil {
		return nil, err
	}
	return h.inventorySvc.UpdateBestBeforeDate(ctx, cmd.ProductID, cmd.WarehouseID, cmd.BestBeforeDate.Time)
}

func (h *Handler) DeleteInventory(ctx context.Context, cmd DeleteInventory) error {
	if err := Validate(cmd); err != nil {
		return err
	}
	return h.inventorySvc.Delete(ctx, cmd.ProductID, cmd.WarehouseID, cmd.BestBeforeDate.Time)
}

// CreateAlert records an alert directly, bypassing problem dispatch
func (h *Handler) CreateAlert(ctx context.Context, cmd CreateAlert) (*alert.Alert, error) {
	if err := Validate(cmd); err != nil {
		return nil, err
	}
	return h.alertSvc.Create(ctx, cmd.Title, cmd.Message, cmd.Severity, cmd.Type, cmd.AccountID, cmd.ProductID, cmd.WarehouseID)
}

func (h *Handler) MarkAlertRead(ctx context.Context, cmd MarkAlertRead) (*alert.Alert, error) {
	if err := Validate(cmd); err != nil {
		return nil, err
	}
	return h.alertSvc.MarkRead(ctx, cmd.AlertID)
}
