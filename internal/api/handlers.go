package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/api/middleware"
	"github.com/example/liquor-inventory/internal/command"
	"github.com/example/liquor-inventory/internal/domain/alert"
	"github.com/example/liquor-inventory/internal/query"
	"github.com/example/liquor-inventory/internal/scanner"
)

// ScanTrigger runs an expiration scan on demand
type ScanTrigger interface {
	RunNow(ctx context.Context) (scanner.Result, error)
}

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	scanner      ScanTrigger
	logger       *zap.Logger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, scan ScanTrigger, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		scanner:      scan,
		logger:       logger.With(zap.String("component", "api")),
	}
}

// Inventory Handlers

func (h *Handlers) CreateInventory(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateInventory
	if !h.decode(w, r, &cmd) {
		return
	}
	rec, err := h.cmdHandler.CreateInventory(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (h *Handlers) AddStock(w http.ResponseWriter, r *http.Request) {
	var cmd command.AddStock
	if !h.decode(w, r, &cmd) {
		return
	}
	rec, err := h.cmdHandler.AddStock(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *Handlers) ReduceStock(w http.ResponseWriter, r *http.Request) {
	var cmd command.ReduceStock
	if !h.decode(w, r, &cmd) {
		return
	}
	rec, err := h.cmdHandler.ReduceStock(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *Handlers) MoveStock(w http.ResponseWriter, r *http.Request) {
	var cmd command.MoveStock
	if !h.decode(w, r, &cmd) {
		return
	}
	from, to, err := h.cmdHandler.MoveStock(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"from": from, "to": to})
}

func (h *Handlers) UpdateBestBeforeDate(w http.ResponseWriter, r *http.Request) {
	productID, warehouseID, ok := h.recordKey(w, r)
	if !ok {
		return
	}
	var cmd command.UpdateBestBeforeDate
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.ProductID, cmd.WarehouseID = productID, warehouseID

	rec, err := h.cmdHandler.UpdateBestBeforeDate(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *Handlers) DeleteInventory(w http.ResponseWriter, r *http.Request) {
	productID, warehouseID, ok := h.recordKey(w, r)
	if !ok {
		return
	}
	bestBefore, ok := h.bestBeforeParam(w, r)
	if !ok {
		return
	}

	cmd := command.DeleteInventory{ProductID: productID, WarehouseID: warehouseID, BestBeforeDate: command.NewDate(bestBefore)}
	if err := h.cmdHandler.DeleteInventory(r.Context(), cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetInventory(w http.ResponseWriter, r *http.Request) {
	productID, warehouseID, ok := h.recordKey(w, r)
	if !ok {
		return
	}
	bestBefore, ok := h.bestBeforeParam(w, r)
	if !ok {
		return
	}

	inv, found := h.queryHandler.GetLot(productID, warehouseID, bestBefore)
	if !found {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "inventory not found"})
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

func (h *Handlers) ListInventory(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("warehouse_id")
	if raw == "" {
		records, err := h.queryHandler.ListAll(r.Context())
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, records)
		return
	}
	warehouseID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || warehouseID <= 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "warehouse_id must be a positive integer"})
		return
	}
	respondJSON(w, http.StatusOK, h.queryHandler.ListByWarehouse(warehouseID))
}

func (h *Handlers) RunScan(w http.ResponseWriter, r *http.Request) {
	if h.scanner == nil {
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "scanner not configured"})
		return
	}
	result, err := h.scanner.RunNow(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Alert Handlers

func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.queryHandler.ListAlerts(r.Context(), middleware.GetAccountID(r.Context()), r.URL.Query().Get("state"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, alerts)
}

func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	a, ok := h.ownedAlert(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *Handlers) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateAlert
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.AccountID = middleware.GetAccountID(r.Context())

	a, err := h.cmdHandler.CreateAlert(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (h *Handlers) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	a, ok := h.ownedAlert(w, r)
	if !ok {
		return
	}
	read, err := h.cmdHandler.MarkAlertRead(r.Context(), command.MarkAlertRead{AlertID: a.ID})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, read)
}

// Health

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ownedAlert loads the alert in the path. Alerts of other accounts are reported as not found.
func (h *Handlers) ownedAlert(w http.ResponseWriter, r *http.Request) (*alert.Alert, bool) {
	a, err := h.queryHandler.GetAlert(r.Context(), chi.URLParam(r, "alert_id"))
	if err == nil && a.AccountID != middleware.GetAccountID(r.Context()) {
		err = alert.ErrAlertNotFound
	}
	if err != nil {
		h.respondError(w, r, err)
		return nil, false
	}
	return a, true
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

func (h *Handlers) recordKey(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "product_id must be a positive integer"})
		return 0, 0, false
	}
	warehouseID, err := strconv.ParseInt(chi.URLParam(r, "warehouse_id"), 10, 64)
	if err != nil || warehouseID <= 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "warehouse_id must be a positive integer"})
		return 0, 0, false
	}
	return productID, warehouseID, true
}

func (h *Handlers) bestBeforeParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("best_before_date")
	if raw == "" {
		return time.Time{}, true
	}
	t, err := command.ParseDate(raw)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return time.Time{}, false
	}
	return t, true
}
