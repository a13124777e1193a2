package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/liquor-inventory/internal/domain/alert"
	"github.com/example/liquor-inventory/internal/domain/inventory"
	"github.com/example/liquor-inventory/internal/infrastructure/alertstore"
	"github.com/example/liquor-inventory/internal/infrastructure/directory"
)

type createCall struct {
	Title, Message, Severity, Type    string
	AccountID, ProductID, WarehouseID int64
}

type mockFacade struct {
	mu    sync.Mutex
	calls []createCall
	err   error
	delay time.Duration
}

func (f *mockFacade) CreateAlert(ctx context.Context, title, message, severity, alertType string, accountID, productID, warehouseID int64) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, createCall{title, message, severity, alertType, accountID, productID, warehouseID})
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("alert-%d", len(f.calls)), nil
}

func newTestDirectory() *directory.Memory {
	dir := directory.NewMemory()
	dir.SetWarehouse(3, 100)
	return dir
}

func TestAlertHandler_CreatesAlertForOwner(t *testing.T) {
	facade := &mockFacade{}
	h := NewAlertHandler(newTestDirectory(), facade, nil, time.Second, nil)

	require.NoError(t, h.Handle(context.Background(), lowStock))

	require.Len(t, facade.calls, 1)
	call := facade.calls[0]
	assert.Equal(t, int64(100), call.AccountID)
	assert.Equal(t, int64(7), call.ProductID)
	assert.Equal(t, int64(3), call.WarehouseID)
	assert.Equal(t, "WARNING", call.Severity)
	assert.Equal(t, "stock-low", call.Type)
	assert.Equal(t, "Low stock: product 7", call.Title)
	assert.Contains(t, call.Message, "down to 4 units (minimum 5)")
}

func TestAlertHandler_UnknownWarehouse(t *testing.T) {
	facade := &mockFacade{}
	h := NewAlertHandler(directory.NewMemory(), facade, nil, time.Second, nil)

	err := h.Handle(context.Background(), lowStock)

	assert.ErrorIs(t, err, inventory.ErrWarehouseNotFound)
	assert.Empty(t, facade.calls)
}

func TestAlertHandler_Timeout(t *testing.T) {
	facade := &mockFacade{delay: time.Second}
	h := NewAlertHandler(newTestDirectory(), facade, nil, 20*time.Millisecond, nil)

	err := h.Handle(context.Background(), lowStock)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAlertHandler_IgnoresCallerCancellation(t *testing.T) {
	facade := &mockFacade{}
	h := NewAlertHandler(newTestDirectory(), facade, nil, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.Handle(ctx, lowStock))
	assert.Len(t, facade.calls, 1)
}

func TestAlertHandler_BreakerOpensAfterFailures(t *testing.T) {
	facade := &mockFacade{err: errors.New("alert store down")}
	config := DefaultBreakerConfig("alerting")
	config.FailureThreshold = 2
	breaker := NewBreaker(config, nil, nil)
	h := NewAlertHandler(newTestDirectory(), facade, breaker, time.Second, nil)
	ctx := context.Background()

	assert.Error(t, h.Handle(ctx, lowStock))
	assert.Error(t, h.Handle(ctx, lowStock))
	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	err := h.Handle(ctx, lowStock)

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Len(t, facade.calls, 2)
}

func TestAlertHandler_WithAlertFacade(t *testing.T) {
	repo := alertstore.NewMemoryRepository()
	facade := alert.NewFacade(alert.NewService(repo, nil))
	h := NewAlertHandler(newTestDirectory(), facade, NewBreaker(DefaultBreakerConfig("alerting"), nil, nil), time.Second, nil)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, lowStock))

	alerts, err := repo.ListByAccount(ctx, 100, alert.StateActive)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.SeverityWarning, alerts[0].Severity)
	assert.Equal(t, "stock-low", alerts[0].Type)
}

func TestRender(t *testing.T) {
	bestBefore := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		problem inventory.ProblemDetected
		title   string
		message string
	}{
		{
			"low stock",
			lowStock,
			"Low stock: product 7",
			"Product 7 in warehouse 3 is down to 4 units (minimum 5).",
		},
		{
			"out of stock",
			inventory.ProblemDetected{Type: inventory.ProblemStockLow, ProductID: 7, WarehouseID: 3, Stock: 0, MinimumStock: 5},
			"Out of stock: product 7",
			"Product 7 in warehouse 3 is out of stock (minimum 5).",
		},
		{
			"expiring",
			inventory.ProblemDetected{Type: inventory.ProblemExpirationWarning, ProductID: 7, WarehouseID: 3, Stock: 12, BestBeforeDate: bestBefore, DaysToExpiry: 3},
			"Expiring soon: product 7",
			"Product 7 in warehouse 3 (12 units) reaches its best-before date 2026-10-19 in 3 days.",
		},
		{
			"expiring today",
			inventory.ProblemDetected{Type: inventory.ProblemExpirationWarning, ProductID: 7, WarehouseID: 3, Stock: 1, BestBeforeDate: bestBefore, DaysToExpiry: 0},
			"Expiring soon: product 7",
			"Product 7 in warehouse 3 (1 units) reaches its best-before date 2026-10-19 today.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, message := Render(tt.problem)
			assert.Equal(t, tt.title, title)
			assert.Equal(t, tt.message, message)
		})
	}
}
