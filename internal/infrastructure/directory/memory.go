package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/liquor-inventory/internal/domain/inventory"
)

// Memory implements ProductCatalog and WarehouseDirectory over in-process maps
type Memory struct {
	mu         sync.RWMutex
	products   map[int64]int
	warehouses map[int64]int64
}

func NewMemory() *Memory {
	return &Memory{
		products:   make(map[int64]int),
		warehouses: make(map[int64]int64),
	}
}

// SetProduct registers a product and its minimum stock
func (m *Memory) SetProduct(productID int64, minimumStock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[productID] = minimumStock
}

// SetWarehouse registers a warehouse and the account owning it
func (m *Memory) SetWarehouse(warehouseID, accountID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warehouses[warehouseID] = accountID
}

func (m *Memory) MinimumStock(ctx context.Context, productID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	minimum, ok := m.products[productID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", inventory.ErrProductNotFound, productID)
	}
	return minimum, nil
}

func (m *Memory) AccountID(ctx context.Context, warehouseID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accountID, ok := m.warehouses[warehouseID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", inventory.ErrWarehouseNotFound, warehouseID)
	}
	return accountID, nil
}
