package alertstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/liquor-inventory/internal/domain/alert"
)

// MemoryRepository keeps alerts in memory
type MemoryRepository struct {
	mu     sync.RWMutex
	alerts map[string]alert.Alert
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{alerts: make(map[string]alert.Alert)}
}

func (r *MemoryRepository) Save(ctx context.Context, a *alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.alerts[a.ID]; exists {
		return fmt.Errorf("alert %s already stored", a.ID)
	}
	r.alerts[a.ID] = *a
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*alert.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", alert.ErrAlertNotFound, id)
	}
	return &a, nil
}

func (r *MemoryRepository) ListByAccount(ctx context.Context, accountID int64, state alert.State) ([]*alert.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*alert.Alert
	for _, a := range r.alerts {
		if a.AccountID != accountID || (state != "" && a.State != state) {
			continue
		}
		a := a
		result = append(result, &a)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemoryRepository) UpdateState(ctx context.Context, id string, from, to alert.State, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", alert.ErrAlertNotFound, id)
	}
	if a.State != from {
		return false, nil
	}
	a.State = to
	if to == alert.StateRead {
		a.ReadAt = &at
	}
	r.alerts[id] = a
	return true, nil
}
