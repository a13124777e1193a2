package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/liquor-inventory/internal/infrastructure/store"
	"github.com/example/liquor-inventory/internal/infrastructure/store/mocks"
)

type stubCatalog map[int64]int

func (c stubCatalog) MinimumStock(ctx context.Context, productID int64) (int, error) {
	minimum, ok := c[productID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrProductNotFound, productID)
	}
	return minimum, nil
}

type stubDirectory map[int64]int64

func (d stubDirectory) AccountID(ctx context.Context, warehouseID int64) (int64, error) {
	accountID, ok := d[warehouseID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrWarehouseNotFound, warehouseID)
	}
	return accountID, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	problems []ProblemDetected
}

func (p *recordingPublisher) Publish(ctx context.Context, problem ProblemDetected) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.problems = append(p.problems, problem)
}

func (p *recordingPublisher) Problems() []ProblemDetected {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ProblemDetected(nil), p.problems...)
}

var (
	testCatalog   = stubCatalog{7: 5, 8: 0}
	testDirectory = stubDirectory{1: 10, 2: 10, 3: 10, 4: 11}
	bestBefore    = today.AddDate(0, 0, 60)
	fixedClock    = WithClock(func() time.Time { return today.Add(9 * time.Hour) })
)

func newTestInventoryService() (*Service, *mocks.MockEventStore, *recordingPublisher) {
	eventStore := mocks.NewMockEventStore()
	publisher := &recordingPublisher{}
	service := NewService(eventStore, testCatalog, testDirectory, publisher, nil, fixedClock)
	return service, eventStore, publisher
}

func seed(t *testing.T, service *Service, productID, warehouseID int64, qty int) {
	t.Helper()
	_, err := service.Create(context.Background(), productID, warehouseID, qty, bestBefore)
	require.NoError(t, err)
}

// ============================================
// Create Tests
// ============================================

func TestService_Create(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()
	ctx := context.Background()

	rec, err := service.Create(ctx, 7, 3, 10, bestBefore.Add(13*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, 10, rec.Stock)
	assert.Equal(t, StateWithStock, rec.State)
	assert.Equal(t, bestBefore, rec.BestBeforeDate)
	assert.Equal(t, 1, rec.Version)

	require.Len(t, eventStore.AppendCalls, 1)
	assert.Equal(t, EventInventoryCreated, eventStore.AppendCalls[0].EventType)
	assert.Equal(t, AggregateType, eventStore.AppendCalls[0].AggregateType)
	assert.Equal(t, "inventory-7-3", eventStore.AppendCalls[0].AggregateID)
	assert.Equal(t, 0, eventStore.AppendCalls[0].ExpectedVersion)
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name        string
		productID   int64
		warehouseID int64
		qty         int
		bestBefore  time.Time
		wantErr     error
	}{
		{"zero product", 0, 3, 10, bestBefore, ErrInvalidProductID},
		{"negative warehouse", 7, -3, 10, bestBefore, ErrInvalidWarehouseID},
		{"zero quantity", 7, 3, 0, bestBefore, ErrInvalidQuantity},
		{"missing date", 7, 3, 10, time.Time{}, ErrInvalidBestBeforeDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, eventStore, _ := newTestInventoryService()

			_, err := service.Create(context.Background(), tt.productID, tt.warehouseID, tt.qty, tt.bestBefore)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, eventStore.AppendCalls)
		})
	}
}

func TestService_Create_Duplicate(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()
	seed(t, service, 7, 3, 10)
	eventStore.ResetCalls()

	_, err := service.Create(context.Background(), 7, 3, 5, bestBefore)

	assert.ErrorIs(t, err, ErrInventoryAlreadyExists)
	assert.Empty(t, eventStore.AppendCalls)
}

func TestService_Create_UnknownIDs(t *testing.T) {
	tests := []struct {
		name        string
		productID   int64
		warehouseID int64
		wantErr     error
	}{
		{"unknown product", 999, 3, ErrProductNotFound},
		{"unknown warehouse", 7, 424242, ErrWarehouseNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, eventStore, _ := newTestInventoryService()

			rec, err := service.Create(context.Background(), tt.productID, tt.warehouseID, 10, bestBefore)

			assert.Nil(t, rec)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Empty(t, eventStore.AppendCalls)
		})
	}
}

// ============================================
// Add Stock Tests
// ============================================

func TestService_AddStock_UnknownIDs(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()
	ctx := context.Background()

	_, err := service.AddStock(ctx, 999, 3, 4, bestBefore)
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = service.AddStock(ctx, 7, 424242, 4, bestBefore)
	assert.ErrorIs(t, err, ErrWarehouseNotFound)

	assert.Empty(t, eventStore.AppendCalls)
}

func TestService_AddStock_CreatesMissingRecord(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()

	rec, err := service.AddStock(context.Background(), 7, 3, 4, bestBefore)

	require.NoError(t, err)
	assert.Equal(t, 4, rec.Stock)
	require.Len(t, eventStore.AppendCalls, 1)
	assert.Equal(t, EventInventoryCreated, eventStore.AppendCalls[0].EventType)
}

func TestService_AddStock_MissingRecordNeedsDate(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()

	_, err := service.AddStock(context.Background(), 7, 3, 4, time.Time{})

	assert.ErrorIs(t, err, ErrInvalidBestBeforeDate)
	assert.Empty(t, eventStore.AppendCalls)
}

func TestService_AddStock_MergesLots(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()
	seed(t, service, 7, 3, 10)
	earlier := today.AddDate(0, 0, 20)

	rec, err := service.AddStock(context.Background(), 7, 3, 5, earlier)

	require.NoError(t, err)
	assert.Equal(t, 15, rec.Stock)
	assert.Equal(t, earlier, rec.BestBeforeDate)
	data := eventStore.AppendCalls[1].Data.(StockAdded)
	assert.Equal(t, 5, data.Quantity)
	assert.Equal(t, 15, data.ResultingStock)
}

func TestService_AddStock_InvalidQuantity(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()
	seed(t, service, 7, 3, 10)
	eventStore.ResetCalls()

	_, err := service.AddStock(context.Background(), 7, 3, -1, bestBefore)

	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Empty(t, eventStore.AppendCalls)
}

func TestService_AddThenReduce_RestoresRecord(t *testing.T) {
	for _, qty := range []int{1, 3, 50, 1000} {
		t.Run(fmt.Sprint(qty), func(t *testing.T) {
			service, _, _ := newTestInventoryService()
			ctx := context.Background()
			seed(t, service, 8, 3, 10)

			_, err := service.AddStock(ctx, 8, 3, qty, bestBefore)
			require.NoError(t, err)
			rec, err := service.ReduceStock(ctx, 8, 3, qty, time.Time{})
			require.NoError(t, err)

			assert.Equal(t, 10, rec.Stock)
			assert.Equal(t, StateWithStock, rec.State)
		})
	}
}

// ============================================
// Reduce Stock Tests
// ============================================

func TestService_ReduceStock_LowStockScenario(t *testing.T) {
	service, _, publisher := newTestInventoryService()
	ctx := context.Background()
	seed(t, service, 7, 3, 10)

	rec, err := service.ReduceStock(ctx, 7, 3, 6, time.Time{})

	require.NoError(t, err)
	assert.Equal(t, 4, rec.Stock)
	assert.Equal(t, StateWithStock, rec.State)
	problems := publisher.Problems()
	require.Len(t, problems, 1)
	assert.Equal(t, ProblemStockLow, problems[0].Type)
	assert.Equal(t, SeverityWarning, problems[0].Severity)
	assert.Equal(t, int64(7), problems[0].ProductID)
	assert.Equal(t, int64(3), problems[0].WarehouseID)
	assert.Equal(t, 4, problems[0].Stock)
	assert.Equal(t, 5, problems[0].MinimumStock)

	rec, err = service.ReduceStock(ctx, 7, 3, 4, time.Time{})

	require.NoError(t, err)
	assert.Equal(t, 0, rec.Stock)
	assert.Equal(t, StateOutOfStock, rec.State)
	problems = publisher.Problems()
	require.Len(t, problems, 2)
	assert.Equal(t, ProblemStockLow, problems[1].Type)
	assert.Equal(t, 0, problems[1].Stock)
}

func TestService_ReduceStock_AboveMinimumRaisesNothing(t *testing.T) {
	service, _, publisher := newTestInventoryService()
	seed(t, service, 7, 3, 10)

	_, err := service.ReduceStock(context.Background(), 7, 3, 4, time.Time{})

	require.NoError(t, err)
	assert.Empty(t, publisher.Problems())
}

func TestService_ReduceStock_OneProblemRegardlessOfQuantity(t *testing.T) {
	for _, qty := range []int{5, 6, 9, 10} {
		t.Run(fmt.Sprint(qty), func(t *testing.T) {
			service, _, publisher := newTestInventoryService()
			seed(t, service, 7, 3, 10)

			_, err := service.ReduceStock(context.Background(), 7, 3, qty, time.Time{})

			require.NoError(t, err)
			assert.Len(t, publisher.Problems(), 1)
		})
	}
}

func TestService_ReduceStock_Insufficient(t *testing.T) {
	service, eventStore, publisher := newTestInventoryService()
	ctx := context.Background()
	seed(t, service, 7, 3, 10)
	eventStore.ResetCalls()

	_, err := service.ReduceStock(ctx, 7, 3, 11, time.Time{})

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.ErrorIs(t, err, ErrBusinessRule)
	assert.Empty(t, eventStore.AppendCalls)
	assert.Empty(t, publisher.Problems())
	rec, err := service.Get(ctx, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Stock)
}

func TestService_ReduceStock_UnknownProduct(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()

	_, err := service.ReduceStock(context.Background(), 99, 3, 1, time.Time{})

	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, eventStore.AppendCalls)
}

func TestService_ReduceStock_MissingRecord(t *testing.T) {
	service, _, _ := newTestInventoryService()

	_, err := service.ReduceStock(context.Background(), 7, 3, 1, time.Time{})

	assert.ErrorIs(t, err, ErrInventoryNotFound)
}

func TestService_ReduceStock_LotSelector(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()
	ctx := context.Background()
	seed(t, service, 7, 3, 10)
	eventStore.ResetCalls()

	_, err := service.ReduceStock(ctx, 7, 3, 1, bestBefore.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, ErrInventoryNotFound)
	assert.Empty(t, eventStore.AppendCalls)

	rec, err := service.ReduceStock(ctx, 7, 3, 1, bestBefore)
	require.NoError(t, err)
	assert.Equal(t, 9, rec.Stock)
}

func TestService_ReduceStock_FailedAppendRaisesNothing(t *testing.T) {
	service, eventStore, publisher := newTestInventoryService()
	seed(t, service, 7, 3, 10)
	eventStore.AppendErr = errors.New("disk full")

	_, err := service.ReduceStock(context.Background(), 7, 3, 9, time.Time{})

	assert.Error(t, err)
	assert.Empty(t, publisher.Problems())
}

func TestService_ReduceThenAdd_RestocksState(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()
	ctx := context.Background()
	seed(t, service, 8, 3, 3)

	rec, err := service.ReduceStock(ctx, 8, 3, 3, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, StateOutOfStock, rec.State)

	rec, err = service.AddStock(ctx, 8, 3, 2, bestBefore)
	require.NoError(t, err)
	assert.Equal(t, StateWithStock, rec.State)
	assert.Equal(t, 2, rec.Stock)
	assert.Equal(t, EventStockAdded, eventStore.AppendCalls[2].EventType)
}

// ============================================
// Best Before Date Tests
// ============================================

func TestService_UpdateBestBeforeDate_AcceptsEarlierDate(t *testing.T) {
	service, _, _ := newTestInventoryService()
	seed(t, service, 7, 3, 10)
	earlier := today.AddDate(0, 0, 2)

	rec, err := service.UpdateBestBeforeDate(context.Background(), 7, 3, earlier)

	require.NoError(t, err)
	assert.Equal(t, earlier, rec.BestBeforeDate)
}

func TestService_UpdateBestBeforeDate_Errors(t *testing.T) {
	service, _, _ := newTestInventoryService()

	_, err := service.UpdateBestBeforeDate(context.Background(), 7, 3, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidBestBeforeDate)

	_, err = service.UpdateBestBeforeDate(context.Background(), 7, 3, bestBefore)
	assert.ErrorIs(t, err, ErrInventoryNotFound)
}

// ============================================
// Delete Tests
// ============================================

func TestService_Delete_WithStock(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()
	seed(t, service, 7, 3, 1)
	eventStore.ResetCalls()

	err := service.Delete(context.Background(), 7, 3, bestBefore)

	assert.ErrorIs(t, err, ErrStockNotEmpty)
	assert.Empty(t, eventStore.AppendCalls)
}

func TestService_Delete_Empty(t *testing.T) {
	service, _, _ := newTestInventoryService()
	ctx := context.Background()
	seed(t, service, 8, 3, 2)
	_, err := service.ReduceStock(ctx, 8, 3, 2, time.Time{})
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, 8, 3, bestBefore))

	_, err = service.Get(ctx, 8, 3)
	assert.ErrorIs(t, err, ErrInventoryNotFound)
	err = service.Delete(ctx, 8, 3, bestBefore)
	assert.ErrorIs(t, err, ErrInventoryNotFound)

	rec, err := service.Create(ctx, 8, 3, 4, bestBefore)
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Stock)
}

// ============================================
// Move Stock Tests
// ============================================

func TestService_MoveStock(t *testing.T) {
	service, _, _ := newTestInventoryService()
	ctx := context.Background()
	seed(t, service, 8, 1, 10)

	source, destination, err := service.MoveStock(ctx, 8, 1, 2, 4, bestBefore)

	require.NoError(t, err)
	assert.Equal(t, 6, source.Stock)
	assert.Equal(t, 4, destination.Stock)
	assert.Equal(t, bestBefore, destination.BestBeforeDate)
}

func TestService_MoveStock_Validation(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()

	_, _, err := service.MoveStock(context.Background(), 8, 1, 1, 4, bestBefore)
	assert.ErrorIs(t, err, ErrSameWarehouse)

	_, _, err = service.MoveStock(context.Background(), 8, 1, 2, 0, bestBefore)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Empty(t, eventStore.AppendCalls)
}

func TestService_MoveStock_UnknownDestinationLeavesSource(t *testing.T) {
	service, eventStore, publisher := newTestInventoryService()
	ctx := context.Background()
	seed(t, service, 7, 3, 10)
	eventStore.ResetCalls()

	source, destination, err := service.MoveStock(ctx, 7, 3, 424242, 2, bestBefore)

	assert.ErrorIs(t, err, ErrWarehouseNotFound)
	assert.NotErrorIs(t, err, ErrCompensationFailed)
	assert.Nil(t, source)
	assert.Nil(t, destination)
	assert.Empty(t, eventStore.AppendCalls)
	assert.Empty(t, publisher.Problems())
	rec, err := service.Get(ctx, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Stock)
	assert.Equal(t, 1, rec.Version)
}

func TestService_MoveStock_RestoresSourceWhenDestinationFails(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()
	ctx := context.Background()
	seed(t, service, 8, 1, 10)
	eventStore.AppendCallback = func(ctx context.Context, aggregateID string, expectedVersion int) error {
		if aggregateID == RecordID(8, 2) {
			return errors.New("destination unavailable")
		}
		return nil
	}

	source, destination, err := service.MoveStock(ctx, 8, 1, 2, 4, bestBefore)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCompensationFailed)
	assert.Nil(t, destination)
	assert.Equal(t, 10, source.Stock)
	rec, err := service.Get(ctx, 8, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Stock)
}

func TestService_MoveStock_CompensationFailure(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()
	ctx := context.Background()
	seed(t, service, 8, 1, 10)
	reduced := false
	eventStore.AppendCallback = func(ctx context.Context, aggregateID string, expectedVersion int) error {
		if aggregateID == RecordID(8, 1) && !reduced {
			reduced = true
			return nil
		}
		return errors.New("store unavailable")
	}

	_, _, err := service.MoveStock(ctx, 8, 1, 2, 4, bestBefore)

	assert.ErrorIs(t, err, ErrCompensationFailed)
	eventStore.AppendCallback = nil
	rec, err := service.Get(ctx, 8, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, rec.Stock)
}

// ============================================
// Query Tests
// ============================================

func TestService_GetLot(t *testing.T) {
	service, _, _ := newTestInventoryService()
	ctx := context.Background()
	seed(t, service, 7, 3, 10)

	rec, err := service.GetLot(ctx, 7, 3, bestBefore)
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Stock)

	_, err = service.GetLot(ctx, 7, 3, bestBefore.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrInventoryNotFound)

	_, err = service.Get(ctx, 7, 4)
	assert.ErrorIs(t, err, ErrInventoryNotFound)
}

func TestService_Get_LoadError(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()
	eventStore.GetEventsErr = errors.New("connection reset")

	_, err := service.Get(context.Background(), 7, 3)

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInventoryNotFound)
}

// ============================================
// Snapshot Tests
// ============================================

func TestService_CreatesSnapshotAtThreshold(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()
	ctx := context.Background()
	seed(t, service, 8, 3, 100)

	for i := 0; i < store.SnapshotThreshold-1; i++ {
		_, err := service.ReduceStock(ctx, 8, 3, 1, time.Time{})
		require.NoError(t, err)
	}

	require.Len(t, eventStore.SaveSnapshotCalls, 1)
	assert.Equal(t, store.SnapshotThreshold, eventStore.SaveSnapshotCalls[0].Snapshot.Version)

	rec, err := service.ReduceStock(ctx, 8, 3, 1, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 90, rec.Stock)
	assert.Equal(t, store.SnapshotThreshold+1, rec.Version)
}

// ============================================
// Concurrency Tests
// ============================================

func TestService_ConcurrentReductionsNeverOverdraw(t *testing.T) {
	service, _, _ := newTestInventoryService()
	ctx := context.Background()
	seed(t, service, 8, 3, 50)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.ReduceStock(ctx, 8, 3, 1, time.Time{}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrInsufficientStock)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, succeeded)
	rec, err := service.Get(ctx, 8, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Stock)
	assert.Equal(t, StateOutOfStock, rec.State)
	assert.Zero(t, service.locks.size())
}

func TestService_ConcurrentServicesShareStore(t *testing.T) {
	eventStore := store.NewEventStore(nil)
	first := NewService(eventStore, testCatalog, testDirectory, nil, nil, WithMaxAttempts(100))
	second := NewService(eventStore, testCatalog, testDirectory, nil, nil, WithMaxAttempts(100))
	ctx := context.Background()
	_, err := first.Create(ctx, 8, 3, 40, bestBefore)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := first.ReduceStock(ctx, 8, 3, 1, time.Time{})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := second.ReduceStock(ctx, 8, 3, 1, time.Time{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := first.Get(ctx, 8, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Stock)
}

func TestService_RetriesExhausted(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore, testCatalog, testDirectory, nil, nil, WithMaxAttempts(3))
	seed(t, service, 8, 3, 10)
	eventStore.ResetCalls()
	eventStore.AppendCallback = func(ctx context.Context, aggregateID string, expectedVersion int) error {
		return fmt.Errorf("%w: simulated writer", store.ErrVersionConflict)
	}

	_, err := service.ReduceStock(context.Background(), 8, 3, 1, time.Time{})

	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Len(t, eventStore.AppendCalls, 3)
}

func TestService_RetryAfterConflictRedecides(t *testing.T) {
	service, eventStore, _ := newTestInventoryService()
	ctx := context.Background()
	seed(t, service, 8, 3, 10)
	injected := false
	eventStore.AppendCallback = func(ctx context.Context, aggregateID string, expectedVersion int) error {
		if !injected {
			injected = true
			// another process takes 8 units first
			return eventStore.AddEvent(aggregateID, AggregateType, EventStockReduced, StockReduced{ProductID: 8, WarehouseID: 3, Quantity: 8, ResultingStock: 2})
		}
		return nil
	}

	_, err := service.ReduceStock(ctx, 8, 3, 5, time.Time{})

	assert.ErrorIs(t, err, ErrInsufficientStock)
	eventStore.AppendCallback = nil
	rec, err := service.Get(ctx, 8, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Stock)
}

// ============================================
// Publishing Tests
// ============================================

type failingEventPublisher struct{}

func (failingEventPublisher) Publish(ctx context.Context, key string, event any) error {
	return errors.New("broker unreachable")
}

func TestService_UnpublishedEventStillCommits(t *testing.T) {
	publisher := &recordingPublisher{}
	service := NewService(store.NewEventStore(failingEventPublisher{}), testCatalog, testDirectory, publisher, nil)
	ctx := context.Background()

	_, err := service.Create(ctx, 7, 3, 10, bestBefore)
	require.NoError(t, err)
	rec, err := service.ReduceStock(ctx, 7, 3, 6, time.Time{})

	require.NoError(t, err)
	assert.Equal(t, 4, rec.Stock)
	assert.Len(t, publisher.Problems(), 1)
}
