package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.events = append(p.events, event.(Event))
	return p.err
}

type stockChange struct {
	Quantity int `json:"quantity"`
}

func TestEventStore_AppendAssignsVersions(t *testing.T) {
	es := NewEventStore(nil)
	ctx := context.Background()

	first, err := es.Append(ctx, "inventory-7-3", "Inventory", "InventoryCreated", 0, stockChange{Quantity: 10})
	require.NoError(t, err)
	second, err := es.Append(ctx, "inventory-7-3", "Inventory", "StockReduced", 1, stockChange{Quantity: 3})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.NotEqual(t, first.ID, second.ID)

	var data stockChange
	require.NoError(t, json.Unmarshal(second.Data, &data))
	assert.Equal(t, 3, data.Quantity)
}

func TestEventStore_AppendRejectsStaleVersion(t *testing.T) {
	es := NewEventStore(nil)
	ctx := context.Background()
	_, err := es.Append(ctx, "inventory-7-3", "Inventory", "InventoryCreated", 0, stockChange{Quantity: 10})
	require.NoError(t, err)

	_, err = es.Append(ctx, "inventory-7-3", "Inventory", "StockReduced", 0, stockChange{Quantity: 1})

	assert.ErrorIs(t, err, ErrVersionConflict)
	events, err := es.GetEvents(ctx, "inventory-7-3")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEventStore_ConcurrentAppendsOneWinnerPerVersion(t *testing.T) {
	es := NewEventStore(nil)
	ctx := context.Background()
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := es.Append(ctx, "inventory-7-3", "Inventory", "InventoryCreated", 0, stockChange{Quantity: 1}); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestEventStore_PublishesCommittedEvents(t *testing.T) {
	publisher := &recordingPublisher{}
	es := NewEventStore(publisher)

	event, err := es.Append(context.Background(), "inventory-7-3", "Inventory", "InventoryCreated", 0, stockChange{Quantity: 10})

	require.NoError(t, err)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, "inventory-7-3", publisher.keys[0])
	assert.Equal(t, event.ID, publisher.events[0].ID)
}

func TestEventStore_PublishFailureStillCommits(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker unavailable")}
	es := NewEventStore(publisher)
	ctx := context.Background()

	event, err := es.Append(ctx, "inventory-7-3", "Inventory", "InventoryCreated", 0, stockChange{Quantity: 10})

	assert.ErrorIs(t, err, ErrNotPublished)
	require.NotNil(t, event)
	events, err := es.GetEvents(ctx, "inventory-7-3")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEventStore_GetEventsFromVersion(t *testing.T) {
	es := NewEventStore(nil)
	ctx := context.Background()
	for v := 0; v < 5; v++ {
		_, err := es.Append(ctx, "inventory-7-3", "Inventory", "StockAdded", v, stockChange{Quantity: v})
		require.NoError(t, err)
	}
	_, err := es.Append(ctx, "inventory-8-3", "Inventory", "InventoryCreated", 0, stockChange{Quantity: 1})
	require.NoError(t, err)

	events, err := es.GetEventsFromVersion(ctx, "inventory-7-3", 3)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 4, events[0].Version)
	assert.Equal(t, 5, events[1].Version)

	all, err := es.GetAllEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestEventStore_Snapshots(t *testing.T) {
	es := NewEventStore(nil)
	ctx := context.Background()

	missing, err := es.GetSnapshot(ctx, "inventory-7-3")
	require.NoError(t, err)
	assert.Nil(t, missing)

	snapshot := &Snapshot{
		AggregateID:   "inventory-7-3",
		AggregateType: "Inventory",
		Version:       SnapshotThreshold,
		State:         json.RawMessage(`{"stock":4}`),
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, es.SaveSnapshot(ctx, snapshot))
	snapshot.Version = 99

	got, err := es.GetSnapshot(ctx, "inventory-7-3")
	require.NoError(t, err)
	assert.Equal(t, SnapshotThreshold, got.Version)
	assert.JSONEq(t, `{"stock":4}`, string(got.State))
}

func TestReadStore(t *testing.T) {
	rs := NewReadStore()

	require.NoError(t, rs.Set(CollectionInventory, "inventory-7-3", 10))
	v, ok, err := rs.Get(CollectionInventory, "inventory-7-3")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, v)

	found, err := rs.Update(CollectionInventory, "inventory-7-3", func(current any) any { return current.(int) - 4 })
	require.NoError(t, err)
	assert.True(t, found)
	found, err = rs.Update(CollectionInventory, "inventory-8-3", func(current any) any { return current })
	require.NoError(t, err)
	assert.False(t, found)

	all, err := rs.GetAll(CollectionInventory)
	require.NoError(t, err)
	assert.Equal(t, []any{6}, all)

	require.NoError(t, rs.Delete(CollectionInventory, "inventory-7-3"))
	_, ok, err = rs.Get(CollectionInventory, "inventory-7-3")
	require.NoError(t, err)
	assert.False(t, ok)
}
