package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/liquor-inventory/internal/infrastructure/store"
)

// Aggregate is an event-sourced entity rebuilt by applying its events in
// version order.
type Aggregate interface {
	GetID() string
	GetVersion() int
	SetVersion(int)
	ApplyEvent(store.Event) error
}

// LoadAggregate rebuilds the aggregate id from its latest snapshot plus the
// events recorded after it. found is false when the aggregate has no history.
func LoadAggregate[T Aggregate](ctx context.Context, es store.EventStoreInterface, id string, newAggregate func() T) (agg T, found bool, err error) {
	agg = newAggregate()

	from, err := restore(ctx, es, id, agg)
	if err != nil {
		var zero T
		return zero, false, err
	}

	events, err := es.GetEventsFromVersion(ctx, id, from)
	if err != nil {
		var zero T
		return zero, false, fmt.Errorf("failed to get events: %w", err)
	}

	for _, e := range events {
		if err := agg.ApplyEvent(e); err != nil {
			var zero T
			return zero, false, fmt.Errorf("failed to apply event %s v%d: %w", e.EventType, e.Version, err)
		}
	}
	return agg, from > 0 || len(events) > 0, nil
}

// restore loads the snapshot into agg and returns the version it covers,
// or 0 when there is none.
func restore(ctx context.Context, es store.EventStoreInterface, id string, agg Aggregate) (int, error) {
	snapshot, err := es.GetSnapshot(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if snapshot == nil {
		return 0, nil
	}
	if err := json.Unmarshal(snapshot.State, agg); err != nil {
		return 0, fmt.Errorf("failed to unmarshal snapshot of %s: %w", id, err)
	}
	agg.SetVersion(snapshot.Version)
	return snapshot.Version, nil
}

// MaybeCreateSnapshot saves the aggregate state when its version is a
// multiple of store.SnapshotThreshold.
func MaybeCreateSnapshot(ctx context.Context, es store.EventStoreInterface, agg Aggregate, aggregateType string) error {
	version := agg.GetVersion()
	if version <= 0 || version%store.SnapshotThreshold != 0 {
		return nil
	}

	state, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s state: %w", aggregateType, err)
	}
	err = es.SaveSnapshot(ctx, &store.Snapshot{
		AggregateID:   agg.GetID(),
		AggregateType: aggregateType,
		Version:       version,
		State:         state,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
