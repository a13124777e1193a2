package store

import (
	"context"
	"errors"
)

// ErrVersionConflict is returned by Append when the aggregate moved past the
// expected version since it was loaded.
var ErrVersionConflict = errors.New("event store: version conflict")

// ErrNotPublished is returned together with the stored event when the event was
// persisted but forwarding it to the stream failed. The append itself committed.
var ErrNotPublished = errors.New("event store: event stored but not published")

// EventStoreInterface defines the interface for event stores.
//
// Append is a compare-and-swap: the event is stored as version
// expectedVersion+1 only if the aggregate is still at expectedVersion.
type EventStoreInterface interface {
	Append(ctx context.Context, aggregateID, aggregateType, eventType string, expectedVersion int, data any) (*Event, error)
	GetEvents(ctx context.Context, aggregateID string) ([]Event, error)
	GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) ([]Event, error)
	GetAllEvents(ctx context.Context) ([]Event, error)
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
	GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error)
}

// EventPublisher forwards stored events to a stream. *kafka.Producer satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}
