package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code raised by the
// (aggregate_id, version) primary key when two writers race for a version.
const uniqueViolation = "23505"

// PostgresEventStore stores ledger events in PostgreSQL
type PostgresEventStore struct {
	db        *sql.DB
	publisher EventPublisher
}

func NewPostgresEventStore(db *sql.DB, publisher EventPublisher) *PostgresEventStore {
	return &PostgresEventStore{
		db:        db,
		publisher: publisher,
	}
}

// Migrate creates the events and snapshots tables
func (es *PostgresEventStore) Migrate(ctx context.Context) error {
	_, err := es.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id             UUID        NOT NULL UNIQUE,
			aggregate_id   TEXT        NOT NULL,
			aggregate_type TEXT        NOT NULL,
			event_type     TEXT        NOT NULL,
			data           JSONB       NOT NULL,
			version        INTEGER     NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (aggregate_id, version)
		);
		CREATE INDEX IF NOT EXISTS idx_events_created_at ON events (created_at);
		CREATE TABLE IF NOT EXISTS snapshots (
			aggregate_id   TEXT PRIMARY KEY,
			aggregate_type TEXT        NOT NULL,
			version        INTEGER     NOT NULL,
			state          JSONB       NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL
		);`)
	if err != nil {
		return fmt.Errorf("failed to migrate event store: %w", err)
	}
	return nil
}

// Append stores an event as version expectedVersion+1 and publishes it.
// The primary key turns a lost race into ErrVersionConflict.
func (es *PostgresEventStore) Append(ctx context.Context, aggregateID, aggregateType, eventType string, expectedVersion int, data any) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	var currentVersion int
	err = es.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = $1",
		aggregateID,
	).Scan(&currentVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to read current version: %w", err)
	}
	if currentVersion != expectedVersion {
		return nil, fmt.Errorf("%w: %s expected %d, found %d", ErrVersionConflict, aggregateID, expectedVersion, currentVersion)
	}

	event := Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now().UTC(),
		Version:       expectedVersion + 1,
	}

	_, err = es.db.ExecContext(ctx,
		`INSERT INTO events (id, aggregate_id, aggregate_type, event_type, data, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID,
		event.AggregateID,
		event.AggregateType,
		event.EventType,
		[]byte(event.Data),
		event.Version,
		event.Timestamp,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s version %d already written", ErrVersionConflict, aggregateID, event.Version)
		}
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	if es.publisher != nil {
		if err := es.publisher.Publish(ctx, aggregateID, event); err != nil {
			return &event, fmt.Errorf("%w: %v", ErrNotPublished, err)
		}
	}

	return &event, nil
}

const selectEvents = `SELECT id, aggregate_id, aggregate_type, event_type, data, version, created_at FROM events`

// GetEvents returns all events for an aggregate
func (es *PostgresEventStore) GetEvents(ctx context.Context, aggregateID string) ([]Event, error) {
	return es.query(ctx, selectEvents+` WHERE aggregate_id = $1 ORDER BY version ASC`, aggregateID)
}

// GetEventsFromVersion returns events for an aggregate newer than fromVersion
func (es *PostgresEventStore) GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) ([]Event, error) {
	return es.query(ctx, selectEvents+` WHERE aggregate_id = $1 AND version > $2 ORDER BY version ASC`, aggregateID, fromVersion)
}

// GetAllEvents returns all events in creation order (used for replay)
func (es *PostgresEventStore) GetAllEvents(ctx context.Context) ([]Event, error) {
	return es.query(ctx, selectEvents+` ORDER BY created_at ASC, version ASC`)
}

// GetEventsAfter returns events created after a specific time
func (es *PostgresEventStore) GetEventsAfter(ctx context.Context, after time.Time) ([]Event, error) {
	return es.query(ctx, selectEvents+` WHERE created_at > $1 ORDER BY created_at ASC, version ASC`, after)
}

func (es *PostgresEventStore) query(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := es.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var data []byte
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &data, &e.Version, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Data = json.RawMessage(data)
		events = append(events, e)
	}
	return events, rows.Err()
}

// SaveSnapshot upserts the snapshot of an aggregate
func (es *PostgresEventStore) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	_, err := es.db.ExecContext(ctx,
		`INSERT INTO snapshots (aggregate_id, aggregate_type, version, state, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (aggregate_id) DO UPDATE SET
			version = EXCLUDED.version,
			state = EXCLUDED.state,
			created_at = EXCLUDED.created_at
		 WHERE snapshots.version < EXCLUDED.version`,
		snapshot.AggregateID,
		snapshot.AggregateType,
		snapshot.Version,
		[]byte(snapshot.State),
		snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the latest snapshot, or nil if none exists
func (es *PostgresEventStore) GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error) {
	var s Snapshot
	var state []byte
	err := es.db.QueryRowContext(ctx,
		`SELECT aggregate_id, aggregate_type, version, state, created_at FROM snapshots WHERE aggregate_id = $1`,
		aggregateID,
	).Scan(&s.AggregateID, &s.AggregateType, &s.Version, &state, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	s.State = json.RawMessage(state)
	return &s, nil
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
