package store

import (
	"encoding/json"
	"time"
)

// SnapshotThreshold is the version interval at which aggregates are snapshotted
const SnapshotThreshold = 10

// Snapshot is the serialized state of an aggregate as of Version
type Snapshot struct {
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	State         json.RawMessage `json:"state"`
	CreatedAt     time.Time       `json:"created_at"`
}
