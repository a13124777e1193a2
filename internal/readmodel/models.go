package readmodel

import "time"

// InventoryReadModel is the read model for a ledger record.
// A deleted record stays behind as a tombstone so the version guard still
// rejects redelivered events older than the delete.
type InventoryReadModel struct {
	ID             string    `json:"id"`
	ProductID      int64     `json:"product_id"`
	WarehouseID    int64     `json:"warehouse_id"`
	Stock          int       `json:"stock"`
	State          string    `json:"state"`
	BestBeforeDate time.Time `json:"best_before_date"`
	Version        int       `json:"version"`
	Deleted        bool      `json:"deleted,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasBestBefore reports whether the record's lot matches the given date.
// A zero date matches any lot.
func (m *InventoryReadModel) HasBestBefore(date time.Time) bool {
	if date.IsZero() {
		return true
	}
	return m.BestBeforeDate.Equal(date)
}
