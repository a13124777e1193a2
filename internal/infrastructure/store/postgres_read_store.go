package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/example/liquor-inventory/internal/readmodel"
)

// ErrUnknownCollection is returned for collections the store has no table for
var ErrUnknownCollection = errors.New("read store: unknown collection")

// PostgresReadStore implements ReadStoreInterface using PostgreSQL
type PostgresReadStore struct {
	db *sql.DB
	mu sync.RWMutex // serializes Update's read-modify-write
}

// NewPostgresReadStore creates a new PostgreSQL-based read store
func NewPostgresReadStore(db *sql.DB) *PostgresReadStore {
	return &PostgresReadStore{db: db}
}

// Migrate creates the read model tables
func (rs *PostgresReadStore) Migrate() error {
	_, err := rs.db.Exec(`
		CREATE TABLE IF NOT EXISTS read_inventory (
			id               TEXT PRIMARY KEY,
			product_id       BIGINT      NOT NULL,
			warehouse_id     BIGINT      NOT NULL,
			stock            INTEGER     NOT NULL CHECK (stock >= 0),
			state            TEXT        NOT NULL,
			best_before_date DATE        NOT NULL,
			version          INTEGER     NOT NULL,
			deleted          BOOLEAN     NOT NULL DEFAULT false,
			updated_at       TIMESTAMPTZ NOT NULL
		);
		ALTER TABLE read_inventory ADD COLUMN IF NOT EXISTS deleted BOOLEAN NOT NULL DEFAULT false;
		CREATE INDEX IF NOT EXISTS idx_read_inventory_warehouse ON read_inventory (warehouse_id);`)
	if err != nil {
		return fmt.Errorf("failed to migrate read store: %w", err)
	}
	return nil
}

// Set stores a read model
func (rs *PostgresReadStore) Set(collection, id string, data any) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	switch collection {
	case CollectionInventory:
		return rs.setInventory(id, data.(*readmodel.InventoryReadModel))
	}
	return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
}

// Get retrieves a read model by id
func (rs *PostgresReadStore) Get(collection, id string) (any, bool, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	switch collection {
	case CollectionInventory:
		inv, ok, err := rs.getInventory(id)
		return inv, ok, err
	}
	return nil, false, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
}

// GetAll retrieves all items in a collection
func (rs *PostgresReadStore) GetAll(collection string) ([]any, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	switch collection {
	case CollectionInventory:
		return rs.getAllInventory()
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
}

// Delete removes a read model
func (rs *PostgresReadStore) Delete(collection, id string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	var tableName string
	switch collection {
	case CollectionInventory:
		tableName = "read_inventory"
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}

	if _, err := rs.db.Exec("DELETE FROM "+tableName+" WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", collection, err)
	}
	return nil
}

// Update modifies a read model using an update function
func (rs *PostgresReadStore) Update(collection, id string, updateFn func(current any) any) (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	switch collection {
	case CollectionInventory:
		current, found, err := rs.getInventory(id)
		if err != nil || !found {
			return false, err
		}
		updated := updateFn(current).(*readmodel.InventoryReadModel)
		return true, rs.setInventory(id, updated)
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
}

func (rs *PostgresReadStore) setInventory(id string, inv *readmodel.InventoryReadModel) error {
	_, err := rs.db.Exec(`
		INSERT INTO read_inventory (id, product_id, warehouse_id, stock, state, best_before_date, version, deleted, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			stock = EXCLUDED.stock,
			state = EXCLUDED.state,
			best_before_date = EXCLUDED.best_before_date,
			version = EXCLUDED.version,
			deleted = EXCLUDED.deleted,
			updated_at = EXCLUDED.updated_at
		WHERE read_inventory.version < EXCLUDED.version
	`, id, inv.ProductID, inv.WarehouseID, inv.Stock, inv.State, inv.BestBeforeDate, inv.Version, inv.Deleted, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to set inventory %s: %w", id, err)
	}
	return nil
}

const selectInventory = `SELECT id, product_id, warehouse_id, stock, state, best_before_date, version, deleted, updated_at FROM read_inventory`

func scanInventory(row interface{ Scan(...any) error }) (*readmodel.InventoryReadModel, error) {
	var inv readmodel.InventoryReadModel
	err := row.Scan(&inv.ID, &inv.ProductID, &inv.WarehouseID, &inv.Stock, &inv.State, &inv.BestBeforeDate, &inv.Version, &inv.Deleted, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inv.BestBeforeDate = inv.BestBeforeDate.UTC()
	return &inv, nil
}

func (rs *PostgresReadStore) getInventory(id string) (*readmodel.InventoryReadModel, bool, error) {
	inv, err := scanInventory(rs.db.QueryRow(selectInventory+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get inventory %s: %w", id, err)
	}
	return inv, true, nil
}

func (rs *PostgresReadStore) getAllInventory() ([]any, error) {
	rows, err := rs.db.Query(selectInventory + ` ORDER BY warehouse_id, product_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	var inventory []any
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory: %w", err)
		}
		inventory = append(inventory, inv)
	}
	return inventory, rows.Err()
}
