package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/liquor-inventory/internal/domain/inventory"
)

// Postgres reads product thresholds and warehouse ownership from the
// catalog tables maintained by the catalog service.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the catalog tables when running without the catalog service
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id            BIGINT PRIMARY KEY,
			minimum_stock INTEGER NOT NULL DEFAULT 0 CHECK (minimum_stock >= 0)
		);
		CREATE TABLE IF NOT EXISTS warehouses (
			id         BIGINT PRIMARY KEY,
			account_id BIGINT NOT NULL
		);`)
	if err != nil {
		return fmt.Errorf("failed to migrate directory: %w", err)
	}
	return nil
}

func (p *Postgres) MinimumStock(ctx context.Context, productID int64) (int, error) {
	var minimum int
	err := p.db.QueryRowContext(ctx, `SELECT minimum_stock FROM products WHERE id = $1`, productID).Scan(&minimum)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", inventory.ErrProductNotFound, productID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read minimum stock of product %d: %w", productID, err)
	}
	return minimum, nil
}

func (p *Postgres) AccountID(ctx context.Context, warehouseID int64) (int64, error) {
	var accountID int64
	err := p.db.QueryRowContext(ctx, `SELECT account_id FROM warehouses WHERE id = $1`, warehouseID).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", inventory.ErrWarehouseNotFound, warehouseID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read owner of warehouse %d: %w", warehouseID, err)
	}
	return accountID, nil
}
