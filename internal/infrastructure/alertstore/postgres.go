package alertstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/liquor-inventory/internal/domain/alert"
)

// PostgresRepository stores alerts in PostgreSQL. Product, warehouse and
// account ids are plain columns without foreign keys.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the alerts table
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS alerts (
			id           UUID PRIMARY KEY,
			title        TEXT        NOT NULL,
			message      TEXT        NOT NULL,
			severity     TEXT        NOT NULL,
			type         TEXT        NOT NULL,
			state        TEXT        NOT NULL,
			account_id   BIGINT      NOT NULL,
			product_id   BIGINT      NOT NULL,
			warehouse_id BIGINT      NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			read_at      TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_account ON alerts (account_id, created_at DESC);`)
	if err != nil {
		return fmt.Errorf("failed to migrate alerts: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Save(ctx context.Context, a *alert.Alert) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (id, title, message, severity, type, state, account_id, product_id, warehouse_id, created_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.Title, a.Message, string(a.Severity), a.Type, string(a.State),
		a.AccountID, a.ProductID, a.WarehouseID, a.CreatedAt, nullTime(a.ReadAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

const selectAlerts = `SELECT id, title, message, severity, type, state, account_id, product_id, warehouse_id, created_at, read_at FROM alerts`

func (r *PostgresRepository) Get(ctx context.Context, id string) (*alert.Alert, error) {
	a, err := scanAlert(r.db.QueryRowContext(ctx, selectAlerts+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", alert.ErrAlertNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return a, nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID int64, state alert.State) ([]*alert.Alert, error) {
	rows, err := r.db.QueryContext(ctx,
		selectAlerts+` WHERE account_id = $1 AND ($2 = '' OR state = $2) ORDER BY created_at DESC, id`,
		accountID, string(state),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// UpdateState only touches rows still in the from state
func (r *PostgresRepository) UpdateState(ctx context.Context, id string, from, to alert.State, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET state = $1, read_at = CASE WHEN $1 = 'READ' THEN $2 ELSE read_at END WHERE id = $3 AND state = $4`,
		string(to), at, id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update alert %s: %w", id, err)
	}
	return affected(ctx, res, id, r.Get)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*alert.Alert, error) {
	var a alert.Alert
	var severity, state string
	var readAt sql.NullTime
	err := row.Scan(&a.ID, &a.Title, &a.Message, &severity, &a.Type, &state,
		&a.AccountID, &a.ProductID, &a.WarehouseID, &a.CreatedAt, &readAt)
	if err != nil {
		return nil, err
	}
	a.Severity = alert.Severity(severity)
	a.State = alert.State(state)
	a.CreatedAt = a.CreatedAt.UTC()
	if readAt.Valid {
		t := readAt.Time.UTC()
		a.ReadAt = &t
	}
	return &a, nil
}

func collect(rows *sql.Rows) ([]*alert.Alert, error) {
	var alerts []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// affected turns a zero-row update into either "not in the expected state"
// or ErrAlertNotFound, depending on whether the alert exists.
func affected(ctx context.Context, res sql.Result, id string, get func(context.Context, string) (*alert.Alert, error)) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
