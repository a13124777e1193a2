package alertstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"

	"github.com/example/liquor-inventory/internal/domain/alert"
)

// timeLayout is fixed width so text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository stores alerts in an embedded SQLite database.
// Timestamps are kept as UTC text.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	r := &SQLiteRepository{db: db}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS alerts (
			id           TEXT PRIMARY KEY,
			title        TEXT    NOT NULL,
			message      TEXT    NOT NULL,
			severity     TEXT    NOT NULL,
			type         TEXT    NOT NULL,
			state        TEXT    NOT NULL,
			account_id   INTEGER NOT NULL,
			product_id   INTEGER NOT NULL,
			warehouse_id INTEGER NOT NULL,
			created_at   TEXT    NOT NULL,
			read_at      TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_account ON alerts (account_id, created_at);`)
	if err != nil {
		return fmt.Errorf("failed to migrate alerts: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Save(ctx context.Context, a *alert.Alert) error {
	var readAt sql.NullString
	if a.ReadAt != nil {
		readAt = sql.NullString{String: formatTime(*a.ReadAt), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (id, title, message, severity, type, state, account_id, product_id, warehouse_id, created_at, read_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Message, string(a.Severity), a.Type, string(a.State),
		a.AccountID, a.ProductID, a.WarehouseID, formatTime(a.CreatedAt), readAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

const selectSQLiteAlerts = `SELECT id, title, message, severity, type, state, account_id, product_id, warehouse_id, created_at, read_at FROM alerts`

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*alert.Alert, error) {
	a, err := scanSQLiteAlert(r.db.QueryRowContext(ctx, selectSQLiteAlerts+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", alert.ErrAlertNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListByAccount(ctx context.Context, accountID int64, state alert.State) ([]*alert.Alert, error) {
	rows, err := r.db.QueryContext(ctx,
		selectSQLiteAlerts+` WHERE account_id = ? AND (? = '' OR state = ?) ORDER BY created_at DESC, id`,
		accountID, string(state), string(state),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*alert.Alert
	for rows.Next() {
		a, err := scanSQLiteAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, from, to alert.State, at time.Time) (bool, error) {
	readAt := sql.NullString{}
	if to == alert.StateRead {
		readAt = sql.NullString{String: formatTime(at), Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET state = ?, read_at = COALESCE(?, read_at) WHERE id = ? AND state = ?`,
		string(to), readAt, id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update alert %s: %w", id, err)
	}
	return affected(ctx, res, id, r.Get)
}

func scanSQLiteAlert(row rowScanner) (*alert.Alert, error) {
	var a alert.Alert
	var severity, state, createdAt string
	var readAt sql.NullString
	err := row.Scan(&a.ID, &a.Title, &a.Message, &severity, &a.Type, &state,
		&a.AccountID, &a.ProductID, &a.WarehouseID, &createdAt, &readAt)
	if err != nil {
		return nil, err
	}
	a.Severity = alert.Severity(severity)
	a.State = alert.State(state)
	if a.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	if readAt.Valid {
		t, err := time.Parse(timeLayout, readAt.String)
		if err != nil {
			return nil, fmt.Errorf("bad read_at %q: %w", readAt.String, err)
		}
		a.ReadAt = &t
	}
	return &a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
