package alertstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/liquor-inventory/internal/domain/alert"
	"github.com/example/liquor-inventory/internal/infrastructure/store"
)

var baseTime = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

func newAlert(t *testing.T, accountID int64, createdAt time.Time) *alert.Alert {
	t.Helper()
	a, err := alert.New("Low stock", "Product 7 is running low", "WARNING", "stock-low", accountID, 7, 3, createdAt)
	require.NoError(t, err)
	return a
}

func runRepositoryContract(t *testing.T, repo alert.Repository) {
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		a := newAlert(t, 100, baseTime)
		require.NoError(t, repo.Save(ctx, a))

		got, err := repo.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.Title, got.Title)
		assert.Equal(t, a.Message, got.Message)
		assert.Equal(t, alert.SeverityWarning, got.Severity)
		assert.Equal(t, alert.StateActive, got.State)
		assert.Equal(t, int64(7), got.ProductID)
		assert.Equal(t, int64(3), got.WarehouseID)
		assert.True(t, baseTime.Equal(got.CreatedAt))
		assert.Nil(t, got.ReadAt)
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := repo.Get(ctx, "3f0c2b8e-0000-4000-8000-000000000000")
		assert.ErrorIs(t, err, alert.ErrAlertNotFound)
	})

	t.Run("list by account newest first", func(t *testing.T) {
		older := newAlert(t, 200, baseTime)
		newer := newAlert(t, 200, baseTime.Add(1500*time.Millisecond))
		other := newAlert(t, 201, baseTime)
		for _, a := range []*alert.Alert{older, newer, other} {
			require.NoError(t, repo.Save(ctx, a))
		}

		alerts, err := repo.ListByAccount(ctx, 200, "")
		require.NoError(t, err)
		require.Len(t, alerts, 2)
		assert.Equal(t, newer.ID, alerts[0].ID)
		assert.Equal(t, older.ID, alerts[1].ID)
	})

	t.Run("update state is conditional", func(t *testing.T) {
		a := newAlert(t, 300, baseTime)
		require.NoError(t, repo.Save(ctx, a))
		readAt := baseTime.Add(time.Hour)

		updated, err := repo.UpdateState(ctx, a.ID, alert.StateActive, alert.StateRead, readAt)
		require.NoError(t, err)
		assert.True(t, updated)

		updated, err = repo.UpdateState(ctx, a.ID, alert.StateActive, alert.StateRead, readAt)
		require.NoError(t, err)
		assert.False(t, updated)

		got, err := repo.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, alert.StateRead, got.State)
		require.NotNil(t, got.ReadAt)
		assert.True(t, readAt.Equal(*got.ReadAt))

		active, err := repo.ListByAccount(ctx, 300, alert.StateActive)
		require.NoError(t, err)
		assert.Empty(t, active)
		read, err := repo.ListByAccount(ctx, 300, alert.StateRead)
		require.NoError(t, err)
		assert.Len(t, read, 1)
	})

	t.Run("update unknown", func(t *testing.T) {
		_, err := repo.UpdateState(ctx, "3f0c2b8e-0000-4000-8000-000000000001", alert.StateActive, alert.StateRead, baseTime)
		assert.ErrorIs(t, err, alert.ErrAlertNotFound)
	})
}

func TestMemoryRepository(t *testing.T) {
	runRepositoryContract(t, NewMemoryRepository())
}

func TestMemoryRepository_DuplicateSave(t *testing.T) {
	repo := NewMemoryRepository()
	a := newAlert(t, 1, baseTime)
	require.NoError(t, repo.Save(context.Background(), a))

	assert.Error(t, repo.Save(context.Background(), a))
}

func TestSQLiteRepository(t *testing.T) {
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	defer repo.Close()

	runRepositoryContract(t, repo)
}

func TestSQLiteRepository_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "alerts.db")
	repo, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	a := newAlert(t, 1, baseTime)
	require.NoError(t, repo.Save(ctx, a))
	require.NoError(t, repo.Close())

	repo, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := store.ConnectPostgres(dsn)
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))
	_, err = db.Exec(`TRUNCATE alerts`)
	require.NoError(t, err)

	runRepositoryContract(t, repo)
}
