package cursor

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/highlightsync/internal/database"
	"github.com/mrlokans/highlightsync/internal/database/settings"
	"github.com/mrlokans/highlightsync/internal/entities"
)

func setupSettings(t *testing.T) (*settings.Repository, func()) {
	t.Helper()
	dbPath := "./test_cursor_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := database.NewQuietDatabase(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return settings.NewRepository(db.DB), cleanup
}

func TestDatabaseStore_ReadMissing(t *testing.T) {
	repo, cleanup := setupSettings(t)
	defer cleanup()

	_, err := NewDatabaseStore(repo).Read(context.Background())
	assert.ErrorIs(t, err, ErrNoCursor)
}

func TestDatabaseStore_WriteThenRead(t *testing.T) {
	repo, cleanup := setupSettings(t)
	defer cleanup()
	store := NewDatabaseStore(repo)
	ctx := context.Background()

	cursor := time.Date(2024, 6, 1, 0, 0, 0, 42, time.UTC)
	require.NoError(t, store.Write(ctx, cursor))

	got, err := store.Read(ctx)
	require.NoError(t, err)
	assert.True(t, cursor.Equal(got))

	schema, err := repo.GetSetting(entities.SettingKeySyncCursorSchema)
	require.NoError(t, err)
	assert.Equal(t, "1", schema.Value)
}

func TestDatabaseStore_ReadCorrupt(t *testing.T) {
	repo, cleanup := setupSettings(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("bad timestamp", func(t *testing.T) {
		require.NoError(t, repo.SetSetting(entities.SettingKeySyncCursor, "not a time"))

		_, err := NewDatabaseStore(repo).Read(ctx)
		var storeErr *StoreError
		assert.ErrorAs(t, err, &storeErr)
	})

	t.Run("unknown schema", func(t *testing.T) {
		require.NoError(t, repo.SetSetting(entities.SettingKeySyncCursor, "2024-01-01T00:00:00Z"))
		require.NoError(t, repo.SetSetting(entities.SettingKeySyncCursorSchema, "7"))

		_, err := NewDatabaseStore(repo).Read(ctx)
		var storeErr *StoreError
		assert.ErrorAs(t, err, &storeErr)
		assert.ErrorIs(t, err, ErrUnsupportedSchema)
	})

	t.Run("garbled schema", func(t *testing.T) {
		require.NoError(t, repo.SetSetting(entities.SettingKeySyncCursorSchema, "v1"))

		_, err := NewDatabaseStore(repo).Read(ctx)
		var storeErr *StoreError
		assert.ErrorAs(t, err, &storeErr)
		assert.NotErrorIs(t, err, ErrUnsupportedSchema)
	})
}

func TestDatabaseStore_Reset(t *testing.T) {
	repo, cleanup := setupSettings(t)
	defer cleanup()
	store := NewDatabaseStore(repo)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, time.Now()))
	require.NoError(t, store.Reset(ctx))

	_, err := store.Read(ctx)
	assert.ErrorIs(t, err, ErrNoCursor)
}
