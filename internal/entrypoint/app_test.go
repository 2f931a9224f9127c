package entrypoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/highlightsync/internal/config"
	"github.com/mrlokans/highlightsync/internal/cursor"
	"github.com/mrlokans/highlightsync/internal/engine"
	"github.com/mrlokans/highlightsync/internal/entities"
	"github.com/mrlokans/highlightsync/internal/scheduler"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("SYNC_DAYS_BACK", "")
	t.Setenv("SYNC_ENABLED", "")
	t.Setenv("SYNC_SCHEDULE", "")
	dir := t.TempDir()
	return &config.Config{
		Database:    config.Database{Path: filepath.Join(dir, "test.db")},
		Readwise:    config.Readwise{Token: "rw-token", BaseURL: "http://127.0.0.1:1"},
		Twos:        config.Twos{UserID: "user", Token: "token"},
		Capacities:  config.Capacities{Token: "cap", SpaceID: "space"},
		Destination: config.Destination{Name: config.DestinationTwos},
		Cursor: config.Cursor{
			Backend:      config.CursorBackendFile,
			File:         filepath.Join(dir, "last_sync.json"),
			LookbackDays: 7,
		},
		Sync: config.Sync{Enabled: true, Schedule: "@every 1h"},
	}
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t)

	app, err := Build(cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "twos", app.Engine.Destination())
	assert.Equal(t, engine.StateIdle, app.Engine.State())
	assert.IsType(t, &cursor.FileStore{}, app.Cursors)
	assert.Nil(t, app.Reports)
	assert.Equal(t, 7*24*time.Hour, app.Engine.Lookback())

	// Lookback follows the runtime setting
	require.NoError(t, app.Settings.SetLookbackDays(2))
	assert.Equal(t, 2*24*time.Hour, app.Engine.Lookback())
}

func TestBuild_DatabaseCursorAndReports(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cursor.Backend = config.CursorBackendDatabase
	cfg.Destination.Name = config.DestinationCapacities
	cfg.Audit.Dir = filepath.Join(t.TempDir(), "reports")

	app, err := Build(cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "capacities", app.Engine.Destination())
	assert.IsType(t, &cursor.DatabaseStore{}, app.Cursors)
	assert.NotNil(t, app.Reports)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, app.Cursors.Write(context.Background(), at))
	got, err := app.Cursors.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, at.Equal(got))
}

func TestBuild_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Readwise.Token = ""

	_, err := Build(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READWISE_TOKEN")
}

func TestNewDestination(t *testing.T) {
	cfg := testConfig(t)

	dest, err := NewDestination(cfg)
	require.NoError(t, err)
	assert.Equal(t, "twos", dest.Name())

	cfg.Twos.Token = ""
	_, err = NewDestination(cfg)
	assert.Error(t, err)

	cfg.Destination.Name = "email"
	_, err = NewDestination(cfg)
	assert.Error(t, err)
}

func TestNewCursorStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cursor.Backend = "etcd"

	_, err := NewCursorStore(cfg, nil)
	assert.Error(t, err)
}

func TestCycleLockPath(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		file    string
		db      string
		want    string
	}{
		{name: "file backend", backend: config.CursorBackendFile, file: "/data/last_sync.json", db: "/data/app.db", want: "/data/last_sync.json.lock"},
		{name: "database backend", backend: config.CursorBackendDatabase, db: "/data/app.db", want: "/data/app.db.sync.lock"},
		{name: "database dsn", backend: config.CursorBackendDatabase, db: "file:/data/app.db?_busy_timeout=5000", want: "/data/app.db.sync.lock"},
		{name: "in-memory database", backend: config.CursorBackendDatabase, db: ":memory:", want: ""},
		{name: "shared memory dsn", backend: config.CursorBackendDatabase, db: "file:test?mode=memory&cache=shared", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Database: config.Database{Path: tt.db},
				Cursor:   config.Cursor{Backend: tt.backend, File: tt.file},
			}
			assert.Equal(t, tt.want, CycleLockPath(cfg))
		})
	}
}

func TestBuild_CycleLockHeldByAnotherProcess(t *testing.T) {
	for _, backend := range []string{config.CursorBackendFile, config.CursorBackendDatabase} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Cursor.Backend = backend

			app, err := Build(cfg)
			require.NoError(t, err)
			defer app.Close()

			other := flock.New(CycleLockPath(cfg))
			locked, err := other.TryLock()
			require.NoError(t, err)
			require.True(t, locked)

			_, err = app.Scheduler.TriggerNow(context.Background(), entities.SyncTriggerCLI)
			assert.ErrorIs(t, err, scheduler.ErrCycleInProgress)

			require.NoError(t, other.Unlock())
		})
	}
}
