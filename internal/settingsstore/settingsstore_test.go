package settingsstore

import (
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

func setupTestStore(t *testing.T) (*SettingsStore, *settings.Repository) {
	t.Helper()
	dbPath := "./test_settings_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := database.NewQuietDatabase(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})

	// The environment layer is exercised explicitly per test.
	t.Setenv(EnvSyncEnabled, "")
	t.Setenv(EnvSyncSchedule, "")
	t.Setenv(EnvSyncDaysBack, "")

	repo := settings.NewRepository(db.DB)
	return New(repo), repo
}

func TestSyncEnabled(t *testing.T) {
	store, repo := setupTestStore(t)

	assert.True(t, store.GetSyncEnabled())
	assert.Equal(t, SourceDefault, store.GetSyncEnabledSource())

	t.Setenv(EnvSyncEnabled, "false")
	assert.False(t, store.GetSyncEnabled())
	assert.Equal(t, SourceEnvironment, store.GetSyncEnabledSource())

	// Database should override env
	require.NoError(t, store.SetSyncEnabled(true))
	assert.True(t, store.GetSyncEnabled())
	assert.Equal(t, SourceDatabase, store.GetSyncEnabledSource())

	require.NoError(t, repo.DeleteSetting(entities.SettingKeySyncEnabled))
	assert.False(t, store.GetSyncEnabled())
}

func TestSyncSchedule(t *testing.T) {
	store, _ := setupTestStore(t)

	assert.Equal(t, DefaultSyncSchedule, store.GetSyncSchedule())
	assert.Equal(t, SourceDefault, store.GetSyncScheduleSource())

	t.Setenv(EnvSyncSchedule, "0 7 * * *")
	assert.Equal(t, "0 7 * * *", store.GetSyncSchedule())
	assert.Equal(t, SourceEnvironment, store.GetSyncScheduleSource())

	require.NoError(t, store.SetSyncSchedule("@every 30m"))
	assert.Equal(t, "@every 30m", store.GetSyncSchedule())
	assert.Equal(t, SourceDatabase, store.GetSyncScheduleSource())

	t.Run("rejects invalid schedule", func(t *testing.T) {
		err := store.SetSyncSchedule("every tuesday")
		assert.Error(t, err)
		assert.Equal(t, "@every 30m", store.GetSyncSchedule())
	})
}

func TestLookbackDays(t *testing.T) {
	store, repo := setupTestStore(t)

	assert.Equal(t, DefaultLookbackDays, store.GetLookbackDays())

	t.Setenv(EnvSyncDaysBack, "14")
	assert.Equal(t, 14, store.GetLookbackDays())
	assert.Equal(t, SourceEnvironment, store.GetLookbackDaysSource())

	require.NoError(t, store.SetLookbackDays(3))
	assert.Equal(t, 3, store.GetLookbackDays())

	assert.Error(t, store.SetLookbackDays(-1))

	require.NoError(t, repo.SetSetting(entities.SettingKeySyncLookbackDays, "many"))
	assert.Equal(t, DefaultLookbackDays, store.GetLookbackDays())
}

func TestGetSyncConfigInfo(t *testing.T) {
	store, _ := setupTestStore(t)
	t.Setenv(EnvSyncDaysBack, "10")
	require.NoError(t, store.SetSyncSchedule("@daily"))

	info := store.GetSyncConfigInfo()

	assert.True(t, info.Enabled)
	assert.Equal(t, SourceDefault, info.EnabledSource)
	assert.Equal(t, "@daily", info.Schedule)
	assert.Equal(t, SourceDatabase, info.ScheduleSource)
	assert.Equal(t, "Daily at midnight", info.ScheduleDescription)
	assert.Equal(t, 10, info.LookbackDays)
	assert.Equal(t, SourceEnvironment, info.LookbackDaysSource)

	cfg := store.GetSyncConfig()
	assert.Equal(t, SyncConfig{Enabled: true, Schedule: "@daily", LookbackDays: 10}, cfg)
}

func TestClearSyncSettings(t *testing.T) {
	store, _ := setupTestStore(t)

	require.NoError(t, store.SetSyncEnabled(false))
	require.NoError(t, store.SetSyncSchedule("@every 5m"))
	require.NoError(t, store.SetLookbackDays(1))

	require.NoError(t, store.ClearSyncSettings())
	require.NoError(t, store.ClearSyncSettings())

	assert.Equal(t, SyncConfig{Enabled: DefaultSyncEnabled, Schedule: DefaultSyncSchedule, LookbackDays: DefaultLookbackDays}, store.GetSyncConfig())
}

func TestValidateCronSchedule(t *testing.T) {
	tests := []struct {
		schedule string
		valid    bool
	}{
		{"0 * * * *", true},
		{"*/15 * * * *", true},
		{"@hourly", true},
		{"@every 90m", true},
		{"* * * *", false},
		{"60 * * * *", false},
		{"", false},
		{"@every soon", false},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			err := ValidateCronSchedule(tt.schedule)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestGetCronDescription(t *testing.T) {
	assert.Equal(t, "Every hour", GetCronDescription("@every 1h"))
	assert.Equal(t, "Every 45m", GetCronDescription("@every 45m"))
	assert.Equal(t, "Every 6 hours", GetCronDescription("0 */6 * * *"))
	assert.Equal(t, "Custom schedule: 5 4 * * *", GetCronDescription("5 4 * * *"))
}

func TestGetNextRunTime(t *testing.T) {
	from := time.Date(2024, 1, 1, 10, 20, 0, 0, time.UTC)

	next, err := GetNextRunTime("0 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), *next)

	next, err = GetNextRunTime("@every 1h", from)
	require.NoError(t, err)
	assert.Equal(t, from.Add(time.Hour), *next)

	_, err = GetNextRunTime("bad", from)
	assert.Error(t, err)
}
