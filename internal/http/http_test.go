package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/highlightsync/internal/audit"
	"github.com/mrlokans/highlightsync/internal/cursor"
	"github.com/mrlokans/highlightsync/internal/database"
	auditrepo "github.com/mrlokans/highlightsync/internal/database/audit"
	"github.com/mrlokans/highlightsync/internal/database/settings"
	"github.com/mrlokans/highlightsync/internal/engine"
	"github.com/mrlokans/highlightsync/internal/entities"
	"github.com/mrlokans/highlightsync/internal/scheduler"
	"github.com/mrlokans/highlightsync/internal/settingsstore"
)

type fakeScheduler struct {
	mu            sync.Mutex
	runErr        error
	runs          int
	reschedules   int
	rescheduleErr error
	running       bool
	status        scheduler.Status
}

func (f *fakeScheduler) Status() scheduler.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeScheduler) RunNow(trigger entities.SyncTrigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	return f.runErr
}

func (f *fakeScheduler) Reschedule() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reschedules++
	return f.rescheduleErr
}

func (f *fakeScheduler) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

type fakeQueue struct {
	enqueued  int
	err       error
	statuses  map[string]backlite.TaskStatus
	statusErr error
}

func (f *fakeQueue) Status(ctx context.Context, taskID string) (backlite.TaskStatus, error) {
	if f.statusErr != nil {
		return backlite.TaskStatusNotFound, f.statusErr
	}
	if status, ok := f.statuses[taskID]; ok {
		return status, nil
	}
	return backlite.TaskStatusNotFound, nil
}

func (f *fakeQueue) EnqueueSync(ctx context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.enqueued++
	return "task-1", nil
}

type testEnv struct {
	router    *gin.Engine
	db        *database.Database
	scheduler *fakeScheduler
	settings  *settingsstore.SettingsStore
	cursors   *cursor.DatabaseStore
	audit     *audit.Service
}

func setupTestEnv(t *testing.T, queue SyncQueue) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := "./test_http_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := database.NewQuietDatabase(dbPath)
	require.NoError(t, err)

	t.Setenv(settingsstore.EnvSyncEnabled, "")
	t.Setenv(settingsstore.EnvSyncSchedule, "")
	t.Setenv(settingsstore.EnvSyncDaysBack, "")

	settingsRepo := settings.NewRepository(db.DB)
	env := &testEnv{
		db:        db,
		scheduler: &fakeScheduler{running: true, status: scheduler.Status{IsRunning: true, Enabled: true, Schedule: "@every 1h", State: engine.StateIdle}},
		settings:  settingsstore.New(settingsRepo),
		cursors:   cursor.NewDatabaseStore(settingsRepo),
		audit:     audit.NewService(auditrepo.NewRepository(db.DB)),
	}

	t.Cleanup(func() {
		env.audit.Wait()
		db.Close()
		os.Remove(dbPath)
	})

	cfg := RouterConfig{
		Database:      db,
		Scheduler:     env.scheduler,
		Settings:      env.settings,
		Cursors:       env.cursors,
		Audit:         env.audit,
		Auditor:       env.audit,
		CursorBackend: "database",
		Destination:   "twos",
		Version:       "test",
	}
	if queue != nil {
		cfg.TaskQueue = queue
	}
	env.router = NewRouter(cfg)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		env := setupTestEnv(t, nil)

		w := env.do(t, "GET", "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var response HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "test", response.Version)
		assert.Equal(t, "ok", response.Checks["database"])
		assert.Equal(t, "ok", response.Checks["scheduler"])
		require.NotNil(t, response.Stats)
		assert.Equal(t, int64(0), response.Stats.DeliveredItems)
	})

	t.Run("reports last cycle and stopped scheduler", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		env.scheduler.running = false
		env.scheduler.status.LastResult = &entities.SyncResult{Status: entities.SyncStatusPartiallyFailed}

		w := env.do(t, "GET", "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var response HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "stopped", response.Checks["scheduler"])
		assert.Equal(t, "partially_failed", response.Checks["last_cycle"])
	})

	t.Run("unhealthy when database is closed", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		env.db.Close()

		w := env.do(t, "GET", "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "unhealthy", response.Status)
		assert.Contains(t, response.Checks["database"], "error")
	})

	t.Run("nothing configured", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.GET("/health", NewHealthController(nil, nil, "1.0.0").Status)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/health", nil)
		router.ServeHTTP(w, req)

		var response HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "not configured", response.Checks["database"])
		assert.Equal(t, "not configured", response.Checks["scheduler"])
	})
}

func TestSyncStatus(t *testing.T) {
	env := setupTestEnv(t, nil)
	finished := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	env.scheduler.status.LastResult = &entities.SyncResult{
		CycleID:             "abc",
		Status:              entities.SyncStatusFailed,
		FinishedAt:          finished,
		HighlightsDelivered: 0,
		HighlightsFailed:    2,
	}

	w := env.do(t, "GET", "/api/sync/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "twos", body["destination"])
	assert.Equal(t, "@every 1h", body["schedule"])
	assert.Equal(t, true, body["is_running"])

	last, ok := body["last_result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "failed", last["status"])
	assert.Equal(t, float64(2), last["highlights_failed"])
}

func TestSyncRun(t *testing.T) {
	t.Run("starts a cycle", func(t *testing.T) {
		env := setupTestEnv(t, nil)

		w := env.do(t, "POST", "/api/sync/run", nil)
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, 1, env.scheduler.runs)

		var response struct {
			Data RunResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Data.Started)
	})

	t.Run("conflict without a queue", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		env.scheduler.runErr = scheduler.ErrCycleInProgress

		w := env.do(t, "POST", "/api/sync/run", nil)
		assert.Equal(t, http.StatusConflict, w.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, CodeCycleInProgress, response.Code)
	})

	t.Run("queued when busy", func(t *testing.T) {
		queue := &fakeQueue{}
		env := setupTestEnv(t, queue)
		env.scheduler.runErr = scheduler.ErrCycleInProgress

		w := env.do(t, "POST", "/api/sync/run", nil)
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, 1, queue.enqueued)

		var response struct {
			Data RunResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Data.Queued)
		assert.Equal(t, "task-1", response.Data.TaskID)
	})

	t.Run("queue failure", func(t *testing.T) {
		env := setupTestEnv(t, &fakeQueue{err: errors.New("disk full")})
		env.scheduler.runErr = scheduler.ErrCycleInProgress

		w := env.do(t, "POST", "/api/sync/run", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("stopped scheduler", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		env.scheduler.runErr = scheduler.ErrStopped

		w := env.do(t, "POST", "/api/sync/run", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestSyncRunStatus(t *testing.T) {
	t.Run("reports a queued trigger", func(t *testing.T) {
		queue := &fakeQueue{statuses: map[string]backlite.TaskStatus{
			"task-1": backlite.TaskStatusPending,
			"task-2": backlite.TaskStatusSuccess,
		}}
		env := setupTestEnv(t, queue)

		for id, want := range map[string]string{"task-1": "pending", "task-2": "success"} {
			w := env.do(t, "GET", "/api/sync/run/"+id, nil)
			require.Equal(t, http.StatusOK, w.Code)

			var response QueuedRunResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, id, response.TaskID)
			assert.Equal(t, want, response.Status)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		env := setupTestEnv(t, &fakeQueue{})

		w := env.do(t, "GET", "/api/sync/run/missing", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, CodeNotFound, response.Code)
	})

	t.Run("queue error", func(t *testing.T) {
		env := setupTestEnv(t, &fakeQueue{statusErr: errors.New("database is locked")})

		w := env.do(t, "GET", "/api/sync/run/task-1", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("no queue", func(t *testing.T) {
		env := setupTestEnv(t, nil)

		w := env.do(t, "GET", "/api/sync/run/task-1", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestSyncSettings(t *testing.T) {
	t.Run("get defaults", func(t *testing.T) {
		env := setupTestEnv(t, nil)

		w := env.do(t, "GET", "/api/sync/settings", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var info settingsstore.SyncConfigInfo
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
		assert.True(t, info.Enabled)
		assert.Equal(t, settingsstore.DefaultSyncSchedule, info.Schedule)
		assert.Equal(t, settingsstore.SourceDefault, info.ScheduleSource)
		assert.Equal(t, 7, info.LookbackDays)
	})

	t.Run("update reschedules and audits", func(t *testing.T) {
		env := setupTestEnv(t, nil)

		w := env.do(t, "PUT", "/api/sync/settings", map[string]any{
			"enabled":       false,
			"schedule":      "*/30 * * * *",
			"lookback_days": 3,
		})
		require.Equal(t, http.StatusOK, w.Code)

		var info settingsstore.SyncConfigInfo
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
		assert.False(t, info.Enabled)
		assert.Equal(t, "*/30 * * * *", info.Schedule)
		assert.Equal(t, settingsstore.SourceDatabase, info.ScheduleSource)
		assert.Equal(t, 3, info.LookbackDays)
		assert.Equal(t, 1, env.scheduler.reschedules)

		env.audit.Wait()
		events, total, err := env.audit.GetEventsByType(entities.AuditEventSettings, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Contains(t, events[0].Description, "schedule=*/30 * * * *")
	})

	t.Run("invalid schedule writes nothing", func(t *testing.T) {
		env := setupTestEnv(t, nil)

		w := env.do(t, "PUT", "/api/sync/settings", map[string]any{
			"enabled":  false,
			"schedule": "every now and then",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.True(t, env.settings.GetSyncEnabled())
		assert.Equal(t, 0, env.scheduler.reschedules)
	})

	t.Run("invalid lookback", func(t *testing.T) {
		env := setupTestEnv(t, nil)

		w := env.do(t, "PUT", "/api/sync/settings", map[string]any{"lookback_days": -1})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty update", func(t *testing.T) {
		env := setupTestEnv(t, nil)

		w := env.do(t, "PUT", "/api/sync/settings", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("reset", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		require.NoError(t, env.settings.SetSyncSchedule("@daily"))

		w := env.do(t, "POST", "/api/sync/settings/reset", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, settingsstore.DefaultSyncSchedule, env.settings.GetSyncSchedule())
		assert.Equal(t, 1, env.scheduler.reschedules)
	})
}

func TestSyncCursor(t *testing.T) {
	t.Run("lookback default when nothing stored", func(t *testing.T) {
		env := setupTestEnv(t, nil)

		w := env.do(t, "GET", "/api/sync/cursor", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var response CursorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.False(t, response.Stored)
		assert.Equal(t, "absent", response.State)
		assert.Equal(t, 7, response.LookbackDays)
		assert.Equal(t, "database", response.Backend)
		assert.WithinDuration(t, time.Now().Add(-7*24*time.Hour), response.Cursor, time.Minute)
	})

	t.Run("stored cursor", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		stored := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
		require.NoError(t, env.cursors.Write(context.Background(), stored))

		w := env.do(t, "GET", "/api/sync/cursor", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var response CursorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Stored)
		assert.Equal(t, "stored", response.State)
		assert.True(t, stored.Equal(response.Cursor))
		assert.Equal(t, cursor.SchemaVersion, response.SchemaVersion)
	})
}

func TestAuditEvents(t *testing.T) {
	env := setupTestEnv(t, nil)
	for range 3 {
		env.audit.LogCycle(entities.SyncResult{CycleID: "c", Status: entities.SyncStatusSucceeded}, "twos")
	}
	env.audit.LogSettings("update_sync_settings", "changed")
	env.audit.Wait()

	w := env.do(t, "GET", "/api/audit?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Events  []entities.AuditEvent `json:"events"`
		Total   int64                 `json:"total"`
		Limit   int                   `json:"limit"`
		HasMore bool                  `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Events, 2)
	assert.Equal(t, int64(4), body.Total)
	assert.True(t, body.HasMore)

	w = env.do(t, "GET", "/api/audit?type=sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(3), body.Total)
	assert.False(t, body.HasMore)
}

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 25, 0},
		{"limit=10&offset=20", 10, 20},
		{"limit=0", 25, 0},
		{"limit=500", 25, 0},
		{"limit=abc&offset=-3", 25, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request, _ = http.NewRequest("GET", "/?"+tt.query, nil)

			limit, offset := parsePagination(c)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
