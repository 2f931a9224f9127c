package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/highlightsync/internal/cursor"
	"github.com/mrlokans/highlightsync/internal/entities"
	"github.com/mrlokans/highlightsync/internal/scheduler"
	"github.com/mrlokans/highlightsync/internal/settingsstore"
)

// SyncController exposes the scheduler, the runtime sync settings and the
// stored cursor.
type SyncController struct {
	scheduler     SyncScheduler
	settings      SyncSettingsStore
	cursors       CursorReader
	queue         SyncQueue
	auditor       SettingsAuditor
	cursorBackend string
	destination   string
	now           func() time.Time
}

func NewSyncController(cfg RouterConfig) *SyncController {
	return &SyncController{
		scheduler:     cfg.Scheduler,
		settings:      cfg.Settings,
		cursors:       cfg.Cursors,
		queue:         cfg.TaskQueue,
		auditor:       cfg.Auditor,
		cursorBackend: cfg.CursorBackend,
		destination:   cfg.Destination,
		now:           time.Now,
	}
}

// SyncStatusResponse wraps the scheduler status with the destination name.
type SyncStatusResponse struct {
	scheduler.Status
	Destination string `json:"destination,omitempty"`
}

// Status returns the scheduler status.
// GET /api/sync/status
func (sc *SyncController) Status(c *gin.Context) {
	if sc.scheduler == nil {
		respondUnavailable(c, "scheduler")
		return
	}
	c.JSON(http.StatusOK, SyncStatusResponse{
		Status:      sc.scheduler.Status(),
		Destination: sc.destination,
	})
}

// RunResponse is returned by the manual trigger endpoint.
type RunResponse struct {
	Started bool   `json:"started"`
	Queued  bool   `json:"queued"`
	TaskID  string `json:"task_id,omitempty"`
}

// Run starts a cycle in the background. When one is already running the
// trigger is queued if a task queue is available and rejected otherwise.
// POST /api/sync/run
func (sc *SyncController) Run(c *gin.Context) {
	if sc.scheduler == nil {
		respondUnavailable(c, "scheduler")
		return
	}

	err := sc.scheduler.RunNow(entities.SyncTriggerManual)
	switch {
	case err == nil:
		respondAccepted(c, "Sync started", RunResponse{Started: true})

	case errors.Is(err, scheduler.ErrCycleInProgress):
		if sc.queue == nil {
			respondError(c, http.StatusConflict, CodeCycleInProgress, err.Error())
			return
		}
		taskID, qErr := sc.queue.EnqueueSync(c.Request.Context())
		if qErr != nil {
			respondInternalError(c, qErr, "enqueue sync")
			return
		}
		log.Printf("Sync API: cycle in progress, queued task %s", taskID)
		respondAccepted(c, "Sync queued", RunResponse{Queued: true, TaskID: taskID})

	case errors.Is(err, scheduler.ErrStopped):
		respondError(c, http.StatusServiceUnavailable, CodeSchedulerDown, err.Error())

	default:
		respondInternalError(c, err, "run sync")
	}
}

// QueuedRunResponse reports the state of a queued manual trigger.
type QueuedRunResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// RunStatus reports whether a queued manual trigger has run yet.
// GET /api/sync/run/:task_id
func (sc *SyncController) RunStatus(c *gin.Context) {
	if sc.queue == nil {
		respondUnavailable(c, "task queue")
		return
	}

	taskID := c.Param("task_id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := sc.queue.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "queued sync status")
		return
	}
	if status == backlite.TaskStatusNotFound {
		respondError(c, http.StatusNotFound, CodeNotFound, "queued sync not found")
		return
	}

	c.JSON(http.StatusOK, QueuedRunResponse{TaskID: taskID, Status: taskStatusString(status)})
}

func taskStatusString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// GetSettings returns the runtime sync settings with their sources.
// GET /api/sync/settings
func (sc *SyncController) GetSettings(c *gin.Context) {
	if sc.settings == nil {
		respondUnavailable(c, "settings store")
		return
	}
	c.JSON(http.StatusOK, sc.settings.GetSyncConfigInfo())
}

// UpdateSyncSettingsRequest is the body of PUT /api/sync/settings. Omitted
// fields keep their current value.
type UpdateSyncSettingsRequest struct {
	Enabled      *bool   `json:"enabled"`
	Schedule     *string `json:"schedule"`
	LookbackDays *int    `json:"lookback_days"`
}

// UpdateSettings validates and saves sync settings, then reschedules.
// PUT /api/sync/settings
func (sc *SyncController) UpdateSettings(c *gin.Context) {
	if sc.settings == nil {
		respondUnavailable(c, "settings store")
		return
	}

	var req UpdateSyncSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	// Validate everything before writing anything.
	var schedule string
	if req.Schedule != nil {
		schedule = strings.TrimSpace(*req.Schedule)
		if err := settingsstore.ValidateCronSchedule(schedule); err != nil {
			respondError(c, http.StatusBadRequest, CodeInvalidSettings, fmt.Sprintf("invalid schedule %q: %v", schedule, err))
			return
		}
	}
	if req.LookbackDays != nil {
		if err := settingsstore.ValidateLookbackDays(*req.LookbackDays); err != nil {
			respondError(c, http.StatusBadRequest, CodeInvalidSettings, err.Error())
			return
		}
	}

	var changes []string
	if req.Enabled != nil {
		if err := sc.settings.SetSyncEnabled(*req.Enabled); err != nil {
			respondInternalError(c, err, "save sync enabled")
			return
		}
		changes = append(changes, fmt.Sprintf("enabled=%t", *req.Enabled))
	}
	if req.Schedule != nil {
		if err := sc.settings.SetSyncSchedule(schedule); err != nil {
			respondInternalError(c, err, "save sync schedule")
			return
		}
		changes = append(changes, "schedule="+schedule)
	}
	if req.LookbackDays != nil {
		if err := sc.settings.SetLookbackDays(*req.LookbackDays); err != nil {
			respondInternalError(c, err, "save lookback days")
			return
		}
		changes = append(changes, fmt.Sprintf("lookback_days=%d", *req.LookbackDays))
	}

	if len(changes) == 0 {
		respondBadRequest(c, "no settings provided")
		return
	}

	sc.afterSettingsChange(c, "update_sync_settings", "Updated sync settings: "+strings.Join(changes, ", "))
}

// ResetSettings removes database overrides, reverting to environment and
// defaults.
// POST /api/sync/settings/reset
func (sc *SyncController) ResetSettings(c *gin.Context) {
	if sc.settings == nil {
		respondUnavailable(c, "settings store")
		return
	}
	if err := sc.settings.ClearSyncSettings(); err != nil {
		respondInternalError(c, err, "reset sync settings")
		return
	}
	sc.afterSettingsChange(c, "reset_sync_settings", "Reset sync settings to environment/defaults")
}

func (sc *SyncController) afterSettingsChange(c *gin.Context, action, description string) {
	if sc.auditor != nil {
		sc.auditor.LogSettings(action, description)
	}

	if sc.scheduler != nil {
		if err := sc.scheduler.Reschedule(); err != nil && !errors.Is(err, scheduler.ErrStopped) {
			// Settings were validated, so this is unexpected.
			respondInternalError(c, err, "reschedule")
			return
		}
	}

	c.JSON(http.StatusOK, sc.settings.GetSyncConfigInfo())
}

// CursorResponse describes where the next cycle will start.
type CursorResponse struct {
	Cursor        time.Time `json:"cursor"`
	Stored        bool      `json:"stored"`
	State         string    `json:"state"`
	Backend       string    `json:"backend,omitempty"`
	SchemaVersion int       `json:"schema_version"`
	LookbackDays  int       `json:"lookback_days"`
}

// GetCursor returns the stored cursor, or the lookback default the next
// cycle would use when none is stored or the store is unreadable.
// GET /api/sync/cursor
func (sc *SyncController) GetCursor(c *gin.Context) {
	if sc.cursors == nil {
		respondUnavailable(c, "cursor store")
		return
	}

	lookbackDays := settingsstore.DefaultLookbackDays
	if sc.settings != nil {
		lookbackDays = sc.settings.GetLookbackDays()
	}

	at, outcome := cursor.Resolve(c.Request.Context(), sc.cursors, cursor.LookbackDays(lookbackDays), sc.now())
	c.JSON(http.StatusOK, CursorResponse{
		Cursor:        at,
		Stored:        outcome == cursor.Stored,
		State:         outcome.String(),
		Backend:       sc.cursorBackend,
		SchemaVersion: cursor.SchemaVersion,
		LookbackDays:  lookbackDays,
	})
}
