package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/highlightsync/internal/database"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
	Stats   *database.Stats   `json:"stats,omitempty"`
}

type HealthController struct {
	db        HealthStore
	scheduler SyncScheduler
	version   string
}

func NewHealthController(db HealthStore, scheduler SyncScheduler, version string) *HealthController {
	return &HealthController{
		db:        db,
		scheduler: scheduler,
		version:   version,
	}
}

// Status reports database connectivity and scheduler state.
// GET /health
func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	var stats *database.Stats
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
			if s, err := h.db.GetStats(); err == nil {
				stats = &s
			}
		}
	} else {
		checks["database"] = "not configured"
	}

	// A stopped scheduler still serves manual triggers, so it only degrades.
	if h.scheduler != nil {
		schedStatus := h.scheduler.Status()
		switch {
		case !h.scheduler.IsRunning():
			checks["scheduler"] = "stopped"
		case schedStatus.IsSyncing:
			checks["scheduler"] = "syncing"
		default:
			checks["scheduler"] = "ok"
		}
		if schedStatus.LastResult != nil {
			checks["last_cycle"] = string(schedStatus.LastResult.Status)
		}
	} else {
		checks["scheduler"] = "not configured"
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
		Stats:   stats,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
