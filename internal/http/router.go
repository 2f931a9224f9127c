package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Scheduler, cfg.Version)
	syncController := NewSyncController(cfg)
	auditController := NewAuditController(cfg.Audit)

	router.GET("/health", health.Status)

	api := router.Group("/api")
	{
		api.GET("/sync/status", syncController.Status)
		api.POST("/sync/run", syncController.Run)
		api.GET("/sync/run/:task_id", syncController.RunStatus)
		api.GET("/sync/settings", syncController.GetSettings)
		api.PUT("/sync/settings", syncController.UpdateSettings)
		api.POST("/sync/settings/reset", syncController.ResetSettings)
		api.GET("/sync/cursor", syncController.GetCursor)

		api.GET("/audit", auditController.GetAuditEvents)
	}

	return router
}
