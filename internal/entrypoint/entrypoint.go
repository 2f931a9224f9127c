package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/highlightsync/internal/config"
	http_controllers "github.com/mrlokans/highlightsync/internal/http"
	"github.com/mrlokans/highlightsync/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// cleanupSchedule is when audit and ledger retention runs.
const cleanupSchedule = "@daily"

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work first so the last cycle can finish its in-flight
	// deliveries and record its result.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting highlightsync v%s (destination: %s, cursor: %s)", version, cfg.Destination.Name, cfg.Cursor.Backend)

	app, err := Build(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	var maintenance *cron.Cron
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		})
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewSyncNowQueue(app.Scheduler),
			tasks.NewCleanupAuditEventsQueue(app.Audit, app.Ledger),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		maintenance = scheduleCleanup(taskClient, cfg)
	}

	if err := app.Scheduler.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start sync scheduler: %v", err)
	}

	var taskQueue http_controllers.SyncQueue
	if taskClient != nil {
		taskQueue = taskClient
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:      app.DB,
		Scheduler:     app.Scheduler,
		Settings:      app.Settings,
		Cursors:       app.Cursors,
		Audit:         app.Audit,
		Auditor:       app.Audit,
		TaskQueue:     taskQueue,
		CursorBackend: cfg.Cursor.Backend,
		Destination:   app.Engine.Destination(),
		Version:       version,
	})

	onShutdown := func(ctx context.Context) {
		if maintenance != nil {
			maintenance.Stop()
		}
		app.Scheduler.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}

// scheduleCleanup enqueues a retention pass at startup and then daily.
func scheduleCleanup(taskClient *tasks.Client, cfg *config.Config) *cron.Cron {
	task := tasks.CleanupAuditEventsTask{
		RetentionDays:       cfg.Audit.RetentionDays,
		LedgerRetentionDays: cfg.Audit.LedgerRetentionDays,
	}
	enqueue := func() {
		if err := taskClient.EnqueueCleanup(context.Background(), task); err != nil {
			log.Printf("Maintenance: %v", err)
		}
	}

	enqueue()

	c := cron.New()
	if _, err := c.AddFunc(cleanupSchedule, enqueue); err != nil {
		log.Printf("Maintenance: failed to schedule cleanup: %v", err)
		return nil
	}
	c.Start()
	return c
}
