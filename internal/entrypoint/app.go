package entrypoint

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/mrlokans/highlightsync/internal/audit"
	"github.com/mrlokans/highlightsync/internal/capacities"
	"github.com/mrlokans/highlightsync/internal/config"
	"github.com/mrlokans/highlightsync/internal/cursor"
	"github.com/mrlokans/highlightsync/internal/database"
	auditrepo "github.com/mrlokans/highlightsync/internal/database/audit"
	"github.com/mrlokans/highlightsync/internal/database/ledger"
	"github.com/mrlokans/highlightsync/internal/database/settings"
	"github.com/mrlokans/highlightsync/internal/delivery"
	"github.com/mrlokans/highlightsync/internal/engine"
	"github.com/mrlokans/highlightsync/internal/readwise"
	"github.com/mrlokans/highlightsync/internal/scheduler"
	"github.com/mrlokans/highlightsync/internal/settingsstore"
	"github.com/mrlokans/highlightsync/internal/twos"
)

// App holds the components shared by the server and the CLI commands.
type App struct {
	Config    *config.Config
	DB        *database.Database
	Settings  *settingsstore.SettingsStore
	Cursors   cursor.Store
	Ledger    *ledger.Repository
	Audit     *audit.Service
	Reports   *audit.Auditor // nil unless AUDIT_DIR is set
	Engine    *engine.Engine
	Scheduler *scheduler.Scheduler
}

// Build validates cfg and wires the sync engine, its stores and the
// scheduler. The scheduler is created but not started.
func Build(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app, err := wire(cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return app, nil
}

func wire(cfg *config.Config, db *database.Database) (*App, error) {
	settingsRepo := settings.NewRepository(db.DB)
	settingsStore := settingsstore.New(settingsRepo)

	cursors, err := NewCursorStore(cfg, settingsRepo)
	if err != nil {
		return nil, err
	}

	dest, err := NewDestination(cfg)
	if err != nil {
		return nil, err
	}

	source := readwise.NewSource(readwise.NewClient(cfg.Readwise.Token, cfg.Readwise.BaseURL), cfg.Sync.SkipTutorial)

	eng := engine.New(source, dest, cursors, engine.Config{
		Lookback:            cursor.LookbackDays(cfg.Cursor.LookbackDays),
		DeliveryAttempts:    cfg.Sync.DeliveryAttempts,
		RetryInitialDelay:   cfg.Sync.RetryInitialDelay,
		RetryMaxDelay:       cfg.Sync.RetryMaxDelay,
		FetchWorkers:        cfg.Sync.FetchWorkers,
		DeliveryConcurrency: cfg.Sync.DeliveryConcurrency,
		DeliveryTimeout:     cfg.Sync.DeliveryTimeout,
	})

	deliveredItems := ledger.NewRepository(db.DB)
	eng.SetLedger(deliveredItems)
	eng.SetLookbackFunc(func() time.Duration {
		return cursor.LookbackDays(settingsStore.GetLookbackDays())
	})

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))

	sched := scheduler.New(eng, settingsStore, cfg.Sync.CycleTimeout)
	sched.SetRecorder(auditService)
	if path := CycleLockPath(cfg); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cycle lock directory: %w", err)
		}
		sched.SetProcessLock(flock.New(path))
	}

	var reports *audit.Auditor
	if cfg.Audit.Dir != "" {
		reports = audit.NewAuditor(cfg.Audit.Dir)
		sched.SetReportWriter(reports)
		log.Printf("Cycle reports will be written to %s", cfg.Audit.Dir)
	}

	return &App{
		Config:    cfg,
		DB:        db,
		Settings:  settingsStore,
		Cursors:   cursors,
		Ledger:    deliveredItems,
		Audit:     auditService,
		Reports:   reports,
		Engine:    eng,
		Scheduler: sched,
	}, nil
}

// Close stops the scheduler, flushes pending audit writes and closes the
// database.
func (a *App) Close() {
	a.Scheduler.Stop()
	a.Audit.Wait()
	if err := a.DB.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}

// NewDestination returns the delivery client selected by DESTINATION.
func NewDestination(cfg *config.Config) (delivery.Client, error) {
	switch cfg.Destination.Name {
	case config.DestinationTwos:
		client, err := twos.NewClient(twos.Config{
			UserID:  cfg.Twos.UserID,
			Token:   cfg.Twos.Token,
			BaseURL: cfg.Twos.BaseURL,
			Timeout: cfg.Sync.DeliveryTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("twos: %w", err)
		}
		return client, nil
	case config.DestinationCapacities:
		client, err := capacities.NewClient(capacities.Config{
			Token:   cfg.Capacities.Token,
			SpaceID: cfg.Capacities.SpaceID,
			BaseURL: cfg.Capacities.BaseURL,
			Timeout: cfg.Sync.DeliveryTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("capacities: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown destination %q", cfg.Destination.Name)
	}
}

// NewCursorStore returns the cursor backend selected by CURSOR_BACKEND.
func NewCursorStore(cfg *config.Config, repo cursor.SettingsRepository) (cursor.Store, error) {
	switch cfg.Cursor.Backend {
	case config.CursorBackendFile:
		return cursor.NewFileStore(cfg.Cursor.File), nil
	case config.CursorBackendDatabase:
		return cursor.NewDatabaseStore(repo), nil
	default:
		return nil, fmt.Errorf("unknown cursor backend %q", cfg.Cursor.Backend)
	}
}

// CycleLockPath returns the lock file that keeps processes sharing a cursor
// store from running cycles at the same time. It is empty for in-memory
// databases, which no other process can reach.
func CycleLockPath(cfg *config.Config) string {
	if cfg.Cursor.Backend == config.CursorBackendFile {
		return cfg.Cursor.File + ".lock"
	}

	path, _, _ := strings.Cut(cfg.Database.Path, "?")
	path = strings.TrimPrefix(path, "file:")
	if path == "" || strings.HasPrefix(path, ":memory:") || strings.Contains(cfg.Database.Path, "mode=memory") {
		return ""
	}
	return path + ".sync.lock"
}
