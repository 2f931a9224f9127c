package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Readwise
		Twos
		Capacities
		Destination
		Cursor
		Sync
		Audit
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Readwise struct {
		Token   string
		BaseURL string
	}
	Twos struct {
		UserID  string
		Token   string
		BaseURL string
	}
	Capacities struct {
		Token   string
		SpaceID string
		BaseURL string
	}
	Destination struct {
		Name string // "twos" or "capacities"
	}
	Cursor struct {
		Backend      string // "file" or "database"
		File         string
		LookbackDays int // Used when no cursor has been stored yet
	}
	Sync struct {
		Enabled             bool
		Schedule            string // Cron expression or descriptor, e.g. "@every 1h"
		DeliveryAttempts    int
		RetryInitialDelay   time.Duration
		RetryMaxDelay       time.Duration
		FetchWorkers        int
		DeliveryConcurrency int
		DeliveryTimeout     time.Duration
		CycleTimeout        time.Duration // 0 disables the limit
		SkipTutorial        bool
	}
	Audit struct {
		Dir                 string // Cycle reports are written here when set
		RetentionDays       int    // Days to keep audit events (default: 30)
		LedgerRetentionDays int    // Days to keep delivered-item keys, 0 keeps them forever
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. An empty path falls back to ENV_FILE,
// then to ./.env; a missing default file is not an error.
func LoadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = os.Getenv("ENV_FILE")
		explicit = path != ""
	}
	if !explicit {
		path = DefaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	log.Printf("Config: loaded environment from %s", path)
	return nil
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8189)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 10)
	v.SetDefault("database_path", DefaultDatabasePath)

	v.SetDefault("readwise_base_url", "https://readwise.io")
	v.SetDefault("twos_api_url", "https://www.twosapp.com")
	v.SetDefault("capacities_api_url", "https://api.capacities.io")
	v.SetDefault("destination", DestinationTwos)

	// Cursor defaults
	v.SetDefault("cursor_backend", CursorBackendFile)
	v.SetDefault("last_sync_file", DefaultCursorFile)
	v.SetDefault("sync_days_back", 7)

	// Sync defaults
	v.SetDefault("sync_enabled", true)
	v.SetDefault("sync_schedule", "@every 1h")
	v.SetDefault("sync_delivery_attempts", 3)
	v.SetDefault("sync_retry_initial_delay", "1s")
	v.SetDefault("sync_retry_max_delay", "30s")
	v.SetDefault("sync_fetch_workers", 4)
	v.SetDefault("sync_delivery_concurrency", 2)
	v.SetDefault("sync_delivery_timeout", "30s")
	v.SetDefault("sync_cycle_timeout", "0s")
	v.SetDefault("sync_skip_tutorial", true)

	v.SetDefault("audit_dir", "")
	v.SetDefault("audit_retention_days", 30)
	v.SetDefault("ledger_retention_days", 0)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_release_after", "45m")
	v.SetDefault("task_cleanup_interval", "1h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Readwise: Readwise{
			Token:   v.GetString("READWISE_TOKEN"),
			BaseURL: v.GetString("READWISE_BASE_URL"),
		},
		Twos: Twos{
			UserID:  v.GetString("TWOS_USER_ID"),
			Token:   v.GetString("TWOS_TOKEN"),
			BaseURL: v.GetString("TWOS_API_URL"),
		},
		Capacities: Capacities{
			Token:   v.GetString("CAPACITIES_API_TOKEN"),
			SpaceID: v.GetString("CAPACITIES_SPACE_ID"),
			BaseURL: v.GetString("CAPACITIES_API_URL"),
		},
		Destination: Destination{
			Name: v.GetString("DESTINATION"),
		},
		Cursor: Cursor{
			Backend:      v.GetString("CURSOR_BACKEND"),
			File:         v.GetString("LAST_SYNC_FILE"),
			LookbackDays: v.GetInt("SYNC_DAYS_BACK"),
		},
		Sync: Sync{
			Enabled:             v.GetBool("SYNC_ENABLED"),
			Schedule:            v.GetString("SYNC_SCHEDULE"),
			DeliveryAttempts:    v.GetInt("SYNC_DELIVERY_ATTEMPTS"),
			RetryInitialDelay:   v.GetDuration("SYNC_RETRY_INITIAL_DELAY"),
			RetryMaxDelay:       v.GetDuration("SYNC_RETRY_MAX_DELAY"),
			FetchWorkers:        v.GetInt("SYNC_FETCH_WORKERS"),
			DeliveryConcurrency: v.GetInt("SYNC_DELIVERY_CONCURRENCY"),
			DeliveryTimeout:     v.GetDuration("SYNC_DELIVERY_TIMEOUT"),
			CycleTimeout:        v.GetDuration("SYNC_CYCLE_TIMEOUT"),
			SkipTutorial:        v.GetBool("SYNC_SKIP_TUTORIAL"),
		},
		Audit: Audit{
			Dir:                 v.GetString("AUDIT_DIR"),
			RetentionDays:       v.GetInt("AUDIT_RETENTION_DAYS"),
			LedgerRetentionDays: v.GetInt("LEDGER_RETENTION_DAYS"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
	}
}

// Validate reports configuration that makes a sync impossible.
func (c *Config) Validate() error {
	var errs []error
	if c.Readwise.Token == "" {
		errs = append(errs, errors.New("READWISE_TOKEN is not set"))
	}

	switch c.Destination.Name {
	case DestinationTwos:
		if c.Twos.UserID == "" || c.Twos.Token == "" {
			errs = append(errs, errors.New("TWOS_USER_ID and TWOS_TOKEN must be set"))
		}
	case DestinationCapacities:
		if c.Capacities.Token == "" || c.Capacities.SpaceID == "" {
			errs = append(errs, errors.New("CAPACITIES_API_TOKEN and CAPACITIES_SPACE_ID must be set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DESTINATION %q (want %s or %s)", c.Destination.Name, DestinationTwos, DestinationCapacities))
	}

	switch c.Cursor.Backend {
	case CursorBackendFile, CursorBackendDatabase:
	default:
		errs = append(errs, fmt.Errorf("unknown CURSOR_BACKEND %q (want %s or %s)", c.Cursor.Backend, CursorBackendFile, CursorBackendDatabase))
	}

	return errors.Join(errs...)
}
