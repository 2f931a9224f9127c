package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/highlightsync/internal/audit"
	"github.com/mrlokans/highlightsync/internal/config"
	"github.com/mrlokans/highlightsync/internal/cursor"
	"github.com/mrlokans/highlightsync/internal/database"
	auditrepo "github.com/mrlokans/highlightsync/internal/database/audit"
	"github.com/mrlokans/highlightsync/internal/database/settings"
	"github.com/mrlokans/highlightsync/internal/entrypoint"
	"github.com/mrlokans/highlightsync/internal/settingsstore"
)

// StatusCommand prints the sync settings, the cursor and the last recorded
// cycle from the database.
type StatusCommand struct {
	EnvFile string

	Out io.Writer
}

func NewStatusCommand() *StatusCommand {
	return &StatusCommand{}
}

func (cmd *StatusCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)

	envFileFlag(fs, &cmd.EnvFile)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s status [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Show sync settings, the stored cursor and the last recorded cycle.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *StatusCommand) Run() error {
	cfg, err := loadConfig(cmd.EnvFile)
	if err != nil {
		return err
	}

	db, err := database.NewQuietDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	return cmd.run(context.Background(), cfg, db)
}

func (cmd *StatusCommand) run(ctx context.Context, cfg *config.Config, db *database.Database) error {
	out := output(cmd.Out)
	settingsRepo := settings.NewRepository(db.DB)
	info := settingsstore.New(settingsRepo).GetSyncConfigInfo()

	fmt.Fprintf(out, "Destination: %s\n", cfg.Destination.Name)
	fmt.Fprintf(out, "Enabled:     %t (%s)\n", info.Enabled, info.EnabledSource)
	fmt.Fprintf(out, "Schedule:    %s - %s (%s)\n", info.Schedule, info.ScheduleDescription, info.ScheduleSource)
	if info.Enabled {
		if next, err := settingsstore.GetNextRunTime(info.Schedule, time.Now()); err == nil {
			fmt.Fprintf(out, "Next run:    %s (if the server is running)\n", next.Format(time.RFC3339))
		}
	}

	store, err := entrypoint.NewCursorStore(cfg, settingsRepo)
	if err != nil {
		return err
	}
	at, outcome := cursor.Resolve(ctx, store, cursor.LookbackDays(info.LookbackDays), time.Now())
	switch outcome {
	case cursor.Stored:
		fmt.Fprintf(out, "Cursor:      %s (%s)\n", at.Format(time.RFC3339), cfg.Cursor.Backend)
	case cursor.Absent:
		fmt.Fprintf(out, "Cursor:      none stored, lookback %d days\n", info.LookbackDays)
	default:
		fmt.Fprintf(out, "Cursor:      %s (%s), using lookback %d days\n", outcome, cfg.Cursor.Backend, info.LookbackDays)
	}

	if stats, err := db.GetStats(); err == nil {
		fmt.Fprintf(out, "Delivered:   %d highlights recorded\n", stats.DeliveredItems)
	}

	service := audit.NewService(auditrepo.NewRepository(db.DB))
	event, err := service.LatestCycle()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fmt.Fprintln(out, "Last cycle:  never")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load last cycle: %w", err)
	}

	fmt.Fprintf(out, "Last cycle:  %s at %s\n", event.Status, event.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "             %s\n", event.Description)
	if event.ErrorMsg != "" {
		fmt.Fprintf(out, "             errors: %s\n", event.ErrorMsg)
	}

	var meta struct {
		Trigger    string `json:"trigger"`
		DurationMs int64  `json:"duration_ms"`
	}
	if event.Metadata != "" && json.Unmarshal([]byte(event.Metadata), &meta) == nil {
		fmt.Fprintf(out, "             trigger %s, took %s\n", meta.Trigger, (time.Duration(meta.DurationMs) * time.Millisecond).String())
	}
	return nil
}
