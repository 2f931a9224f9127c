package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mrlokans/highlightsync/internal/audit"
	"github.com/mrlokans/highlightsync/internal/config"
	"github.com/mrlokans/highlightsync/internal/cursor"
	"github.com/mrlokans/highlightsync/internal/database"
	auditrepo "github.com/mrlokans/highlightsync/internal/database/audit"
	"github.com/mrlokans/highlightsync/internal/database/settings"
	"github.com/mrlokans/highlightsync/internal/entrypoint"
	"github.com/mrlokans/highlightsync/internal/settingsstore"
)

// CursorCommand shows, sets or resets the stored sync cursor.
type CursorCommand struct {
	EnvFile string
	Set     string
	Reset   bool

	Out io.Writer
}

func NewCursorCommand() *CursorCommand {
	return &CursorCommand{}
}

func (cmd *CursorCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("cursor", flag.ExitOnError)

	envFileFlag(fs, &cmd.EnvFile)
	fs.StringVar(&cmd.Set, "set", "", "Store this RFC3339 timestamp as the cursor")
	fs.BoolVar(&cmd.Reset, "reset", false, "Forget the stored cursor; the next cycle starts from the lookback window")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s cursor [-set <RFC3339> | -reset]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Without options, prints the cursor the next cycle will start from.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s cursor -set 2024-05-01T00:00:00Z\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s cursor -reset\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	return cmd.validate()
}

func (cmd *CursorCommand) validate() error {
	if cmd.Set != "" && cmd.Reset {
		return errors.New("-set and -reset are mutually exclusive")
	}
	if cmd.Set != "" {
		if _, err := time.Parse(time.RFC3339, cmd.Set); err != nil {
			return fmt.Errorf("invalid -set value %q: %w", cmd.Set, err)
		}
	}
	return nil
}

func (cmd *CursorCommand) Run() error {
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

func (cmd *CursorCommand) run(ctx context.Context, cfg *config.Config, db *database.Database) error {
	settingsRepo := settings.NewRepository(db.DB)
	store, err := entrypoint.NewCursorStore(cfg, settingsRepo)
	if err != nil {
		return err
	}

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	defer auditService.Wait()

	out := output(cmd.Out)

	switch {
	case cmd.Set != "":
		at, _ := time.Parse(time.RFC3339, cmd.Set)
		err := store.Write(ctx, at)
		auditService.LogCursor("set_cursor", "Cursor set to "+at.UTC().Format(time.RFC3339), err)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Cursor set to %s\n", at.UTC().Format(time.RFC3339))
		return nil

	case cmd.Reset:
		resetter, ok := store.(cursor.Resetter)
		if !ok {
			return fmt.Errorf("cursor backend %q cannot be reset", cfg.Cursor.Backend)
		}
		err := resetter.Reset(ctx)
		auditService.LogCursor("reset_cursor", "Cursor reset", err)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Cursor reset; the next cycle starts from the lookback window")
		return nil
	}

	lookbackDays := settingsstore.New(settingsRepo).GetLookbackDays()
	at, outcome := cursor.Resolve(ctx, store, cursor.LookbackDays(lookbackDays), time.Now())
	fmt.Fprintf(out, "Backend: %s\n", cfg.Cursor.Backend)
	switch outcome {
	case cursor.Stored:
		fmt.Fprintf(out, "Cursor:  %s\n", at.Format(time.RFC3339))
	case cursor.Absent:
		fmt.Fprintf(out, "Cursor:  none stored, next cycle starts %d days back at %s\n", lookbackDays, at.Format(time.RFC3339))
	default:
		fmt.Fprintf(out, "Cursor:  %s, next cycle starts %d days back at %s\n", outcome, lookbackDays, at.Format(time.RFC3339))
	}
	return nil
}
