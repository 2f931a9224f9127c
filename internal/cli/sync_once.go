package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrlokans/highlightsync/internal/entities"
	"github.com/mrlokans/highlightsync/internal/entrypoint"
)

// ErrCycleNotSucceeded is returned when the cycle finished with failures.
var ErrCycleNotSucceeded = errors.New("sync cycle did not succeed")

// SyncCommand runs a single sync cycle in the foreground.
type SyncCommand struct {
	EnvFile string
	JSON    bool

	Out io.Writer
}

func NewSyncCommand() *SyncCommand {
	return &SyncCommand{}
}

func (cmd *SyncCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	envFileFlag(fs, &cmd.EnvFile)
	fs.BoolVar(&cmd.JSON, "json", false, "Print the cycle result as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sync [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run one sync cycle: fetch highlights updated since the stored cursor,\n")
		fmt.Fprintf(os.Stderr, "deliver them to the configured destination and advance the cursor.\n")
		fmt.Fprintf(os.Stderr, "Exits with status 1 unless every highlight was delivered.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *SyncCommand) Run() error {
	cfg, err := loadConfig(cmd.EnvFile)
	if err != nil {
		return err
	}

	app, err := entrypoint.Build(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	// Ctrl-C stops new deliveries; in-flight ones finish.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := app.Scheduler.TriggerNow(ctx, entities.SyncTriggerCLI)
	if err != nil {
		return err
	}

	return cmd.report(result)
}

func (cmd *SyncCommand) report(result entities.SyncResult) error {
	out := output(cmd.Out)
	if cmd.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		PrintResult(out, result)
	}

	if !result.Succeeded() {
		return fmt.Errorf("%w: %s", ErrCycleNotSucceeded, result.Status)
	}
	return nil
}
