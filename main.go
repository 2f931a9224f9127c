package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mrlokans/highlightsync/internal/cli"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

// command is implemented by every sub-command in internal/cli.
type command interface {
	ParseFlags(args []string) error
	Run() error
}

func main() {
	name := "serve"
	args := os.Args[1:]
	// Bare flags (e.g. "--env-file x") go to the default serve command.
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name, args = args[0], args[1:]
	}

	var cmd command
	switch name {
	case "serve":
		cmd = cli.NewServeCommand(Version)
	case "sync":
		cmd = cli.NewSyncCommand()
	case "cursor":
		cmd = cli.NewCursorCommand()
	case "status":
		cmd = cli.NewStatusCommand()
	case "version":
		fmt.Printf("highlightsync %s (%s)\n", Version, Commit)
		return
	case "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve    Run the sync scheduler and status API (default if no command given)\n")
	fmt.Fprintf(os.Stderr, "  sync     Run one sync cycle and exit (status 1 unless it succeeded)\n")
	fmt.Fprintf(os.Stderr, "  cursor   Show, set or reset the stored sync cursor\n")
	fmt.Fprintf(os.Stderr, "  status   Show settings, cursor and the last recorded cycle\n")
	fmt.Fprintf(os.Stderr, "  version  Print the version\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
