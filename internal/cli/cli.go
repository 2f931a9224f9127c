// Package cli implements the one-shot sub-commands.
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mrlokans/highlightsync/internal/config"
	"github.com/mrlokans/highlightsync/internal/entities"
)

// loadConfig loads the optional env file and reads the configuration.
func loadConfig(envFile string) (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	return config.NewConfig(), nil
}

func envFileFlag(fs *flag.FlagSet, target *string) {
	fs.StringVar(target, "env-file", "", "Load environment variables from this file (default: $ENV_FILE or ./.env)")
}

func output(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

// PrintResult writes a human readable cycle summary.
func PrintResult(w io.Writer, result entities.SyncResult) {
	fmt.Fprintf(w, "Cycle:      %s (%s)\n", result.CycleID, result.Trigger)
	fmt.Fprintf(w, "Status:     %s\n", result.Status)
	fmt.Fprintf(w, "Duration:   %s\n", result.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Books:      %d examined, %d skipped, %d failed\n",
		result.ContainersExamined, result.ContainersSkipped, result.ContainersFailed)
	fmt.Fprintf(w, "Highlights: %d found, %d delivered (%d already present), %d failed\n",
		result.HighlightsFound, result.HighlightsDelivered, result.HighlightsDuplicate, result.HighlightsFailed)
	if result.HighlightsRejected > 0 || result.HighlightsMalformed > 0 {
		fmt.Fprintf(w, "            %d rejected by destination, %d malformed\n",
			result.HighlightsRejected, result.HighlightsMalformed)
	}

	cursorLine := fmt.Sprintf("%s (unchanged)", formatTime(result.CursorBefore))
	if result.CursorAdvanced {
		cursorLine = fmt.Sprintf("%s -> %s", formatTime(result.CursorBefore), formatTime(result.CursorAfter))
	}
	fmt.Fprintf(w, "Cursor:     %s\n", cursorLine)

	if result.Interrupted {
		fmt.Fprintln(w, "Interrupted before all deliveries started")
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "\n%d errors:\n", len(result.Errors))
		for _, msg := range result.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", msg)
		}
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
