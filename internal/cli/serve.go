package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/highlightsync/internal/entrypoint"
)

// ServeCommand runs the HTTP server and the sync scheduler.
type ServeCommand struct {
	EnvFile string
	Version string
}

func NewServeCommand(version string) *ServeCommand {
	return &ServeCommand{Version: version}
}

func (cmd *ServeCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)

	envFileFlag(fs, &cmd.EnvFile)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s serve [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Start the sync scheduler and the status API.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *ServeCommand) Run() error {
	cfg, err := loadConfig(cmd.EnvFile)
	if err != nil {
		return err
	}
	entrypoint.Run(cfg, cmd.Version)
	return nil
}
