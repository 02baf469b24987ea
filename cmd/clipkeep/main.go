package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"clipkeep/internal/apperr"
	"clipkeep/internal/bootstrap"
	"clipkeep/internal/config"
	"clipkeep/internal/logging"
)

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

type cli struct {
	configPath string
	jsonOut    bool
	out        io.Writer
	errOut     io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:   "clipkeep",
		Short: "Local clipboard history",
		Long: `clipkeep records what you copy into a local SQLite database, classifies it,
keeps it searchable and expires it after the configured retention period.

  clipkeep run                 start the capture daemon
  clipkeep history             list recent items
  clipkeep search <words>      full-text search
  clipkeep copy <id>           put an item back on the clipboard`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./clipkeep.yaml, then the user config dir; also CLIPKEEP_CONFIG)")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print machine-readable JSON")

	root.AddCommand(
		c.runCmd(),
		c.historyCmd(),
		c.searchCmd(),
		c.showCmd(),
		c.copyCmd(),
		c.favoriteCmd(),
		c.rmCmd(),
		c.imageCmd(),
		c.cleanupCmd(),
		c.settingsCmd(),
		c.excludeCmd(),
		c.configCmd(),
	)
	return root
}

func (c *cli) newLogger(cfg config.Config) *logging.SlogLogger {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.errOut,
	})
}

// open loads the config and wires the store for a one-shot command.
func (c *cli) open(opts bootstrap.Options) (*bootstrap.BuildResult, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	return bootstrap.Build(cfg, c.newLogger(cfg), opts)
}

func (c *cli) printer() *printer {
	return newPrinter(c.out, c.jsonOut)
}

// exitCode maps the error taxonomy onto distinct process exit codes.
func exitCode(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return 2
	case apperr.KindInvalidInput, apperr.KindPathRejected:
		return 3
	case apperr.KindSizeExceeded, apperr.KindEncoding:
		return 4
	case apperr.KindStorage:
		return 5
	}
	var usage *usageError
	if errors.As(err, &usage) {
		return 64
	}
	return 1
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }
