package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"clipkeep/internal/bootstrap"
	"clipkeep/internal/config"
	"clipkeep/internal/logging"
)

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch the clipboard and record history until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.runDaemon(ctx)
		},
	}
}

func (c *cli) runDaemon(ctx context.Context) error {
	var current atomic.Pointer[logging.SlogLogger]
	cfg, watched, err := config.Watch(c.configPath, func(next config.Config, err error) {
		log := current.Load()
		if log == nil {
			return
		}
		if err != nil {
			// keep running on the last good config
			log.Warn(context.Background(), err, "config reload rejected")
			return
		}
		if err := log.SetLevel(next.Log.Level); err == nil {
			log.Info(context.Background(), "config reloaded", "log_level", next.Log.Level)
		}
	})
	if err != nil {
		return err
	}
	log := c.newLogger(cfg)
	current.Store(log)

	res, err := bootstrap.Build(cfg, log, bootstrap.Options{Monitor: cfg.Monitor.Enabled})
	if err != nil {
		return err
	}
	defer res.Close()

	log.Info(ctx, "clipkeep running",
		"db", cfg.DBPath(),
		"config", watched,
		"clipboard", cfg.Monitor.Clipboard,
		"poll_interval", cfg.Monitor.PollInterval.String())
	return res.Run(ctx)
}
