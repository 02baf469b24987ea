package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipkeep/internal/bootstrap"
	"clipkeep/internal/config"
)

func (c *cli) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change capture settings stored in the database",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.open(bootstrap.Options{})
			if err != nil {
				return err
			}
			defer res.Close()
			s, err := res.App.GetSettings(cmd.Context())
			if err != nil {
				return err
			}
			return c.printer().Settings(s)
		},
	}

	var (
		retentionDays int64
		maxItems      int
		shortcut      string
		autoExclude   bool
		maxImageMB    int
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change settings; unspecified fields keep their value",
		Long: `Only flags given on the command line change. All fields are validated
together and either every change is written or none is.

  clipkeep settings set --retention-days 7 --max-items 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if !anyChanged(cmd, settingFlags...) {
				return &usageError{msg: "no settings given"}
			}
			res, err := c.open(bootstrap.Options{})
			if err != nil {
				return err
			}
			defer res.Close()
			s, err := res.App.GetSettings(cmd.Context())
			if err != nil {
				return err
			}
			if flags.Changed("retention-days") {
				s.RetentionDays = retentionDays
			}
			if flags.Changed("max-items") {
				s.MaxItems = maxItems
			}
			if flags.Changed("shortcut") {
				s.KeyboardShortcut = shortcut
			}
			if flags.Changed("auto-exclude-sensitive") {
				s.AutoExcludeSensitive = autoExclude
			}
			if flags.Changed("max-image-mb") {
				s.MaxImageSizeMB = maxImageMB
			}
			if err := res.App.UpdateSettings(cmd.Context(), s); err != nil {
				return err
			}
			return c.printer().Settings(s)
		},
	}
	set.Flags().Int64Var(&retentionDays, "retention-days", 0, "delete non-favorite items older than this many days")
	set.Flags().IntVar(&maxItems, "max-items", 0, "keep at most this many items")
	set.Flags().StringVar(&shortcut, "shortcut", "", "keyboard shortcut recorded for the history window")
	set.Flags().BoolVar(&autoExclude, "auto-exclude-sensitive", true, "never store content that looks like card, SSN or phone numbers")
	set.Flags().IntVar(&maxImageMB, "max-image-mb", 0, "largest image to store, in MiB")

	cmd.AddCommand(get, set)
	return cmd
}

var settingFlags = []string{"retention-days", "max-items", "shortcut", "auto-exclude-sensitive", "max-image-mb"}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

func (c *cli) excludeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exclude",
		Short: "Manage applications whose clipboard content is never recorded",
		Long: `Entries match the source application name, ignoring case. Glob patterns
such as "*Password*" are allowed.`,
	}
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List excluded applications",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.open(bootstrap.Options{})
			if err != nil {
				return err
			}
			defer res.Close()
			names, err := res.App.GetExclusions(cmd.Context())
			if err != nil {
				return err
			}
			return c.printer().Strings("exclusions", names)
		},
	}
	add := &cobra.Command{
		Use:   "add <app>",
		Short: "Exclude an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.open(bootstrap.Options{})
			if err != nil {
				return err
			}
			defer res.Close()
			if err := res.App.AddExclusion(cmd.Context(), args[0]); err != nil {
				return err
			}
			return c.printer().Done(fmt.Sprintf("excluded %q", args[0]), map[string]any{"app": args[0]})
		},
	}
	rm := &cobra.Command{
		Use:   "rm <app>",
		Short: "Stop excluding an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.open(bootstrap.Options{})
			if err != nil {
				return err
			}
			defer res.Close()
			if err := res.App.RemoveExclusion(cmd.Context(), args[0]); err != nil {
				return err
			}
			return c.printer().Done(fmt.Sprintf("removed %q", args[0]), map[string]any{"app": args[0]})
		},
	}
	cmd.AddCommand(list, add, rm)
	return cmd
}

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or scaffold the config file",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = c.out.Write(data)
			return err
		},
	}
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default config file (./clipkeep.yaml unless a path is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigName + ".yaml"
			if len(args) == 1 {
				path = args[0]
			}
			written, err := config.WriteDefaultFile(path)
			if err != nil {
				return err
			}
			if !written {
				return c.printer().Done(fmt.Sprintf("%s already exists, left unchanged", path), map[string]any{"path": path, "written": false})
			}
			return c.printer().Done(fmt.Sprintf("wrote %s", path), map[string]any{"path": path, "written": true})
		},
	}
	cmd.AddCommand(show, initCmd)
	return cmd
}
