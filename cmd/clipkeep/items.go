package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"clipkeep/internal/bootstrap"
	"clipkeep/internal/clip"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, &usageError{msg: fmt.Sprintf("invalid item id %q", arg)}
	}
	return id, nil
}

func (c *cli) historyCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ls"},
		Short:   "List recent items, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.open(bootstrap.Options{})
			if err != nil {
				return err
			}
			defer res.Close()
			items, err := res.App.GetHistory(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			return c.printer().Items(items)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of items")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many items")
	return cmd
}

func (c *cli) searchCmd() *cobra.Command {
	var (
		limit           int
		category, ctype string
		sourceApp       string
		since, until    string
	)
	cmd := &cobra.Command{
		Use:   "search [words...]",
		Short: "Full-text search over content, category and source app",
		Long: `Search matches every word literally; FTS operators are not interpreted.
An empty query (or "*") lists items matching the filters only.

  clipkeep search docker compose
  clipkeep search --category url --since 24h
  clipkeep search "" --app Terminal --until 2024-06-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := buildFilters(category, ctype, sourceApp, since, until, time.Now())
			if err != nil {
				return err
			}
			res, err := c.open(bootstrap.Options{})
			if err != nil {
				return err
			}
			defer res.Close()
			items, err := res.App.Search(cmd.Context(), strings.Join(args, " "), filters, limit)
			if err != nil {
				return err
			}
			return c.printer().Items(items)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum results")
	cmd.Flags().StringVarP(&category, "category", "c", "", "filter by category (url, email, error, code, command, ip, path, misc)")
	cmd.Flags().StringVarP(&ctype, "type", "t", "", "filter by content type (text, image)")
	cmd.Flags().StringVarP(&sourceApp, "app", "a", "", "filter by source application")
	cmd.Flags().StringVar(&since, "since", "", "only items copied at or after this time (2006-01-02, RFC3339 or a duration like 36h)")
	cmd.Flags().StringVar(&until, "until", "", "only items copied at or before this time")
	return cmd
}

func buildFilters(category, ctype, sourceApp, since, until string, now time.Time) (clip.SearchFilters, error) {
	var f clip.SearchFilters
	if category != "" {
		cat, err := clip.ParseCategory(category)
		if err != nil {
			return f, &usageError{msg: err.Error()}
		}
		f.Category = cat
	}
	if ctype != "" {
		t, err := clip.ParseContentType(ctype)
		if err != nil {
			return f, &usageError{msg: err.Error()}
		}
		f.ContentType = t
	}
	f.SourceApp = strings.TrimSpace(sourceApp)
	var err error
	if f.DateFrom, err = parseWhen(since, now, false); err != nil {
		return f, err
	}
	if f.DateTo, err = parseWhen(until, now, true); err != nil {
		return f, err
	}
	return f, nil
}

// parseWhen returns unix seconds, or 0 when s is empty. A bare date used as
// an upper bound covers the whole day.
func parseWhen(s string, now time.Time, endOfDay bool) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d).Unix(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, now.Location()); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1).Add(-time.Second)
		}
		return t.Unix(), nil
	}
	return 0, &usageError{msg: fmt.Sprintf("cannot parse time %q", s)}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := c.open(bootstrap.Options{})
			if err != nil {
				return err
			}
			defer res.Close()
			item, err := res.App.GetItemByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			var size int64
			if item.ContentType == clip.ContentImage {
				if data, err := res.App.GetImageData(cmd.Context(), item.ImagePath); err == nil {
					size = int64(len(data))
				}
			}
			return c.printer().Item(item, size)
		},
	}
}

func (c *cli) copyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <id>",
		Short: "Put an item back on the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := c.open(bootstrap.Options{Clipboard: true})
			if err != nil {
				return err
			}
			defer res.Close()
			if err := res.App.CopyToClipboard(cmd.Context(), id); err != nil {
				return err
			}
			return c.printer().Done(fmt.Sprintf("copied item %d", id), map[string]any{"id": id})
		},
	}
}

func (c *cli) favoriteCmd() *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:     "favorite <id>",
		Aliases: []string{"fav"},
		Short:   "Mark an item as favorite (kept through eviction and retention)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := c.open(bootstrap.Options{})
			if err != nil {
				return err
			}
			defer res.Close()
			if err := res.App.SetFavorite(cmd.Context(), id, !off); err != nil {
				return err
			}
			state := "favorite"
			if off {
				state = "not favorite"
			}
			return c.printer().Done(fmt.Sprintf("item %d is %s", id, state), map[string]any{"id": id, "favorite": !off})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "remove the favorite mark")
	return cmd
}

func (c *cli) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete items and their image files",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			res, err := c.open(bootstrap.Options{})
			if err != nil {
				return err
			}
			defer res.Close()
			for _, id := range ids {
				if err := res.App.DeleteItem(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %d: %w", id, err)
				}
			}
			return c.printer().Done(fmt.Sprintf("deleted %d item(s)", len(ids)), map[string]any{"deleted": ids})
		},
	}
}

func (c *cli) imageCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "image <ref>",
		Short: "Write a stored image (PNG) to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.open(bootstrap.Options{})
			if err != nil {
				return err
			}
			defer res.Close()
			data, err := res.App.GetImageData(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = c.out.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.errOut, "wrote %s (%s)\n", output, humanize.IBytes(uint64(len(data))))
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (default stdout)")
	return cmd
}

func (c *cli) cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired items and orphaned image files now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.open(bootstrap.Options{})
			if err != nil {
				return err
			}
			defer res.Close()
			swept, err := res.App.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return c.printer().Done(
				fmt.Sprintf("removed %d expired item(s) and %d orphaned image(s)", swept.Expired, swept.Orphans),
				map[string]any{"expired": swept.Expired, "orphans": swept.Orphans})
		},
	}
}
