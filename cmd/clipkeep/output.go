package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"clipkeep/internal/clip"
)

const defaultWidth = 100

type printer struct {
	out   io.Writer
	json  bool
	width int
	now   func() time.Time

	header lipgloss.Style
	dim    lipgloss.Style
	star   lipgloss.Style
	cat    lipgloss.Style
}

func newPrinter(out io.Writer, jsonOut bool) *printer {
	width := defaultWidth
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	r := lipgloss.NewRenderer(out)
	return &printer{
		out:    out,
		json:   jsonOut,
		width:  width,
		now:    time.Now,
		header: r.NewStyle().Bold(true).Underline(true),
		dim:    r.NewStyle().Faint(true),
		star:   r.NewStyle().Foreground(lipgloss.Color("3")),
		cat:    r.NewStyle().Foreground(lipgloss.Color("6")).Width(8),
	}
}

func (p *printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) writeYAML(v any) error {
	enc := yaml.NewEncoder(p.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (p *printer) Items(items []clip.Item) error {
	if p.json {
		return p.writeJSON(items)
	}
	if len(items) == 0 {
		_, err := fmt.Fprintln(p.out, p.dim.Render("no items"))
		return err
	}
	for _, it := range items {
		if _, err := fmt.Fprintln(p.out, p.line(it)); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) line(it clip.Item) string {
	fav := " "
	if it.IsFavorite {
		fav = p.star.Render("*")
	}
	age := humanize.RelTime(time.Unix(it.CopiedAt, 0), p.now(), "ago", "from now")
	prefix := fmt.Sprintf("%6d %s %s %-16s ", it.ID, fav, p.cat.Render(string(it.Category)), age)
	room := p.width - lipgloss.Width(prefix)
	if room < 10 {
		room = 10
	}
	preview := strings.Join(strings.Fields(it.Preview), " ")
	return prefix + lipgloss.NewStyle().MaxWidth(room).Render(preview)
}

func (p *printer) Item(it clip.Item, imageSize int64) error {
	if p.json {
		return p.writeJSON(it)
	}
	rows := [][2]string{
		{"id", fmt.Sprint(it.ID)},
		{"type", string(it.ContentType)},
		{"category", string(it.Category)},
		{"source", it.SourceApp},
		{"copied", fmt.Sprintf("%s (%s)", time.Unix(it.CopiedAt, 0).Format(time.RFC3339),
			humanize.RelTime(time.Unix(it.CopiedAt, 0), p.now(), "ago", "from now"))},
		{"favorite", fmt.Sprint(it.IsFavorite)},
		{"sensitive", fmt.Sprint(it.IsSensitive)},
		{"hash", it.Hash},
	}
	if it.ContentType == clip.ContentImage {
		rows = append(rows, [2]string{"image", it.ImagePath})
		if imageSize > 0 {
			rows = append(rows, [2]string{"size", humanize.IBytes(uint64(imageSize))})
		}
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(p.out, "%s %s\n", p.dim.Render(fmt.Sprintf("%-10s", row[0])), row[1]); err != nil {
			return err
		}
	}
	if it.ContentType == clip.ContentText {
		if _, err := fmt.Fprintf(p.out, "\n%s\n%s\n", p.header.Render("content"), it.Content); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) Settings(s clip.Settings) error {
	if p.json {
		return p.writeJSON(s)
	}
	return p.writeYAML(s)
}

func (p *printer) Strings(title string, values []string) error {
	if p.json {
		if values == nil {
			values = []string{}
		}
		return p.writeJSON(values)
	}
	if len(values) == 0 {
		_, err := fmt.Fprintln(p.out, p.dim.Render("no "+title))
		return err
	}
	if _, err := fmt.Fprintln(p.out, p.header.Render(title)); err != nil {
		return err
	}
	for _, v := range values {
		if _, err := fmt.Fprintln(p.out, v); err != nil {
			return err
		}
	}
	return nil
}

// Done prints a one-line confirmation, or {"ok":true,...} in JSON mode.
func (p *printer) Done(msg string, fields map[string]any) error {
	if p.json {
		doc := map[string]any{"ok": true}
		for k, v := range fields {
			doc[k] = v
		}
		return p.writeJSON(doc)
	}
	_, err := fmt.Fprintln(p.out, msg)
	return err
}
