package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipkeep/internal/bootstrap"
	"clipkeep/internal/clip"
	"clipkeep/internal/config"
)

type env struct {
	cfgPath string
	cfg     config.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("CLIPKEEP_CONFIG", "")
	t.Chdir(t.TempDir())

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "clipkeep.yaml")
	body := "storage:\n  data_dir: " + filepath.Join(dir, "data") + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	return &env{cfgPath: cfgPath, cfg: cfg}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func (e *env) seed(t *testing.T, items ...clip.Item) []int64 {
	t.Helper()
	res, err := bootstrap.Build(e.cfg, nil, bootstrap.Options{})
	require.NoError(t, err)
	defer res.Close()
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		r, err := res.Store.InsertOrTouch(context.Background(), it)
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	return ids
}

func text(content string, category clip.Category, at time.Time) clip.Item {
	return clip.Item{
		Content:     content,
		ContentType: clip.ContentText,
		Category:    category,
		SourceApp:   "Terminal",
		CopiedAt:    at.Unix(),
		Hash:        clip.Fingerprint([]byte(content)),
	}
}

func decodeItems(t *testing.T, out string) []clip.Item {
	t.Helper()
	var items []clip.Item
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	return items
}

func TestHistoryAndSearch(t *testing.T) {
	e := newEnv(t)
	now := time.Now()
	e.seed(t,
		text("https://go.dev/doc", clip.CategoryURL, now.Add(-2*time.Hour)),
		text("git status", clip.CategoryCommand, now.Add(-time.Hour)),
	)

	out, err := e.run(t, "history", "--json")
	require.NoError(t, err)
	items := decodeItems(t, out)
	require.Len(t, items, 2)
	assert.Equal(t, "git status", items[0].Content)

	out, err = e.run(t, "search", "--json", "--category", "url")
	require.NoError(t, err)
	items = decodeItems(t, out)
	require.Len(t, items, 1)
	assert.Equal(t, "https://go.dev/doc", items[0].Content)

	out, err = e.run(t, "search", "--json", "git")
	require.NoError(t, err)
	assert.Len(t, decodeItems(t, out), 1)

	out, err = e.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "git status")
	assert.Contains(t, out, "command")
}

func TestShowFavoriteRemove(t *testing.T) {
	e := newEnv(t)
	ids := e.seed(t, text("multi\nline note", clip.CategoryMisc, time.Now()))
	id := strconv.FormatInt(ids[0], 10)

	_, err := e.run(t, "favorite", id)
	require.NoError(t, err)

	out, err := e.run(t, "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "multi\nline note")
	assert.Contains(t, out, "true")

	_, err = e.run(t, "rm", id)
	require.NoError(t, err)

	_, err = e.run(t, "show", id)
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))

	_, err = e.run(t, "rm", "abc")
	require.Error(t, err)
	assert.Equal(t, 64, exitCode(err))
}

func TestImageExport(t *testing.T) {
	e := newEnv(t)
	res, err := bootstrap.Build(e.cfg, nil, bootstrap.Options{})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	saved, err := res.Images.Save(buf.Bytes(), 0)
	require.NoError(t, err)
	_, err = res.Store.InsertOrTouch(context.Background(), clip.Item{
		Content:     clip.ImageLabel(saved.Width, saved.Height),
		ContentType: clip.ContentImage,
		ImagePath:   saved.Ref,
		Category:    clip.CategoryMisc,
		Hash:        saved.Hash,
	})
	require.NoError(t, err)
	want, err := res.Images.Read(context.Background(), saved.Ref)
	require.NoError(t, err)
	require.NoError(t, res.Close())

	dest := filepath.Join(t.TempDir(), "out.png")
	_, err = e.run(t, "image", saved.Ref, "-o", dest)
	require.NoError(t, err)
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = e.run(t, "image", "../clipkeep.db")
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))
}

func TestSettingsCommands(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "settings", "set")
	require.Error(t, err)
	assert.Equal(t, 64, exitCode(err))

	_, err = e.run(t, "settings", "set", "--retention-days", "7", "--max-items", "0")
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))

	_, err = e.run(t, "settings", "set", "--retention-days", "7", "--auto-exclude-sensitive=false")
	require.NoError(t, err)

	out, err := e.run(t, "settings", "get", "--json")
	require.NoError(t, err)
	var s clip.Settings
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, int64(7), s.RetentionDays)
	assert.False(t, s.AutoExcludeSensitive)
	assert.Equal(t, clip.DefaultMaxItems, s.MaxItems)

	out, err = e.run(t, "settings", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "retention_days: 7")
}

func TestExcludeCommands(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "exclude", "add", "1Password")
	require.NoError(t, err)

	out, err := e.run(t, "exclude", "list", "--json")
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, []string{"1Password"}, names)

	_, err = e.run(t, "exclude", "rm", "1password")
	require.NoError(t, err)
	_, err = e.run(t, "exclude", "rm", "1password")
	assert.Equal(t, 2, exitCode(err))
}

func TestCleanupCommand(t *testing.T) {
	e := newEnv(t)
	e.seed(t,
		text("ancient", clip.CategoryMisc, time.Now().Add(-90*24*time.Hour)),
		text("recent", clip.CategoryMisc, time.Now()),
	)
	out, err := e.run(t, "cleanup", "--json")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.EqualValues(t, 1, doc["expired"])
}

func TestConfigInitAndShow(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "clipkeep.yaml")

	out, err := e.run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")
	out, err = e.run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, err = e.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "poll_interval: 500ms")
	assert.Contains(t, out, e.cfg.Storage.DataDir)
}

func TestParseWhen(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in       string
		endOfDay bool
		want     int64
	}{
		{"", false, 0},
		{"36h", false, now.Add(-36 * time.Hour).Unix()},
		{"2024-06-01T08:00:00Z", false, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC).Unix()},
		{"2024-06-01", false, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Unix()},
		{"2024-06-01", true, time.Date(2024, 6, 1, 23, 59, 59, 0, time.UTC).Unix()},
	}
	for _, tc := range cases {
		got, err := parseWhen(tc.in, now, tc.endOfDay)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
	_, err := parseWhen("last tuesday", now, false)
	assert.Error(t, err)
}

func TestBuildFiltersRejectsUnknownCategory(t *testing.T) {
	_, err := buildFilters("weather", "", "", "", "", time.Now())
	require.Error(t, err)
	assert.Equal(t, 64, exitCode(err))
}
