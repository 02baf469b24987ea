package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"clipkeep/internal/apperr"
	"clipkeep/internal/clip"
)

const (
	keyRetentionDays        = "retention_days"
	keyMaxItems             = "max_items"
	keyKeyboardShortcut     = "keyboard_shortcut"
	keyAutoExcludeSensitive = "auto_exclude_sensitive"
	keyMaxImageSizeMB       = "max_image_size_mb"

	// MaxExclusionLength 排除应用名的最大长度
	// MaxExclusionLength bounds an excluded application name
	MaxExclusionLength = 256
)

// GetSettings 读取设置；无法解析的值回落到默认值
// GetSettings reads settings; unparsable values fall back to defaults
func (s *SQLiteStore) GetSettings(ctx context.Context) (clip.Settings, error) {
	rows, err := s.rdb.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return clip.Settings{}, apperr.Storage("query settings", err)
	}
	defer rows.Close()

	out := clip.DefaultSettings()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return clip.Settings{}, apperr.Storage("scan settings", err)
		}
		value = strings.TrimSpace(value)
		switch key {
		case keyRetentionDays:
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				out.RetentionDays = n
			}
		case keyMaxItems:
			if n, err := strconv.Atoi(value); err == nil {
				out.MaxItems = n
			}
		case keyKeyboardShortcut:
			out.KeyboardShortcut = value
		case keyAutoExcludeSensitive:
			if b, err := strconv.ParseBool(value); err == nil {
				out.AutoExcludeSensitive = b
			}
		case keyMaxImageSizeMB:
			if n, err := strconv.Atoi(value); err == nil {
				out.MaxImageSizeMB = n
			}
		}
	}
	if err := rows.Err(); err != nil {
		return clip.Settings{}, apperr.Storage("read settings", err)
	}
	return out, nil
}

// ValidateSettings 校验全部字段；返回所有越界字段
// ValidateSettings checks every field and reports all out-of-bounds values
func ValidateSettings(st clip.Settings) error {
	var errs []error
	if st.RetentionDays < 1 {
		errs = append(errs, apperr.Invalid("retention_days must be at least 1, got %d", st.RetentionDays))
	}
	if st.MaxItems < clip.MinMaxItems || st.MaxItems > clip.MaxMaxItems {
		errs = append(errs, apperr.Invalid("max_items must be between %d and %d, got %d",
			clip.MinMaxItems, clip.MaxMaxItems, st.MaxItems))
	}
	if st.MaxImageSizeMB < clip.MinImageSizeMB || st.MaxImageSizeMB > clip.MaxImageSizeMB {
		errs = append(errs, apperr.Invalid("max_image_size_mb must be between %d and %d, got %d",
			clip.MinImageSizeMB, clip.MaxImageSizeMB, st.MaxImageSizeMB))
	}
	shortcut := strings.TrimSpace(st.KeyboardShortcut)
	if shortcut == "" {
		errs = append(errs, apperr.Invalid("keyboard_shortcut must not be empty"))
	} else if utf8.RuneCountInString(shortcut) > clip.MaxShortcutLength {
		errs = append(errs, apperr.Invalid("keyboard_shortcut must be at most %d characters", clip.MaxShortcutLength))
	}
	return errors.Join(errs...)
}

// UpdateSettings 先校验全部字段，再在一个事务中写入；任一字段非法则不写入
// UpdateSettings validates every field first and then writes all of them in
// one transaction, so a rejected update leaves settings unchanged
func (s *SQLiteStore) UpdateSettings(ctx context.Context, st clip.Settings) error {
	if err := ValidateSettings(st); err != nil {
		return err
	}

	values := [][2]string{
		{keyRetentionDays, strconv.FormatInt(st.RetentionDays, 10)},
		{keyMaxItems, strconv.Itoa(st.MaxItems)},
		{keyKeyboardShortcut, strings.TrimSpace(st.KeyboardShortcut)},
		{keyAutoExcludeSensitive, strconv.FormatBool(st.AutoExcludeSensitive)},
		{keyMaxImageSizeMB, strconv.Itoa(st.MaxImageSizeMB)},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return apperr.Storage("prepare settings upsert", err)
	}
	defer stmt.Close()

	for _, kv := range values {
		if _, err := stmt.ExecContext(ctx, kv[0], kv[1]); err != nil {
			return apperr.Storage(fmt.Sprintf("write setting %s", kv[0]), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("commit settings", err)
	}
	return nil
}

// --- Exclusions ---

func normalizeExclusion(app string) (string, error) {
	app = strings.TrimSpace(app)
	if app == "" {
		return "", apperr.Invalid("application name must not be empty")
	}
	if utf8.RuneCountInString(app) > MaxExclusionLength {
		return "", apperr.Invalid("application name must be at most %d characters", MaxExclusionLength)
	}
	return app, nil
}

// ListExclusions 返回按名称排序的排除列表
// ListExclusions returns excluded application names sorted by name
func (s *SQLiteStore) ListExclusions(ctx context.Context) ([]string, error) {
	rows, err := s.rdb.QueryContext(ctx, "SELECT app_name FROM app_exclusions ORDER BY app_name COLLATE NOCASE")
	if err != nil {
		return nil, apperr.Storage("query exclusions", err)
	}
	defer rows.Close()

	apps := make([]string, 0)
	for rows.Next() {
		var app string
		if err := rows.Scan(&app); err != nil {
			return nil, apperr.Storage("scan exclusion", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("read exclusions", err)
	}
	return apps, nil
}

// AddExclusion 幂等添加 / AddExclusion is idempotent
func (s *SQLiteStore) AddExclusion(ctx context.Context, app string) error {
	app, err := normalizeExclusion(app)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO app_exclusions (app_name) VALUES (?)", app); err != nil {
		return apperr.Storage("add exclusion", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveExclusion(ctx context.Context, app string) error {
	app, err := normalizeExclusion(app)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM app_exclusions WHERE app_name = ?", app)
	if err != nil {
		return apperr.Storage("remove exclusion", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage("remove exclusion", err)
	}
	if n == 0 {
		return fmt.Errorf("exclusion %q: %w", app, apperr.ErrNotFound)
	}
	return nil
}
