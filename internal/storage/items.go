package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"clipkeep/internal/apperr"
	"clipkeep/internal/clip"
)

const itemColumns = `id, content, content_type, image_path, category, source_app, preview,
	copied_at, is_favorite, is_sensitive, hash`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (clip.Item, error) {
	var (
		it                    clip.Item
		contentType, category string
		imagePath             sql.NullString
		favorite, sensitive   int
	)
	if err := row.Scan(&it.ID, &it.Content, &contentType, &imagePath, &category, &it.SourceApp,
		&it.Preview, &it.CopiedAt, &favorite, &sensitive, &it.Hash); err != nil {
		return clip.Item{}, err
	}
	it.ContentType = clip.ContentType(contentType)
	it.Category = clip.Category(category)
	it.ImagePath = imagePath.String
	it.IsFavorite = favorite != 0
	it.IsSensitive = sensitive != 0
	return it, nil
}

func scanItems(rows *sql.Rows) ([]clip.Item, error) {
	defer rows.Close()
	items := make([]clip.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// --- Item Operations ---

// InsertOrTouch 插入新条目；hash 已存在时按 TouchPolicy 处理已有条目。
// 插入后按 max_items 淘汰最旧的非收藏条目，全部在一个事务中完成。
// InsertOrTouch inserts item, or applies the touch policy when its hash is
// already stored. A fresh insert evicts the oldest non-favorite rows over
// max_items in the same transaction; their image files are released after
// commit.
func (s *SQLiteStore) InsertOrTouch(ctx context.Context, item clip.Item) (InsertResult, error) {
	if strings.TrimSpace(item.SourceApp) == "" {
		item.SourceApp = clip.UnknownSource
	}
	if item.Preview == "" {
		item.Preview = clip.Preview(item.Content)
	}
	if item.CopiedAt == 0 {
		item.CopiedAt = s.nowUnix()
	}
	if err := item.Validate(); err != nil {
		return InsertResult{}, apperr.Invalid("%v", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return InsertResult{}, apperr.Storage("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM clipboard_items WHERE hash = ?", item.Hash).Scan(&existing)
	switch {
	case err == nil:
		if err := s.policy.apply(ctx, tx, existing, item.SourceApp, item.Category, item.CopiedAt); err != nil {
			return InsertResult{}, apperr.Storage("touch item", err)
		}
		if err := tx.Commit(); err != nil {
			return InsertResult{}, apperr.Storage("commit touch", err)
		}
		return InsertResult{ID: existing, Touched: true}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return InsertResult{}, apperr.Storage("lookup hash", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO clipboard_items (content, content_type, image_path, category, source_app,
			preview, copied_at, is_favorite, is_sensitive, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Content, string(item.ContentType), nullIfEmpty(item.ImagePath), string(item.Category),
		item.SourceApp, item.Preview, item.CopiedAt, boolToInt(item.IsFavorite),
		boolToInt(item.IsSensitive), item.Hash,
	)
	if err != nil {
		return InsertResult{}, apperr.Storage("insert item", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return InsertResult{}, apperr.Storage("insert item id", err)
	}

	released, err := evictOverflow(ctx, tx, id)
	if err != nil {
		return InsertResult{}, apperr.Storage("evict overflow", err)
	}
	if err := tx.Commit(); err != nil {
		return InsertResult{}, apperr.Storage("commit insert", err)
	}

	s.releaseImages(ctx, released.images)
	return InsertResult{ID: id, Evicted: released.rows}, nil
}

type evicted struct {
	rows   int
	images []string
}

// evictOverflow 删除超出 max_items 的最旧非收藏条目（不含刚插入的 keep）
// evictOverflow deletes the oldest non-favorite rows beyond max_items, never keep
func evictOverflow(ctx context.Context, tx *sql.Tx, keep int64) (evicted, error) {
	maxItems := clip.DefaultMaxItems
	var raw string
	err := tx.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = 'max_items'").Scan(&raw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return evicted{}, fmt.Errorf("read max_items: %w", err)
	}
	if n, perr := strconv.Atoi(strings.TrimSpace(raw)); perr == nil && n > 0 {
		maxItems = n
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM clipboard_items").Scan(&count); err != nil {
		return evicted{}, fmt.Errorf("count items: %w", err)
	}
	excess := count - maxItems
	if excess <= 0 {
		return evicted{}, nil
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, image_path FROM clipboard_items
		WHERE is_favorite = 0 AND id != ?
		ORDER BY copied_at ASC, id ASC
		LIMIT ?`, keep, excess)
	if err != nil {
		return evicted{}, fmt.Errorf("select eviction candidates: %w", err)
	}
	var (
		ids []int64
		out evicted
	)
	for rows.Next() {
		var id int64
		var path sql.NullString
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close()
			return evicted{}, err
		}
		ids = append(ids, id)
		if path.Valid && path.String != "" {
			out.images = append(out.images, path.String)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return evicted{}, err
	}

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM clipboard_items WHERE id = ?")
	if err != nil {
		return evicted{}, fmt.Errorf("prepare delete: %w", err)
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return evicted{}, fmt.Errorf("delete item %d: %w", id, err)
		}
	}
	out.rows = len(ids)
	return out, nil
}

// Touch 对已存储的 hash 应用 TouchPolicy，不修改 category
// Touch applies the touch policy to the row holding hash, leaving its category
func (s *SQLiteStore) Touch(ctx context.Context, hash, sourceApp string, copiedAt int64) (int64, bool, error) {
	if strings.TrimSpace(sourceApp) == "" {
		sourceApp = clip.UnknownSource
	}
	if copiedAt == 0 {
		copiedAt = s.nowUnix()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, apperr.Storage("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM clipboard_items WHERE hash = ?", hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperr.Storage("lookup hash", err)
	}
	if err := s.policy.apply(ctx, tx, id, sourceApp, "", copiedAt); err != nil {
		return 0, false, apperr.Storage("touch item", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, apperr.Storage("commit touch", err)
	}
	return id, true, nil
}

// GetByID 主键查询 / GetByID is a primary-key lookup
func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (clip.Item, error) {
	row := s.rdb.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM clipboard_items WHERE id = ?", id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return clip.Item{}, fmt.Errorf("item %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return clip.Item{}, apperr.Storage("get item", err)
	}
	return it, nil
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// GetHistory 按 copied_at 倒序分页 / GetHistory pages newest first
func (s *SQLiteStore) GetHistory(ctx context.Context, limit, offset int) ([]clip.Item, error) {
	if offset < 0 {
		offset = 0
	}
	rows, err := s.rdb.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM clipboard_items
		ORDER BY copied_at DESC, id DESC
		LIMIT ? OFFSET ?`, clampLimit(limit), offset)
	if err != nil {
		return nil, apperr.Storage("query history", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, apperr.Storage("scan history", err)
	}
	return items, nil
}

func (s *SQLiteStore) SetFavorite(ctx context.Context, id int64, favorite bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE clipboard_items SET is_favorite = ? WHERE id = ?", boolToInt(favorite), id)
	if err != nil {
		return apperr.Storage("set favorite", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage("set favorite", err)
	}
	if n == 0 {
		return fmt.Errorf("item %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Delete 先删除行并提交，再删除图片文件；崩溃最多留下孤立文件
// Delete removes the row first and the image file after commit, so a crash
// can leave an orphaned file but never a row pointing at a missing file
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var path sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT image_path FROM clipboard_items WHERE id = ?", id).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("item %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return apperr.Storage("lookup item", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM clipboard_items WHERE id = ?", id); err != nil {
		return apperr.Storage("delete item", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("commit delete", err)
	}
	if path.Valid && path.String != "" {
		s.releaseImages(ctx, []string{path.String})
	}
	return nil
}

// ImagePathExists 判断图片引用是否属于某个现存条目
// ImagePathExists reports whether ref belongs to a live row
func (s *SQLiteStore) ImagePathExists(ctx context.Context, ref string) (bool, error) {
	var one int
	err := s.rdb.QueryRowContext(ctx,
		"SELECT 1 FROM clipboard_items WHERE image_path = ? LIMIT 1", ref).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Storage("lookup image path", err)
	}
	return true, nil
}
