package storage

import (
	"context"
	"database/sql"
	"math"

	"clipkeep/internal/apperr"
)

const (
	secondsPerDay = 86400
	// MaxRetentionDays 保留天数上限（10 年），防止时间计算溢出
	// MaxRetentionDays caps the retention window at ten years
	MaxRetentionDays = 3650
)

// CleanupExpired 删除早于保留窗口的非收藏条目，提交后删除其图片文件。
// CleanupExpired deletes non-favorite rows copied before now minus
// retentionDays and releases their image files after commit. It returns the
// number of rows removed and is safe to call when nothing has expired.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, retentionDays int64) (int64, error) {
	if retentionDays < 1 {
		return 0, apperr.Invalid("retention days must be at least 1, got %d", retentionDays)
	}
	if retentionDays > MaxRetentionDays {
		retentionDays = MaxRetentionDays
	}
	cutoff := saturatingSub(s.nowUnix(), retentionDays*secondsPerDay)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperr.Storage("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT image_path FROM clipboard_items
		WHERE is_favorite = 0 AND copied_at < ? AND image_path IS NOT NULL`, cutoff)
	if err != nil {
		return 0, apperr.Storage("collect expired images", err)
	}
	var refs []string
	for rows.Next() {
		var ref sql.NullString
		if err := rows.Scan(&ref); err != nil {
			rows.Close()
			return 0, apperr.Storage("scan expired image", err)
		}
		if ref.Valid && ref.String != "" {
			refs = append(refs, ref.String)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, apperr.Storage("collect expired images", err)
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM clipboard_items WHERE is_favorite = 0 AND copied_at < ?", cutoff)
	if err != nil {
		return 0, apperr.Storage("delete expired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Storage("delete expired", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, apperr.Storage("commit cleanup", err)
	}

	s.releaseImages(ctx, refs)
	if n > 0 {
		s.logger.Info(ctx, "expired items removed", "count", n, "retention_days", retentionDays)
	}
	return n, nil
}

// saturatingSub 计算 a-b，溢出时饱和到 int64 边界
// saturatingSub returns a-b clamped to the int64 range
func saturatingSub(a, b int64) int64 {
	if b > 0 && a < math.MinInt64+b {
		return math.MinInt64
	}
	if b < 0 && a > math.MaxInt64+b {
		return math.MaxInt64
	}
	return a - b
}
