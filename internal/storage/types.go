package storage

import (
	"context"
	"database/sql"
	"fmt"

	"clipkeep/internal/clip"
)

// TouchPolicy 决定重复复制时如何处理已有条目
// TouchPolicy decides what a repeat copy of stored content does
type TouchPolicy int

const (
	// TouchBump 更新 copied_at / source_app / category，使条目回到顶部
	// TouchBump moves the existing row to the top of history
	TouchBump TouchPolicy = iota
	// TouchIgnore 保持已有条目不变
	// TouchIgnore leaves the existing row untouched
	TouchIgnore
)

func (p TouchPolicy) String() string {
	switch p {
	case TouchBump:
		return "bump"
	case TouchIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("TouchPolicy(%d)", int(p))
	}
}

// apply 在事务中对已有行应用策略；category 为空时保持原值
// apply updates an existing row inside tx; an empty category is kept as is
func (p TouchPolicy) apply(ctx context.Context, tx *sql.Tx, id int64, sourceApp string, category clip.Category, copiedAt int64) error {
	if p == TouchIgnore {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE clipboard_items
		SET copied_at = ?, source_app = ?, category = COALESCE(NULLIF(?, ''), category)
		WHERE id = ?`,
		copiedAt, sourceApp, string(category), id)
	return err
}

// Option 配置 SQLiteStore
// Option configures a SQLiteStore
type Option func(*SQLiteStore)
