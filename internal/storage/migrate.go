package storage

import (
	"context"
	"fmt"
)

// migrations 按顺序执行；第 i 个迁移把 user_version 从 i 升到 i+1
// migrations run in order; entry i moves user_version from i to i+1
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS clipboard_items (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		content      TEXT NOT NULL,
		content_type TEXT NOT NULL CHECK (content_type IN ('text', 'image')),
		image_path   TEXT,
		category     TEXT NOT NULL DEFAULT 'misc',
		source_app   TEXT NOT NULL DEFAULT 'Unknown',
		preview      TEXT NOT NULL DEFAULT '',
		copied_at    INTEGER NOT NULL,
		is_favorite  INTEGER NOT NULL DEFAULT 0,
		is_sensitive INTEGER NOT NULL DEFAULT 0,
		hash         TEXT NOT NULL UNIQUE,
		CHECK ((content_type = 'image') = (image_path IS NOT NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_items_copied_at ON clipboard_items(copied_at DESC);
	CREATE INDEX IF NOT EXISTS idx_items_category ON clipboard_items(category);
	CREATE INDEX IF NOT EXISTS idx_items_favorite ON clipboard_items(is_favorite);
	CREATE INDEX IF NOT EXISTS idx_items_content_type ON clipboard_items(content_type);
	CREATE INDEX IF NOT EXISTS idx_items_source_app ON clipboard_items(source_app);
	CREATE INDEX IF NOT EXISTS idx_items_image_path ON clipboard_items(image_path) WHERE image_path IS NOT NULL;

	CREATE VIRTUAL TABLE IF NOT EXISTS clipboard_fts USING fts5(
		content,
		category,
		source_app,
		content='clipboard_items',
		content_rowid='id'
	);

	CREATE TRIGGER IF NOT EXISTS clipboard_fts_insert AFTER INSERT ON clipboard_items BEGIN
		INSERT INTO clipboard_fts(rowid, content, category, source_app)
		VALUES (new.id, new.content, new.category, new.source_app);
	END;

	CREATE TRIGGER IF NOT EXISTS clipboard_fts_delete AFTER DELETE ON clipboard_items BEGIN
		INSERT INTO clipboard_fts(clipboard_fts, rowid, content, category, source_app)
		VALUES ('delete', old.id, old.content, old.category, old.source_app);
	END;

	CREATE TRIGGER IF NOT EXISTS clipboard_fts_update AFTER UPDATE OF content, category, source_app ON clipboard_items BEGIN
		INSERT INTO clipboard_fts(clipboard_fts, rowid, content, category, source_app)
		VALUES ('delete', old.id, old.content, old.category, old.source_app);
		INSERT INTO clipboard_fts(rowid, content, category, source_app)
		VALUES (new.id, new.content, new.category, new.source_app);
	END;

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO settings (key, value) VALUES
		('retention_days', '30'),
		('max_items', '1000'),
		('keyboard_shortcut', 'CmdOrCtrl+Shift+V'),
		('auto_exclude_sensitive', 'true'),
		('max_image_size_mb', '5');

	CREATE TABLE IF NOT EXISTS app_exclusions (
		app_name TEXT PRIMARY KEY COLLATE NOCASE
	);
	`,
}

// SchemaVersion 当前代码期望的 schema 版本
// SchemaVersion is the schema version this code expects
var SchemaVersion = len(migrations)

// migrate 依据 PRAGMA user_version 执行未应用的迁移
// migrate applies pending migrations tracked by PRAGMA user_version
func (s *SQLiteStore) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, len(migrations))
	}

	for v := version; v < len(migrations); v++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", v+1, err)
		}
		// PRAGMA 不支持参数绑定 / PRAGMA does not accept bound parameters
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set user_version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", v+1, err)
		}
	}
	return nil
}
