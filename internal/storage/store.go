package storage

import (
	"context"

	"clipkeep/internal/clip"
)

// Store 剪贴板历史持久化接口
// Store is the persistence interface for clipboard history
type Store interface {
	// 条目操作 / Item operations
	InsertOrTouch(ctx context.Context, item clip.Item) (InsertResult, error)
	Touch(ctx context.Context, hash, sourceApp string, copiedAt int64) (id int64, found bool, err error)
	GetByID(ctx context.Context, id int64) (clip.Item, error)
	GetHistory(ctx context.Context, limit, offset int) ([]clip.Item, error)
	Search(ctx context.Context, query string, filters clip.SearchFilters, limit int) ([]clip.Item, error)
	SetFavorite(ctx context.Context, id int64, favorite bool) error
	Delete(ctx context.Context, id int64) error
	CleanupExpired(ctx context.Context, retentionDays int64) (int64, error)
	ImagePathExists(ctx context.Context, ref string) (bool, error)

	// 设置与排除列表 / Settings and exclusions
	GetSettings(ctx context.Context) (clip.Settings, error)
	UpdateSettings(ctx context.Context, settings clip.Settings) error
	ListExclusions(ctx context.Context) ([]string, error)
	AddExclusion(ctx context.Context, app string) error
	RemoveExclusion(ctx context.Context, app string) error

	// 生命周期 / Lifecycle
	Close() error
}

// ImageReleaser 在行删除提交后删除图片文件
// ImageReleaser removes image files once the owning rows are gone
type ImageReleaser interface {
	Delete(ref string) error
}

// InsertResult 描述 InsertOrTouch 的结果
// InsertResult describes what InsertOrTouch did
type InsertResult struct {
	ID      int64
	Touched bool
	Evicted int
}

var _ Store = (*SQLiteStore)(nil)
