package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clipkeep/internal/apperr"
	"clipkeep/internal/clip"
	"clipkeep/internal/clipboard"
	"clipkeep/internal/logging"
	"clipkeep/internal/storage"
)

// ErrNoClipboard 未配置剪贴板后端 / no clipboard backend is attached
var ErrNoClipboard = errors.New("no clipboard backend available")

// Images 图片读取与孤儿清理 / image reads and orphan sweeps
type Images interface {
	Read(ctx context.Context, ref string) ([]byte, error)
	PruneOrphans(ctx context.Context, grace time.Duration) (int, error)
}

// Suppressor 接收前台写入剪贴板的指纹，避免被监控器重新捕获
// Suppressor receives fingerprints of foreground clipboard writes so the
// monitor does not record them again
type Suppressor interface {
	Suppress(hash string)
}

type Options struct {
	Store     storage.Store
	Images    Images
	Clipboard clipboard.Clipboard
	// Monitor 为空时（例如一次性 CLI 调用）不做抑制
	// Monitor may be nil, e.g. for a one-shot CLI process
	Monitor     Suppressor
	Logger      logging.Logger
	OrphanGrace time.Duration
}

// App 前台命令入口；每个方法可与监控循环并发调用
// App is the foreground command surface. Every method may run concurrently
// with the monitor loop and with other calls.
type App struct {
	store       storage.Store
	images      Images
	cb          clipboard.Clipboard
	monitor     Suppressor
	logger      logging.Logger
	orphanGrace time.Duration
}

func New(opts Options) *App {
	a := &App{
		store:       opts.Store,
		images:      opts.Images,
		cb:          opts.Clipboard,
		monitor:     opts.Monitor,
		logger:      opts.Logger,
		orphanGrace: opts.OrphanGrace,
	}
	if a.logger == nil {
		a.logger = logging.Nop()
	}
	a.logger = a.logger.WithComponent("app")
	if a.orphanGrace <= 0 {
		a.orphanGrace = 10 * time.Minute
	}
	return a
}

func (a *App) GetHistory(ctx context.Context, limit, offset int) ([]clip.Item, error) {
	return a.store.GetHistory(ctx, limit, offset)
}

func (a *App) Search(ctx context.Context, query string, filters clip.SearchFilters, limit int) ([]clip.Item, error) {
	return a.store.Search(ctx, query, filters, limit)
}

func (a *App) GetItemByID(ctx context.Context, id int64) (clip.Item, error) {
	return a.store.GetByID(ctx, id)
}

// CopyToClipboard 把条目内容写回系统剪贴板，并先通知监控器跳过该内容
// CopyToClipboard writes the item's payload back to the OS clipboard. The
// monitor is told the payload's fingerprint first so it is not captured as
// a new item.
func (a *App) CopyToClipboard(ctx context.Context, id int64) error {
	if a.cb == nil {
		return ErrNoClipboard
	}
	item, err := a.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	switch item.ContentType {
	case clip.ContentImage:
		data, err := a.images.Read(ctx, item.ImagePath)
		if err != nil {
			return err
		}
		a.suppress(item.Hash)
		if err := a.cb.WriteImage(ctx, data); err != nil {
			return fmt.Errorf("write image to clipboard: %w", err)
		}
	default:
		data := []byte(item.Content)
		a.suppress(item.Hash)
		if err := a.cb.WriteText(ctx, data); err != nil {
			return fmt.Errorf("write text to clipboard: %w", err)
		}
	}
	a.logger.Debug(ctx, "copied item to clipboard", "id", id, "content_type", string(item.ContentType))
	return nil
}

// suppress 通知监视器跳过即将写入的内容。
// suppress announces the row's fingerprint, which is what the monitor
// computes when it reads the written payload back.
func (a *App) suppress(hash string) {
	if a.monitor != nil {
		a.monitor.Suppress(hash)
	}
}

func (a *App) SetFavorite(ctx context.Context, id int64, favorite bool) error {
	return a.store.SetFavorite(ctx, id, favorite)
}

func (a *App) DeleteItem(ctx context.Context, id int64) error {
	return a.store.Delete(ctx, id)
}

// GetImageData 仅返回已登记的图片引用的数据
// GetImageData returns the bytes of a registered image reference
func (a *App) GetImageData(ctx context.Context, ref string) ([]byte, error) {
	if a.images == nil {
		return nil, fmt.Errorf("%w: image store not configured", apperr.ErrNotFound)
	}
	return a.images.Read(ctx, ref)
}

func (a *App) GetSettings(ctx context.Context) (clip.Settings, error) {
	return a.store.GetSettings(ctx)
}

func (a *App) UpdateSettings(ctx context.Context, settings clip.Settings) error {
	if err := a.store.UpdateSettings(ctx, settings); err != nil {
		return err
	}
	a.logger.Info(ctx, "settings updated",
		"retention_days", settings.RetentionDays,
		"max_items", settings.MaxItems,
		"auto_exclude_sensitive", settings.AutoExcludeSensitive,
		"max_image_size_mb", settings.MaxImageSizeMB)
	return nil
}

func (a *App) GetExclusions(ctx context.Context) ([]string, error) {
	return a.store.ListExclusions(ctx)
}

func (a *App) AddExclusion(ctx context.Context, name string) error {
	return a.store.AddExclusion(ctx, name)
}

func (a *App) RemoveExclusion(ctx context.Context, name string) error {
	return a.store.RemoveExclusion(ctx, name)
}
