package bootstrap

import (
	"context"
	"fmt"
	"os"
	"sync"

	"clipkeep/internal/app"
	"clipkeep/internal/clipboard"
	"clipkeep/internal/config"
	"clipkeep/internal/imagestore"
	"clipkeep/internal/logging"
	"clipkeep/internal/monitor"
	"clipkeep/internal/storage"
)

// Options 控制 Build 初始化哪些部件
// Options selects which parts Build wires up
type Options struct {
	// Clipboard 打开系统剪贴板（copy 命令与守护进程需要）
	// Clipboard opens the OS clipboard; needed by the daemon and by copy
	Clipboard bool
	// Monitor 创建监控器（仅守护进程）；隐含 Clipboard
	// Monitor creates the polling monitor (daemon only); implies Clipboard
	Monitor bool
	// ClipboardOverride 测试用剪贴板 / test clipboard replacing the OS one
	ClipboardOverride clipboard.Clipboard
	// Source 源应用解析器，默认 clipboard.Frontmost
	// Source resolves the source app; defaults to clipboard.Frontmost
	Source clipboard.SourceResolver
}

// BuildResult 与界面无关的构建结果，调用方负责 Close
// BuildResult is UI-agnostic; the caller must Close it
type BuildResult struct {
	App     *app.App
	Store   *storage.SQLiteStore
	Images  *imagestore.Store
	Monitor *monitor.Monitor
	Config  config.Config

	logger logging.Logger
}

// Build 按顺序初始化：数据目录、存储、图片目录、剪贴板、监控器、命令入口
// Build initializes in order: data dir, store, image store, clipboard,
// monitor, command surface.
func Build(cfg config.Config, logger logging.Logger, opts Options) (*BuildResult, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.Storage.DataDir == "" {
		return nil, fmt.Errorf("data dir is empty")
	}
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath(), storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	images, err := imagestore.New(cfg.ImagesDir(), store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init image store: %w", err)
	}
	store.AttachImages(images)

	cb, err := openClipboard(cfg, opts)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	res := &BuildResult{Store: store, Images: images, Config: cfg, logger: logger}
	var suppressor app.Suppressor
	if opts.Monitor && cb != nil {
		source := opts.Source
		if source == nil {
			source = clipboard.Frontmost
		}
		res.Monitor = monitor.New(cb, store, images,
			monitor.WithInterval(cfg.Monitor.PollInterval),
			monitor.WithLogger(logger),
			monitor.WithSource(source),
		)
		suppressor = res.Monitor
	}

	res.App = app.New(app.Options{
		Store:       store,
		Images:      images,
		Clipboard:   cb,
		Monitor:     suppressor,
		Logger:      logger,
		OrphanGrace: cfg.Retention.OrphanGrace,
	})
	return res, nil
}

// Run 先做一次保留期清理，再并行运行监控循环与定时清理，直到 ctx 结束
// Run performs a retention sweep, then runs the monitor loop and the
// periodic sweep side by side until ctx is done.
func (r *BuildResult) Run(ctx context.Context) error {
	if res, err := r.App.Sweep(ctx); err != nil {
		r.logger.Warn(ctx, err, "startup retention sweep failed")
	} else {
		r.logger.Info(ctx, "startup retention sweep", "expired", res.Expired, "orphans", res.Orphans)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.App.RunRetention(ctx, r.Config.Retention.Interval)
	}()

	var monErr error
	if r.Monitor != nil && r.Config.Monitor.Enabled {
		monErr = r.Monitor.Run(ctx)
	} else {
		<-ctx.Done()
	}
	wg.Wait()
	return monErr
}

// Close 关闭存储 / Close releases the store
func (r *BuildResult) Close() error {
	return r.Store.Close()
}
