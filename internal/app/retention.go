package app

import (
	"context"
	"time"
)

// SweepResult 一次保留期清理的结果 / outcome of one retention pass
type SweepResult struct {
	Expired int64
	Orphans int
}

// Sweep 按当前设置删除过期条目，再清理无主图片文件
// Sweep deletes expired rows under the current retention setting, then
// removes image files with no live row that are older than the grace period.
func (a *App) Sweep(ctx context.Context) (SweepResult, error) {
	settings, err := a.store.GetSettings(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	expired, err := a.store.CleanupExpired(ctx, settings.RetentionDays)
	if err != nil {
		return SweepResult{}, err
	}
	res := SweepResult{Expired: expired}
	if a.images != nil {
		orphans, err := a.images.PruneOrphans(ctx, a.orphanGrace)
		if err != nil {
			return res, err
		}
		res.Orphans = orphans
	}
	return res, nil
}

// RunRetention 每个 interval 清理一次，直到 ctx 结束；启动清理由调用方先做
// RunRetention sweeps every interval until ctx is done. The startup sweep is
// the caller's, run before the monitor starts. Failed sweeps are logged and
// the loop keeps going.
func (a *App) RunRetention(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweepAndLog(ctx)
		}
	}
}

func (a *App) sweepAndLog(ctx context.Context) {
	res, err := a.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn(ctx, err, "retention sweep failed")
		}
		return
	}
	if res.Expired > 0 || res.Orphans > 0 {
		a.logger.Info(ctx, "retention sweep", "expired", res.Expired, "orphans", res.Orphans)
	}
}
