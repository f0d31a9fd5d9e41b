package feed

import (
	"context"
	"threat-intel/internal/logger"
	"time"
)

// 文档注释：后台定时刷新黑名单缓存
// 背景：上游每 5 分钟左右更新一次；服务长期运行时按固定周期回源覆盖缓存，并通过 after 回调让视图缓存同步失效。
// 约束：every<=0 时不启动；失败只记录日志，保留旧缓存，下一周期继续；ctx 取消后协程退出。
func StartRefresher(ctx context.Context, f *Fetcher, every time.Duration, after func(context.Context)) {
	if every <= 0 {
		return
	}
	l := logger.L()
	l.Info("feed_refresher_start", "every", every.String())
	go func() {
		tk := time.NewTicker(every)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				l.Info("feed_refresher_stop")
				return
			case <-tk.C:
			}
			t, err := f.Refresh(ctx)
			if err != nil {
				l.Error("feed_refresh_error", "err", err)
				continue
			}
			l.Info("feed_refresh_done", "rows", t.Len())
			if after != nil {
				after(ctx)
			}
		}
	}()
}
