package api

import (
	"context"
	"encoding/json"
	"threat-intel/internal/logger"
	"threat-intel/internal/metrics"
	"time"

	"github.com/redis/go-redis/v9"
)

// 视图缓存键
const (
	viewKeyPrefix = "view:"
	feedViewKey   = viewKeyPrefix + "feed"
	heatmapPrefix = viewKeyPrefix + "heatmap:"
)

// 文档注释：Redis 视图缓存
// 背景：缓存归一化后的黑名单表与热力图点集，避免每次请求都回源或重复地理编码；TTL 到期或显式刷新后失效。
// 约束：rc 为 nil 时所有操作均为空操作（总是未命中）；Redis 错误只记录日志，不影响主流程。
type ViewCache struct {
	rc *redis.Client
}

func NewViewCache(rc *redis.Client) *ViewCache { return &ViewCache{rc: rc} }

// 文档注释：读取缓存视图
// 返回：命中且反序列化成功时为 true。
func (v *ViewCache) Get(ctx context.Context, view, key string, dst any) bool {
	if v == nil || v.rc == nil {
		return false
	}
	s, err := v.rc.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.L().Debug("view_cache_get_error", "key", key, "err", err)
		}
		metrics.ViewCacheMissesTotal.WithLabelValues(view).Inc()
		return false
	}
	if err := json.Unmarshal([]byte(s), dst); err != nil {
		logger.L().Debug("view_cache_decode_error", "key", key, "err", err)
		metrics.ViewCacheMissesTotal.WithLabelValues(view).Inc()
		return false
	}
	metrics.ViewCacheHitsTotal.WithLabelValues(view).Inc()
	return true
}

func (v *ViewCache) Set(ctx context.Context, key string, val any, ttl time.Duration) {
	if v == nil || v.rc == nil {
		return
	}
	b, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := v.rc.Set(ctx, key, string(b), ttl).Err(); err != nil {
		logger.L().Debug("view_cache_set_error", "key", key, "err", err)
	}
}

// 文档注释：清空全部视图缓存
// 背景：刷新黑名单后热力图同样过期；按前缀 SCAN 删除，避免 KEYS 阻塞。
func (v *ViewCache) Invalidate(ctx context.Context) {
	if v == nil || v.rc == nil {
		return
	}
	var keys []string
	iter := v.rc.Scan(ctx, 0, viewKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.L().Error("view_cache_scan_error", "err", err)
	}
	if len(keys) == 0 {
		return
	}
	if err := v.rc.Del(ctx, keys...).Err(); err != nil {
		logger.L().Error("view_cache_del_error", "err", err)
		return
	}
	logger.L().Info("view_cache_invalidated", "keys", len(keys))
}
