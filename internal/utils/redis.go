// 包 utils：Redis 连接与自签证书等进程级工具
package utils

import (
	"context"
	"threat-intel/internal/config"
	"threat-intel/internal/logger"
	"time"

	"github.com/redis/go-redis/v9"
)

// 文档注释：按配置打开 Redis 客户端
// 背景：Redis 仅承载视图缓存，属于可选依赖；未开启或无法连通时返回 nil，调用方据此退化为无缓存。
func OpenRedis(cfg *config.Config) *redis.Client {
	if !cfg.RedisEnable || cfg.RedisAddr == "" {
		logger.L().Info("redis_disabled")
		return nil
	}
	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		logger.L().Error("redis_ping_error", "addr", cfg.RedisAddr, "err", err)
		_ = rc.Close()
		return nil
	}
	logger.L().Info("redis_ping_ok", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return rc
}
