// 包 middleware：入口限流，保护第三方提供方的配额
package middleware

import (
	"net/http"
	"sync"
	"threat-intel/internal/config"
	"threat-intel/internal/logger"
	"time"
)

// 文档注释：令牌桶限流（每秒）
// 背景：每个 /report 请求会消耗 ipinfo 与 AbuseIPDB 的日配额，入口限速可避免突发流量耗尽额度。
// 约束：不排队，超出即返回 429；容量按自然秒重置。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	mu       sync.Mutex
	now      func() time.Time
}

func NewTokenBucket(qps int) *TokenBucket {
	if qps < 1 {
		qps = 1
	}
	return &TokenBucket{capacity: qps, tokens: qps, lastSec: time.Now().Unix(), now: time.Now}
}

// Allow：取一个令牌
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// 文档注释：按配置包装限流
// 约束：未开启时原样返回 next。
func Wrap(cfg *config.Config, next http.Handler) http.Handler {
	if !cfg.RateLimitEnabled {
		return next
	}
	tb := NewTokenBucket(cfg.RateLimitQPS)
	logger.L().Info("rate_limit_enabled", "qps", cfg.RateLimitQPS)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.Allow() {
			logger.L().Debug("rate_limited", "path", r.URL.Path, "remote", r.RemoteAddr)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
