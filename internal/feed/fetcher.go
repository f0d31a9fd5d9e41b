package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"threat-intel/internal/config"
	"threat-intel/internal/logger"
	"threat-intel/internal/metrics"
	"time"
)

// maxPayload：单次载荷上限，防止异常上游撑爆内存
const maxPayload = 64 << 20

// 文档注释：黑名单拉取器
// 背景：固定 URL、固定单个缓存文件（一个 feed 一个缓存槽）；缓存失效由调用方显式 ClearCache 决定，本组件不做 TTL。
// 约束：缓存文件并发写入为“最后写入者胜出”，通过临时文件改名保证读到的总是完整载荷。
type Fetcher struct {
	url       string
	format    Format
	cachePath string
	client    *http.Client
	maxBytes  int64
}

func New(cfg *config.Config, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.FeedTimeout}
	}
	format := Format(cfg.FeedFormat)
	ext := string(format)
	if format == FormatAuto {
		ext = "feed"
	}
	return &Fetcher{
		url:       cfg.FeedURL,
		format:    format,
		cachePath: filepath.Join(cfg.CacheDir, "feodo_blocklist."+ext),
		client:    client,
		maxBytes:  maxPayload,
	}
}

// CachePath：缓存文件路径
func (f *Fetcher) CachePath() string { return f.cachePath }

// 文档注释：获取归一化黑名单
// 参数：useCache 为 true 且缓存存在时直接解析缓存，不发请求；缓存不存在时拉取、解析成功后写入原始载荷。
// 返回：网络错误、非 2xx、解析失败均作为 error 返回（无可用的部分结果）；零条目返回空表。
func (f *Fetcher) FetchBlocklist(ctx context.Context, useCache bool) (*Table, error) {
	l := logger.L()
	if useCache {
		payload, err := os.ReadFile(f.cachePath)
		switch {
		case err == nil:
			t, perr := Parse(payload, f.format)
			if perr != nil {
				metrics.FeedFetchTotal.WithLabelValues("cache", "error").Inc()
				return nil, fmt.Errorf("parse cached feed %s: %w", f.cachePath, perr)
			}
			metrics.FeedFetchTotal.WithLabelValues("cache", "ok").Inc()
			metrics.FeedRows.Set(float64(t.Len()))
			l.Debug("feed_cache_hit", "path", f.cachePath, "rows", t.Len())
			return t, nil
		case !errors.Is(err, os.ErrNotExist):
			metrics.FeedFetchTotal.WithLabelValues("cache", "error").Inc()
			return nil, fmt.Errorf("read feed cache: %w", err)
		}
		l.Debug("feed_cache_miss", "path", f.cachePath)
	}

	return f.fetchNetwork(ctx, useCache)
}

// 文档注释：强制回源并覆盖缓存
// 背景：供后台定时刷新使用；与 ClearCache 后再拉取不同，新载荷解析成功前旧缓存保持可读。
func (f *Fetcher) Refresh(ctx context.Context) (*Table, error) {
	return f.fetchNetwork(ctx, true)
}

func (f *Fetcher) fetchNetwork(ctx context.Context, writeCache bool) (*Table, error) {
	l := logger.L()
	payload, err := f.download(ctx)
	if err != nil {
		metrics.FeedFetchTotal.WithLabelValues("network", "error").Inc()
		l.Error("feed_fetch_error", "url", f.url, "err", err)
		return nil, err
	}
	t, err := Parse(payload, f.format)
	if err != nil {
		metrics.FeedFetchTotal.WithLabelValues("network", "error").Inc()
		l.Error("feed_parse_error", "url", f.url, "err", err)
		return nil, err
	}
	if writeCache {
		if err := f.writeCache(payload); err != nil {
			metrics.FeedFetchTotal.WithLabelValues("network", "error").Inc()
			return nil, fmt.Errorf("write feed cache: %w", err)
		}
		l.Debug("feed_cache_written", "path", f.cachePath, "bytes", len(payload))
	}
	metrics.FeedFetchTotal.WithLabelValues("network", "ok").Inc()
	metrics.FeedRows.Set(float64(t.Len()))
	l.Info("feed_fetched", "url", f.url, "rows", t.Len(), "bytes", len(payload))
	return t, nil
}

// 文档注释：清除缓存文件
// 背景：对应界面上的“刷新”操作，下一次 FetchBlocklist 会重新拉取；文件不存在不视为错误。
func (f *Fetcher) ClearCache() error {
	if err := os.Remove(f.cachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	logger.L().Info("feed_cache_cleared", "path", f.cachePath)
	return nil
}

func (f *Fetcher) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	t0 := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch feed: HTTP %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	// 截断的载荷可能仍能解析（尤其 CSV），超限一律按失败处理，不写缓存
	if int64(len(b)) > f.maxBytes {
		return nil, fmt.Errorf("fetch feed: payload exceeds %d bytes", f.maxBytes)
	}
	logger.L().Debug("feed_download", "url", f.url, "status", resp.StatusCode, "bytes", len(b), "duration_ms", time.Since(t0).Milliseconds())
	return b, nil
}

func (f *Fetcher) writeCache(payload []byte) error {
	dir := filepath.Dir(f.cachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".feodo-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.cachePath)
}
