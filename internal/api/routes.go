// 包 api：集中注册 HTTP API 路由以解耦主入口；单 IP 报告、黑名单视图、热力图点集与刷新
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"threat-intel/internal/feed"
	"threat-intel/internal/intel"
	"threat-intel/internal/logger"
	"time"
)

// Reporter：单 IP 合并报告
type Reporter interface {
	FullReport(ctx context.Context, ip string) intel.IPReport
}

// FeedSource：黑名单来源（含本地缓存）
type FeedSource interface {
	FetchBlocklist(ctx context.Context, useCache bool) (*feed.Table, error)
	ClearCache() error
}

// BatchGeocoder：批量地理编码
type BatchGeocoder interface {
	GeocodeSubset(ctx context.Context, ips []string, limit int) []intel.GeoRecord
}

// 文档注释：路由依赖
// 约束：Views 可为 nil（不启用 Redis）；GeocodeLimit 为热力图采样上限，请求参数只能调小，<=0 时取 200。
type Deps struct {
	Reporter       Reporter
	Feed           FeedSource
	Geocoder       BatchGeocoder
	Views          *ViewCache
	UseCache       bool
	GeocodeLimit   int
	FeedViewTTL    time.Duration
	HeatmapViewTTL time.Duration
}

// feedView：/feed 响应
type feedView struct {
	Total    int        `json:"total"`
	Filtered int        `json:"filtered"`
	Empty    bool       `json:"empty"`
	Columns  []string   `json:"columns"`
	Rows     []feed.Row `json:"rows"`
}

// heatmapView：/heatmap 响应
type heatmapView struct {
	Count  int               `json:"count"`
	Points []intel.GeoRecord `json:"points"`
}

const defaultHeatmapLimit = 200

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀
func BuildRoutes(d Deps) *http.ServeMux {
	if d.GeocodeLimit <= 0 {
		d.GeocodeLimit = defaultHeatmapLimit
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if ip == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ip required"})
			return
		}
		writeJSON(w, http.StatusOK, d.Reporter.FullReport(r.Context(), ip))
	})

	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		t, err := loadFeed(r.Context(), d)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"warning": "blocklist unavailable: " + err.Error()})
			return
		}
		sub := t.Filter(q.Get("country"), q.Get("asn")).Head(queryInt(q.Get("limit"), 0))
		writeJSON(w, http.StatusOK, feedView{
			Total:    t.Len(),
			Filtered: sub.Len(),
			Empty:    t.Empty(),
			Columns:  sub.Columns,
			Rows:     sub.Rows,
		})
	})

	mux.HandleFunc("/feed/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := d.Feed.ClearCache(); err != nil {
			logger.L().Error("feed_refresh_error", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		d.Views.Invalidate(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/heatmap", func(w http.ResponseWriter, r *http.Request) {
		limit := min(queryInt(r.URL.Query().Get("limit"), d.GeocodeLimit), d.GeocodeLimit)
		key := heatmapPrefix + strconv.Itoa(limit)
		var hv heatmapView
		if d.Views.Get(r.Context(), "heatmap", key, &hv) {
			writeJSON(w, http.StatusOK, hv)
			return
		}
		t, err := loadFeed(r.Context(), d)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"warning": "blocklist unavailable: " + err.Error()})
			return
		}
		pts := d.Geocoder.GeocodeSubset(r.Context(), t.IPs(), limit)
		hv = heatmapView{Count: len(pts), Points: pts}
		d.Views.Set(r.Context(), key, hv, d.HeatmapViewTTL)
		writeJSON(w, http.StatusOK, hv)
	})

	return mux
}

// loadFeed：优先 Redis 视图，其次拉取器（含文件缓存）
func loadFeed(ctx context.Context, d Deps) (*feed.Table, error) {
	var t feed.Table
	if d.Views.Get(ctx, "feed", feedViewKey, &t) {
		return &t, nil
	}
	tp, err := d.Feed.FetchBlocklist(ctx, d.UseCache)
	if err != nil {
		logger.L().Error("feed_load_error", "err", err)
		return nil, err
	}
	d.Views.Set(ctx, feedViewKey, tp, d.FeedViewTTL)
	return tp, nil
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
