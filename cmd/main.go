// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"threat-intel/internal/abuseipdb"
	"threat-intel/internal/api"
	"threat-intel/internal/config"
	"threat-intel/internal/feed"
	"threat-intel/internal/geocode"
	"threat-intel/internal/ipinfo"
	"threat-intel/internal/localgeo"
	"threat-intel/internal/logger"
	"threat-intel/internal/metrics"
	"threat-intel/internal/middleware"
	"threat-intel/internal/report"
	"threat-intel/internal/utils"
)

func main() {
	config.LoadDotEnv()
	l := logger.Setup()
	l.Debug("log_init_ok")
	if err := run(config.Load()); err != nil {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
}

// 文档注释：装配依赖并阻塞运行 HTTP 服务
// 约束：所有错误经返回值交给 main 统一退出，保证此处的 defer（离线库、Redis、刷新协程）都会执行。
func run(cfg *config.Config) error {
	l := logger.L()
	l.Debug("config_loaded",
		"api_base", cfg.APIBase,
		"feed_url", cfg.FeedURL,
		"feed_format", cfg.FeedFormat,
		"cache_dir", cfg.CacheDir,
		"ipinfo_token", cfg.IPInfoToken != "",
		"abuseipdb_key", cfg.AbuseIPDBKey != "",
	)
	if cfg.IPInfoToken == "" {
		l.Warn("ipinfo_token_missing")
	}
	if cfg.AbuseIPDBKey == "" {
		l.Warn("abuseipdb_key_missing")
	}

	geo, closeGeo := localgeo.FromConfig(cfg, ipinfo.New(cfg, nil))
	defer closeGeo()
	rep := abuseipdb.New(cfg, nil)
	rc := utils.OpenRedis(cfg)
	if rc != nil {
		defer rc.Close()
	}

	fetcher := feed.New(cfg, nil)
	views := api.NewViewCache(rc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed.StartRefresher(ctx, fetcher, cfg.FeedRefreshEvery, views.Invalidate)

	apiMux := api.BuildRoutes(api.Deps{
		Reporter:       report.New(geo, rep),
		Feed:           fetcher,
		Geocoder:       geocode.New(geo, cfg.GeocodeWorkers),
		Views:          views,
		UseCache:       cfg.FeedUseCache,
		GeocodeLimit:   cfg.GeocodeLimit,
		FeedViewTTL:    cfg.FeedViewTTL,
		HeatmapViewTTL: cfg.HeatmapViewTTL,
	})
	mux := http.NewServeMux()
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(cfg, handler)
	s := &http.Server{Addr: cfg.Addr, Handler: handler}
	if cfg.TLSEnable {
		if err := utils.EnsureSelfSignedCert(cfg.TLSCertPath, cfg.TLSKeyPath, "threat-intel.local"); err != nil {
			return fmt.Errorf("tls cert: %w", err)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCertPath)
		if err := s.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
	l.Info("listening", "addr", cfg.Addr)
	if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
