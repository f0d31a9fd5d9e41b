package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

var (
	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threatintel_provider_requests_total",
		Help: "Total per-IP provider lookups",
	}, []string{"provider"})
	ProviderSuccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threatintel_provider_success_total",
		Help: "Total per-IP provider lookups that returned data",
	}, []string{"provider"})
	ProviderFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threatintel_provider_fail_total",
		Help: "Total per-IP provider lookups that returned an error marker, by kind",
	}, []string{"provider", "kind"})
	ProviderDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "threatintel_provider_duration_ms",
		Help:    "Provider lookup duration in milliseconds",
		Buckets: durationBuckets,
	}, []string{"provider"})
	ReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threatintel_reports_total",
		Help: "Merged IP reports by outcome (full, partial, failed)",
	}, []string{"outcome"})
	FeedFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threatintel_feed_fetch_total",
		Help: "Blocklist feed loads by origin (network, cache) and status",
	}, []string{"origin", "status"})
	FeedRows = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "threatintel_feed_rows",
		Help: "Rows in the last normalized blocklist feed",
	})
	GeocodeSampledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threatintel_geocode_sampled_total",
		Help: "IPs sampled for batch geocoding",
	})
	GeocodeKeptTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threatintel_geocode_kept_total",
		Help: "IPs successfully geocoded with coordinates",
	})
	ViewCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threatintel_view_cache_hits_total",
		Help: "Redis view cache hits",
	}, []string{"view"})
	ViewCacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threatintel_view_cache_misses_total",
		Help: "Redis view cache misses",
	}, []string{"view"})
)

func init() {
	prometheus.MustRegister(
		ProviderRequestsTotal,
		ProviderSuccessTotal,
		ProviderFailTotal,
		ProviderDurationMs,
		ReportsTotal,
		FeedFetchTotal,
		FeedRows,
		GeocodeSampledTotal,
		GeocodeKeptTotal,
		ViewCacheHitsTotal,
		ViewCacheMissesTotal,
	)
}

// 文档注释：返回 Prometheus 抓取端点
func Handler() http.Handler { return promhttp.Handler() }
