package metrics

import "time"

// 文档注释：记录一次提供方查询
// 背景：ipinfo、AbuseIPDB 与本地库共用同一组指标；kind 为空表示成功。
func ObserveLookup(provider string, start time.Time, kind string) {
	ProviderRequestsTotal.WithLabelValues(provider).Inc()
	ProviderDurationMs.WithLabelValues(provider).Observe(float64(time.Since(start).Milliseconds()))
	if kind == "" {
		ProviderSuccessTotal.WithLabelValues(provider).Inc()
		return
	}
	ProviderFailTotal.WithLabelValues(provider, kind).Inc()
}
