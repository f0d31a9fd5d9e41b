// 包 report：单 IP 报告聚合，组合地理与信誉两路提供方，任一路失败只降级为错误字段
package report

import (
	"context"
	"threat-intel/internal/intel"
	"threat-intel/internal/logger"
	"threat-intel/internal/metrics"
)

// Aggregator：持有两路提供方；无其他状态，可并发调用
type Aggregator struct {
	geo intel.GeoProvider
	rep intel.ReputationProvider
}

func New(geo intel.GeoProvider, rep intel.ReputationProvider) *Aggregator {
	return &Aggregator{geo: geo, rep: rep}
}

// 文档注释：生成单 IP 合并报告
// 背景：两路查询互不依赖，顺序执行，各自受提供方超时约束；不校验 ip，非法输入由提供方报错。
// 返回：恒返回报告，不返回 error；失败原因写入 GeoError / RepError。
func (a *Aggregator) FullReport(ctx context.Context, ip string) intel.IPReport {
	r := intel.IPReport{IP: ip}

	geo, geoErr := a.geo.LookupGeo(ctx, ip)
	rep, repErr := a.rep.LookupReputation(ctx, ip)

	if geoErr == nil {
		r.ApplyGeo(geo)
	} else {
		r.GeoError = intel.AsMarker(a.geo.Name(), geoErr).Error
	}
	if repErr == nil {
		r.ApplyReputation(rep)
	} else {
		r.RepError = intel.AsMarker(a.rep.Name(), repErr).Error
	}

	outcome := "full"
	switch {
	case geoErr != nil && repErr != nil:
		outcome = "failed"
	case geoErr != nil || repErr != nil:
		outcome = "partial"
	}
	metrics.ReportsTotal.WithLabelValues(outcome).Inc()
	logger.L().Debug("report_built", "ip", ip, "outcome", outcome, "geo_error", r.GeoError, "rep_error", r.RepError)
	return r
}
