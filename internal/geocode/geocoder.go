// 包 geocode：对黑名单中的 IP 做有上限的批量地理编码，产出热力图所需的坐标点
package geocode

import (
	"context"
	"threat-intel/internal/intel"
	"threat-intel/internal/logger"
	"threat-intel/internal/metrics"
	"time"

	"golang.org/x/sync/errgroup"
)

// Geocoder：基于单个地理提供方的批量编码器
type Geocoder struct {
	geo     intel.GeoProvider
	workers int
}

// 文档注释：构造批量编码器
// 约束：workers<1 视为 1，即逐个顺序查询。
func New(geo intel.GeoProvider, workers int) *Geocoder {
	if workers < 1 {
		workers = 1
	}
	return &Geocoder{geo: geo, workers: workers}
}

// Dedupe：保留首次出现顺序去重，并丢弃空串
func Dedupe(ips []string) []string {
	seen := make(map[string]struct{}, len(ips))
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		if ip == "" {
			continue
		}
		if _, ok := seen[ip]; ok {
			continue
		}
		seen[ip] = struct{}{}
		out = append(out, ip)
	}
	return out
}

// 文档注释：批量地理编码子集
// 参数：ips 可含重复；先去重再截断到 limit，limit<=0 时不做任何查询。
// 返回：仅保留查询成功且带纬度的记录，顺序与采样顺序一致；单个 IP 失败只被跳过，不影响整体。
// 约束：每个采样 IP 至多查询一次；并发度受 workers 限制。
func (g *Geocoder) GeocodeSubset(ctx context.Context, ips []string, limit int) []intel.GeoRecord {
	out := []intel.GeoRecord{}
	if limit <= 0 {
		return out
	}
	sample := Dedupe(ips)
	if len(sample) > limit {
		sample = sample[:limit]
	}
	if len(sample) == 0 {
		return out
	}
	t0 := time.Now()
	slots := make([]*intel.GeoRecord, len(sample))
	var eg errgroup.Group
	eg.SetLimit(g.workers)
	for i, ip := range sample {
		i, ip := i, ip
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			rec, err := g.geo.LookupGeo(ctx, ip)
			if err != nil {
				logger.L().Debug("geocode_skip", "ip", ip, "err", err)
				return nil
			}
			slots[i] = rec
			return nil
		})
	}
	_ = eg.Wait()
	for _, rec := range slots {
		if rec == nil || rec.Lat == nil {
			continue
		}
		out = append(out, *rec)
	}
	metrics.GeocodeSampledTotal.Add(float64(len(sample)))
	metrics.GeocodeKeptTotal.Add(float64(len(out)))
	logger.L().Info("geocode_subset", "input", len(ips), "sampled", len(sample), "kept", len(out), "workers", g.workers, "duration_ms", time.Since(t0).Milliseconds())
	return out
}
