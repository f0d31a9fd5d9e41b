// 包 localgeo：离线地理数据源（MaxMind mmdb、ip2region xdb）及按序回退的提供方链
package localgeo

import (
	"context"
	"net"
	"threat-intel/internal/intel"
	"threat-intel/internal/metrics"
	"time"

	"github.com/oschwald/geoip2-golang"
)

const MMDBProviderName = "geolite2"

// 文档注释：GeoLite2-City 离线提供方
// 背景：在线 token 缺失或额度耗尽时仍可为热力图提供坐标；City 库不含组织字段。
type MMDB struct {
	r *geoip2.Reader
}

func OpenMMDB(path string) (*MMDB, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &MMDB{r: r}, nil
}

func (m *MMDB) Name() string { return MMDBProviderName }

func (m *MMDB) Close() error { return m.r.Close() }

// 文档注释：按 City 库查询
// 约束：无法解析的 IP 与库中无记录均视为 ParseFailure；读库错误视为 TransportFailure。
func (m *MMDB) LookupGeo(ctx context.Context, ip string) (*intel.GeoRecord, error) {
	t0 := time.Now()
	addr := net.ParseIP(ip)
	if addr == nil {
		metrics.ObserveLookup(MMDBProviderName, t0, intel.ParseFailure.String())
		return nil, intel.Fail(MMDBProviderName, intel.ParseFailure, "invalid ip %q", ip)
	}
	c, err := m.r.City(addr)
	if err != nil {
		metrics.ObserveLookup(MMDBProviderName, t0, intel.TransportFailure.String())
		return nil, intel.Fail(MMDBProviderName, intel.TransportFailure, "mmdb lookup: %w", err)
	}
	if c.Country.IsoCode == "" && c.Location.Latitude == 0 && c.Location.Longitude == 0 {
		metrics.ObserveLookup(MMDBProviderName, t0, intel.ParseFailure.String())
		return nil, intel.Fail(MMDBProviderName, intel.ParseFailure, "no record for %s", ip)
	}
	lat, lon := c.Location.Latitude, c.Location.Longitude
	rec := &intel.GeoRecord{
		IP:       ip,
		City:     c.City.Names["en"],
		Country:  c.Country.IsoCode,
		Lat:      &lat,
		Lon:      &lon,
		Provider: MMDBProviderName,
	}
	if len(c.Subdivisions) > 0 {
		rec.Region = c.Subdivisions[0].Names["en"]
	}
	metrics.ObserveLookup(MMDBProviderName, t0, "")
	return rec, nil
}
