// 包 intel：单 IP 情报查询的统一数据模型与提供方契约，供聚合层、批量地理编码与 HTTP 层共用
package intel

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// 文档注释：地理记录
// 背景：各地理数据源归一化后的结构；除 IP 与 Provider 外均可缺省。
// 约束：Lat/Lon 同时存在或同时缺省，不允许只填其一。
type GeoRecord struct {
	IP       string   `json:"ip"`
	City     string   `json:"city,omitempty"`
	Region   string   `json:"region,omitempty"`
	Country  string   `json:"country,omitempty"`
	Org      string   `json:"org,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Provider string   `json:"provider"`
}

// HasCoords：坐标是否可用于地图
func (g *GeoRecord) HasCoords() bool { return g != nil && g.Lat != nil && g.Lon != nil }

// 文档注释：信誉记录
// 约束：AbuseConfidenceScore 为 0-100 百分比；TotalReports 非负；上游缺字段时为 nil。
type ReputationRecord struct {
	IP                   string `json:"ip"`
	AbuseConfidenceScore *int   `json:"abuse_confidence_score,omitempty"`
	TotalReports         *int   `json:"total_reports,omitempty"`
	CountryCode          string `json:"country_code,omitempty"`
	ISP                  string `json:"isp,omitempty"`
	Domain               string `json:"domain,omitempty"`
	UsageType            string `json:"usage_type,omitempty"`
	Provider             string `json:"provider"`
}

// GeoProvider：单 IP 地理查询
// 约束：失败时返回 nil 记录与 *LookupError，成功时 error 为 nil；不向调用方 panic。
type GeoProvider interface {
	Name() string
	LookupGeo(ctx context.Context, ip string) (*GeoRecord, error)
}

// ReputationProvider：单 IP 信誉查询，错误约定同 GeoProvider
type ReputationProvider interface {
	Name() string
	LookupReputation(ctx context.Context, ip string) (*ReputationRecord, error)
}

// 文档注释：解析 "lat,lon" 组合坐标
// 背景：上游以单字段返回经纬度；按首个逗号切分。
// 约束：空串、无逗号、任一侧非数字或非有限值时两者均返回 nil，不报错。
func ParseLoc(loc string) (*float64, *float64) {
	latStr, lonStr, ok := strings.Cut(loc, ",")
	if !ok {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return nil, nil
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return nil, nil
	}
	// NaN/Inf 无法 JSON 编码
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return nil, nil
	}
	return &lat, &lon
}
