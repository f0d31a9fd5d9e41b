package localgeo

import (
	"context"
	"strings"
	"sync"
	"threat-intel/internal/intel"
	"threat-intel/internal/metrics"
	"time"

	"github.com/lionsoul2014/ip2region/binding/golang/xdb"
)

const IP2RegionProviderName = "ip2region"

// searcher：xdb.Searcher 的查询子集，便于测试替换
type searcher interface {
	SearchByStr(ip string) (string, error)
}

// 文档注释：ip2region v4 离线提供方
// 背景：补充国家/省份/城市/运营商文本；xdb 不含坐标，因此结果不会进入热力图，只用于单 IP 报告兜底。
// 约束：xdb.Searcher 每次查询都会改写内部计数（文件模式下还共享同一文件偏移），不可并发；由 mu 串行化。
type IP2Region struct {
	mu sync.Mutex
	s  searcher
}

// 文档注释：整库载入内存后打开
// 背景：避免文件模式下 Seek+Read 共享句柄；v4 库约十余 MB，常驻内存可接受。
func OpenIP2Region(v4Path string) (*IP2Region, error) {
	buf, err := xdb.LoadContentFromFile(v4Path)
	if err != nil {
		return nil, err
	}
	s, err := xdb.NewWithBuffer(xdb.IPv4, buf)
	if err != nil {
		return nil, err
	}
	return &IP2Region{s: s}, nil
}

func (p *IP2Region) Name() string { return IP2RegionProviderName }

func (p *IP2Region) LookupGeo(ctx context.Context, ip string) (*intel.GeoRecord, error) {
	t0 := time.Now()
	p.mu.Lock()
	region, err := p.s.SearchByStr(ip)
	p.mu.Unlock()
	if err != nil {
		metrics.ObserveLookup(IP2RegionProviderName, t0, intel.ParseFailure.String())
		return nil, intel.Fail(IP2RegionProviderName, intel.ParseFailure, "ip2region: %w", err)
	}
	rec, ok := parseRegion(ip, region)
	if !ok {
		metrics.ObserveLookup(IP2RegionProviderName, t0, intel.ParseFailure.String())
		return nil, intel.Fail(IP2RegionProviderName, intel.ParseFailure, "no record for %s", ip)
	}
	metrics.ObserveLookup(IP2RegionProviderName, t0, "")
	return rec, nil
}

// 文档注释：解析 "国家|区域|省份|城市|运营商"
// 约束：0、空串与 unknown 视为缺省；省份为空时回退到区域字段。
func parseRegion(ip, s string) (*intel.GeoRecord, bool) {
	parts := strings.Split(s, "|")
	field := func(i int) string {
		if i >= len(parts) {
			return ""
		}
		v := strings.TrimSpace(parts[i])
		if v == "0" || strings.EqualFold(v, "unknown") {
			return ""
		}
		return v
	}
	rec := &intel.GeoRecord{
		IP:       ip,
		Country:  field(0),
		Region:   field(2),
		City:     field(3),
		Org:      field(4),
		Provider: IP2RegionProviderName,
	}
	if rec.Region == "" {
		rec.Region = field(1)
	}
	if rec.Country == "" && rec.Region == "" && rec.City == "" {
		return nil, false
	}
	return rec, true
}
