package ipinfo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"threat-intel/internal/config"
	"threat-intel/internal/intel"
	"threat-intel/internal/logger"
	"threat-intel/internal/metrics"
	"time"
)

// ProviderName：对外标识
const ProviderName = "ipinfo"

// 文档注释：ipinfo 单 IP 响应
// 背景：只解析融合所需字段；loc 为 "lat,lon" 组合串。
type response struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Org     string `json:"org"`
	Loc     string `json:"loc"`
}

// Client：ipinfo 地理提供方
type Client struct {
	token  string
	base   string
	client *http.Client
}

// 文档注释：按配置构造客户端
// 约束：client 为空时使用 cfg.LookupTimeout 超时的独立客户端。
func New(cfg *config.Config, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: cfg.LookupTimeout}
	}
	return &Client{token: cfg.IPInfoToken, base: cfg.IPInfoBase, client: client}
}

func (c *Client) Name() string { return ProviderName }

// 文档注释：查询单个 IP 的地理信息
// 参数：ip 原样拼入路径，不做合法性校验；非法输入由上游返回错误。
// 返回：成功为 GeoRecord；未配置 token 时不发请求直接返回 CredentialMissing；
// 网络错误与非 2xx 为 TransportFailure；响应体解析失败为 ParseFailure。
func (c *Client) LookupGeo(ctx context.Context, ip string) (*intel.GeoRecord, error) {
	if c.token == "" {
		metrics.ObserveLookup(ProviderName, time.Now(), intel.CredentialMissing.String())
		return nil, intel.Fail(ProviderName, intel.CredentialMissing, "IPINFO_TOKEN not set")
	}
	t0 := time.Now()
	rec, err := c.lookup(ctx, ip)
	if err != nil {
		kind := intel.KindOf(err)
		metrics.ObserveLookup(ProviderName, t0, kind.String())
		logger.L().Debug("ipinfo_error", "ip", ip, "kind", kind.String(), "err", err)
		return nil, err
	}
	metrics.ObserveLookup(ProviderName, t0, "")
	logger.L().Debug("ipinfo_resp", "ip", ip, "country", rec.Country, "city", rec.City, "coords", rec.HasCoords(), "duration_ms", time.Since(t0).Milliseconds())
	return rec, nil
}

func (c *Client) lookup(ctx context.Context, ip string) (*intel.GeoRecord, error) {
	q := url.Values{}
	q.Set("token", c.token)
	u := c.base + "/" + url.PathEscape(ip) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, intel.Fail(ProviderName, intel.TransportFailure, "build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, intel.Fail(ProviderName, intel.TransportFailure, "request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, intel.Fail(ProviderName, intel.TransportFailure, "ipinfo: HTTP %d", resp.StatusCode)
	}
	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, intel.Fail(ProviderName, intel.ParseFailure, "decode ipinfo response: %w", err)
	}
	lat, lon := intel.ParseLoc(r.Loc)
	return &intel.GeoRecord{
		IP:       ip,
		City:     r.City,
		Region:   r.Region,
		Country:  r.Country,
		Org:      r.Org,
		Lat:      lat,
		Lon:      lon,
		Provider: ProviderName,
	}, nil
}
