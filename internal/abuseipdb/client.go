package abuseipdb

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"threat-intel/internal/config"
	"threat-intel/internal/intel"
	"threat-intel/internal/logger"
	"threat-intel/internal/metrics"
	"time"
)

const (
	// ProviderName：对外标识
	ProviderName = "abuseipdb"
	// MaxAgeInDays：只统计最近 90 天内的举报，固定策略
	MaxAgeInDays = 90
)

// 文档注释：AbuseIPDB /check 响应
// 约束：整数字段使用指针区分“缺失”与 0。
type checkResponse struct {
	Data struct {
		AbuseConfidenceScore *int   `json:"abuseConfidenceScore"`
		TotalReports         *int   `json:"totalReports"`
		CountryCode          string `json:"countryCode"`
		ISP                  string `json:"isp"`
		Domain               string `json:"domain"`
		UsageType            string `json:"usageType"`
	} `json:"data"`
}

// Client：AbuseIPDB 信誉提供方
type Client struct {
	key    string
	base   string
	client *http.Client
}

func New(cfg *config.Config, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: cfg.LookupTimeout}
	}
	return &Client{key: cfg.AbuseIPDBKey, base: cfg.AbuseIPDBBase, client: client}
}

func (c *Client) Name() string { return ProviderName }

// 文档注释：查询单个 IP 的滥用信誉
// 背景：密钥通过 Key 请求头传递；结果时间窗固定为 MaxAgeInDays。
// 返回：错误分类同 ipinfo；未配置密钥时不发请求。
func (c *Client) LookupReputation(ctx context.Context, ip string) (*intel.ReputationRecord, error) {
	if c.key == "" {
		metrics.ObserveLookup(ProviderName, time.Now(), intel.CredentialMissing.String())
		return nil, intel.Fail(ProviderName, intel.CredentialMissing, "ABUSEIPDB_KEY not set")
	}
	t0 := time.Now()
	rec, err := c.check(ctx, ip)
	if err != nil {
		kind := intel.KindOf(err)
		metrics.ObserveLookup(ProviderName, t0, kind.String())
		logger.L().Debug("abuseipdb_error", "ip", ip, "kind", kind.String(), "err", err)
		return nil, err
	}
	metrics.ObserveLookup(ProviderName, t0, "")
	logger.L().Debug("abuseipdb_resp", "ip", ip, "isp", rec.ISP, "duration_ms", time.Since(t0).Milliseconds())
	return rec, nil
}

func (c *Client) check(ctx context.Context, ip string) (*intel.ReputationRecord, error) {
	q := url.Values{}
	q.Set("ipAddress", ip)
	q.Set("maxAgeInDays", strconv.Itoa(MaxAgeInDays))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/check?"+q.Encode(), nil)
	if err != nil {
		return nil, intel.Fail(ProviderName, intel.TransportFailure, "build request: %w", err)
	}
	req.Header.Set("Key", c.key)
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, intel.Fail(ProviderName, intel.TransportFailure, "request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, intel.Fail(ProviderName, intel.TransportFailure, "abuseipdb: HTTP %d", resp.StatusCode)
	}
	var r checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, intel.Fail(ProviderName, intel.ParseFailure, "decode abuseipdb response: %w", err)
	}
	d := r.Data
	return &intel.ReputationRecord{
		IP:                   ip,
		AbuseConfidenceScore: d.AbuseConfidenceScore,
		TotalReports:         d.TotalReports,
		CountryCode:          d.CountryCode,
		ISP:                  d.ISP,
		Domain:               d.Domain,
		UsageType:            d.UsageType,
		Provider:             ProviderName,
	}, nil
}
