// 包 config：一次性读取进程配置（.env 与环境变量），构造后以指针传入各组件，避免模块内散落的全局读取
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultIPInfoBase    = "https://ipinfo.io"
	DefaultAbuseIPDBBase = "https://api.abuseipdb.com/api/v2"
	FeodoJSONURL         = "https://feodotracker.abuse.ch/downloads/ipblocklist_aggressive.json"
	FeodoCSVURL          = "https://feodotracker.abuse.ch/downloads/ipblocklist.csv"
)

// Config：全部可调项；零值不可用，请通过 Load 构造
type Config struct {
	IPInfoToken   string
	IPInfoBase    string
	AbuseIPDBKey  string
	AbuseIPDBBase string
	LookupTimeout time.Duration

	FeedURL      string
	FeedFormat   string
	FeedTimeout  time.Duration
	CacheDir     string
	FeedUseCache bool

	// FeedRefreshEvery：后台刷新周期，0 为关闭
	FeedRefreshEvery time.Duration

	GeocodeLimit   int
	GeocodeWorkers int

	GeoIPCityPath   string
	IP2RegionV4Path string

	RedisEnable    bool
	RedisAddr      string
	RedisPass      string
	RedisDB        int
	FeedViewTTL    time.Duration
	HeatmapViewTTL time.Duration

	Addr    string
	APIBase string

	RateLimitEnabled bool
	RateLimitQPS     int

	TLSEnable   bool
	TLSCertPath string
	TLSKeyPath  string
}

// 文档注释：加载 .env 文件
// 背景：与部署目录约定一致，先读工作目录 .env，再读 data/env/.env；文件缺失静默忽略，已存在的环境变量不被覆盖。
func LoadDotEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// 文档注释：从环境变量构造配置
// 约束：数值解析失败时回退默认值；未设置密钥不视为错误，由对应提供方在查询时快速失败。
func Load() *Config {
	c := &Config{
		IPInfoToken:   os.Getenv("IPINFO_TOKEN"),
		IPInfoBase:    strings.TrimRight(envOr("IPINFO_BASE_URL", DefaultIPInfoBase), "/"),
		AbuseIPDBKey:  os.Getenv("ABUSEIPDB_KEY"),
		AbuseIPDBBase: strings.TrimRight(envOr("ABUSEIPDB_BASE_URL", DefaultAbuseIPDBBase), "/"),
		LookupTimeout: time.Duration(envInt("LOOKUP_TIMEOUT_SEC", 5)) * time.Second,

		FeedFormat:   strings.ToLower(envOr("FEED_FORMAT", "json")),
		FeedTimeout:  time.Duration(envInt("FEED_TIMEOUT_SEC", 10)) * time.Second,
		CacheDir:     envOr("CACHE_DIR", filepath.Join("data", "cache")),
		FeedUseCache: envBool("FEED_USE_CACHE", true),

		FeedRefreshEvery: time.Duration(envInt("FEED_REFRESH_MIN", 0)) * time.Minute,

		GeocodeLimit:   envInt("GEOCODE_LIMIT", 200),
		GeocodeWorkers: envInt("GEOCODE_WORKERS", 1),

		GeoIPCityPath:   os.Getenv("GEOIP_CITY_PATH"),
		IP2RegionV4Path: os.Getenv("IP2REGION_V4_PATH"),

		RedisEnable:    envBool("REDIS_ENABLE", false),
		RedisAddr:      envOr("REDIS_HOST", "127.0.0.1") + ":" + envOr("REDIS_PORT", "6379"),
		RedisPass:      os.Getenv("REDIS_PASS"),
		RedisDB:        envInt("REDIS_DB", 0),
		FeedViewTTL:    time.Duration(envInt("FEED_VIEW_TTL_MIN", 30)) * time.Minute,
		HeatmapViewTTL: time.Duration(envInt("HEATMAP_VIEW_TTL_MIN", 60)) * time.Minute,

		Addr:    envOr("ADDR", ":8080"),
		APIBase: strings.TrimRight(envOr("API_BASE", "/api"), "/"),

		RateLimitEnabled: envBool("RATE_LIMIT_ENABLED", false),
		RateLimitQPS:     envInt("RATE_LIMIT_QPS", 20),

		TLSEnable:   envBool("TLS_ENABLE", false),
		TLSCertPath: envOr("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		TLSKeyPath:  envOr("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
	}
	switch c.FeedFormat {
	case "json", "csv", "auto":
	default:
		c.FeedFormat = "json"
	}
	c.FeedURL = os.Getenv("FEED_URL")
	if c.FeedURL == "" {
		c.FeedURL = FeodoJSONURL
		if c.FeedFormat == "csv" {
			c.FeedURL = FeodoCSVURL
		}
	}
	if c.GeocodeWorkers < 1 {
		c.GeocodeWorkers = 1
	}
	if c.RateLimitQPS < 1 {
		c.RateLimitQPS = 20
	}
	return c
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
