// feed-fetch：拉取并归一化 Feodo 黑名单，可选过滤与批量地理编码
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"threat-intel/internal/config"
	"threat-intel/internal/feed"
	"threat-intel/internal/geocode"
	"threat-intel/internal/ipinfo"
	"threat-intel/internal/localgeo"
	"threat-intel/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	envFile := flag.String("env", "", "额外加载的 .env 文件")
	noCache := flag.Bool("no-cache", false, "不读写本地缓存文件")
	refresh := flag.Bool("refresh", false, "拉取前清除本地缓存文件")
	country := flag.String("country", "", "按国家代码过滤（大小写无关）")
	asn := flag.String("asn", "", "按 ASN 编号或名称子串过滤")
	head := flag.Int("head", 0, "仅输出前 N 行，0 为全部")
	geocodeN := flag.Int("geocode", 0, "对前 N 个去重 IP 做地理编码并输出坐标点，0 为关闭")
	flag.Parse()
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintln(os.Stderr, "env error:", err)
			os.Exit(1)
		}
	}
	config.LoadDotEnv()
	l := logger.Setup()
	cfg := config.Load()

	f := feed.New(cfg, nil)
	if *refresh {
		if err := f.ClearCache(); err != nil {
			fmt.Fprintln(os.Stderr, "cache error:", err)
			os.Exit(1)
		}
	}
	ctx := context.Background()
	useCache := cfg.FeedUseCache && !*noCache
	t, err := f.FetchBlocklist(ctx, useCache)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: blocklist unavailable:", err)
		os.Exit(1)
	}
	if t.Empty() {
		fmt.Fprintln(os.Stderr, "blocklist returned no entries")
	}
	enc := json.NewEncoder(os.Stdout)
	if *geocodeN > 0 {
		geo, closeGeo := localgeo.FromConfig(cfg, ipinfo.New(cfg, nil))
		defer closeGeo()
		pts := geocode.New(geo, cfg.GeocodeWorkers).GeocodeSubset(ctx, t.IPs(), *geocodeN)
		l.Info("geocode_done", "points", len(pts))
		for _, p := range pts {
			_ = enc.Encode(p)
		}
		return
	}
	sub := t.Filter(*country, *asn).Head(*head)
	for _, r := range sub.Rows {
		_ = enc.Encode(r)
	}
	l.Info("feed_printed", "total", t.Len(), "printed", sub.Len())
}
