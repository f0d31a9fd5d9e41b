// ip-report：命令行查询单个或多个 IP 的合并情报报告，逐行输出 JSON
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"threat-intel/internal/abuseipdb"
	"threat-intel/internal/config"
	"threat-intel/internal/ipinfo"
	"threat-intel/internal/localgeo"
	"threat-intel/internal/logger"
	"threat-intel/internal/report"

	"github.com/joho/godotenv"
)

func main() {
	envFile := flag.String("env", "", "额外加载的 .env 文件")
	pretty := flag.Bool("pretty", false, "缩进输出")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: ip-report [-env file] [-pretty] <ip> [ip...]")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintln(os.Stderr, "env error:", err)
			os.Exit(1)
		}
	}
	config.LoadDotEnv()
	logger.Setup()
	cfg := config.Load()

	geo, closeGeo := localgeo.FromConfig(cfg, ipinfo.New(cfg, nil))
	defer closeGeo()
	agg := report.New(geo, abuseipdb.New(cfg, nil))

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	for _, ip := range flag.Args() {
		if err := enc.Encode(agg.FullReport(context.Background(), ip)); err != nil {
			fmt.Fprintln(os.Stderr, "write error:", err)
			os.Exit(1)
		}
	}
}
