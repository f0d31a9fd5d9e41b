package localgeo

import (
	"threat-intel/internal/config"
	"threat-intel/internal/intel"
	"threat-intel/internal/logger"
)

// 文档注释：按配置组装地理提供方链
// 背景：primary（通常为 ipinfo）居首，其后依次为 GeoLite2 City 与 ip2region；离线库路径为空或打开失败时跳过并记录日志。
// 返回：链与释放离线库句柄的关闭函数（总是非 nil）。
func FromConfig(cfg *config.Config, primary intel.GeoProvider) (*Chain, func()) {
	l := logger.L()
	list := []intel.GeoProvider{primary}
	closeFn := func() {}
	if cfg.GeoIPCityPath != "" {
		if m, err := OpenMMDB(cfg.GeoIPCityPath); err == nil {
			list = append(list, m)
			closeFn = func() { _ = m.Close() }
			l.Info("geolite2_ready", "path", cfg.GeoIPCityPath)
		} else {
			l.Error("geolite2_open_error", "path", cfg.GeoIPCityPath, "err", err)
		}
	}
	if cfg.IP2RegionV4Path != "" {
		if p, err := OpenIP2Region(cfg.IP2RegionV4Path); err == nil {
			list = append(list, p)
			l.Info("ip2region_ready", "path", cfg.IP2RegionV4Path)
		} else {
			l.Error("ip2region_open_error", "path", cfg.IP2RegionV4Path, "err", err)
		}
	}
	c := NewChain(list...)
	l.Debug("geo_chain", "providers", c.Len())
	return c, closeFn
}
