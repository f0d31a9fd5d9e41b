package localgeo

import (
	"context"
	"threat-intel/internal/intel"
	"threat-intel/internal/logger"
)

// 文档注释：按序回退的地理提供方链
// 背景：首个返回成功的提供方胜出；全部失败时返回首个提供方的错误，保持对外错误来源稳定（通常为在线 ipinfo）。
// 约束：nil 成员跳过；链本身无状态，成员均为并发安全实现（ip2region 内部加锁），可并发调用。
type Chain struct {
	list []intel.GeoProvider
}

func NewChain(list ...intel.GeoProvider) *Chain {
	var ps []intel.GeoProvider
	for _, p := range list {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return &Chain{list: ps}
}

// Name：链以首个成员命名
func (c *Chain) Name() string {
	if len(c.list) == 0 {
		return "chain"
	}
	return c.list[0].Name()
}

// Len：成员数量
func (c *Chain) Len() int { return len(c.list) }

func (c *Chain) LookupGeo(ctx context.Context, ip string) (*intel.GeoRecord, error) {
	if len(c.list) == 0 {
		return nil, intel.Fail("chain", intel.CredentialMissing, "no geo provider configured")
	}
	var first error
	for i, p := range c.list {
		rec, err := p.LookupGeo(ctx, ip)
		if err == nil {
			if i > 0 {
				logger.L().Debug("geo_chain_fallback", "ip", ip, "provider", p.Name())
			}
			return rec, nil
		}
		if first == nil {
			first = err
		}
	}
	return nil, first
}
