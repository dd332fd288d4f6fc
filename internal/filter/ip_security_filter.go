package filter

import (
	"net"

	"github.com/meridiangw/gateway/internal/errors"
	"github.com/meridiangw/gateway/internal/gwcontext"
)

// ipSecurityConfig is the {"whitelist": [...], "blacklist": [...]} shape of
// ip_security_filter's opaque config; entries are literal IPs or CIDR
// ranges.
type ipSecurityConfig struct {
	Whitelist []string `json:"whitelist"`
	Blacklist []string `json:"blacklist"`
}

// IPSecurityFilter checks the client IP against a rule's configured
// blacklist and whitelist. Blacklist is consulted first.
type IPSecurityFilter struct{}

// NewIPSecurityFilter returns the ip_security_filter singleton.
func NewIPSecurityFilter() *IPSecurityFilter { return &IPSecurityFilter{} }

func (f *IPSecurityFilter) ID() string   { return "ip_security_filter" }
func (f *IPSecurityFilter) Name() string { return "ip_security" }
func (f *IPSecurityFilter) Order() int   { return OrderIPSecurity }

func (f *IPSecurityFilter) DoFilter(ctx *gwcontext.GatewayContext) error {
	if ctx.Rule == nil {
		return nil
	}
	fc, ok := ctx.Rule.FilterConfigByID(f.ID())
	if !ok {
		return nil
	}
	var cfg ipSecurityConfig
	if err := unmarshalJSON(fc.Config, &cfg); err != nil {
		return nil
	}

	ip := net.ParseIP(ctx.Request.ClientIP)
	if ip == nil {
		return nil
	}

	if len(cfg.Blacklist) > 0 && matchesAny(ip, cfg.Blacklist) {
		return fail(ctx, errors.ErrBlacklist)
	}
	if len(cfg.Whitelist) > 0 && !matchesAny(ip, cfg.Whitelist) {
		return fail(ctx, errors.ErrWhitelist)
	}
	return nil
}

// matchesAny reports whether ip falls within any of the literal-IP or
// CIDR entries, by network-prefix bit comparison (net.ParseCIDR /
// (*net.IPNet).Contains) — no ecosystem library in the pack improves on
// the standard library for plain CIDR membership (the pack's GeoIP
// libraries solve a different problem: IP-to-location lookup, not
// prefix matching against an operator-supplied list).
func matchesAny(ip net.IP, entries []string) bool {
	for _, entry := range entries {
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			single := net.ParseIP(entry)
			if single == nil {
				continue
			}
			if single.Equal(ip) {
				return true
			}
			continue
		}
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

func fail(ctx *gwcontext.GatewayContext, err *errors.GatewayError) error {
	ctx.Fail(err)
	ctx.Terminated()
	return err
}
