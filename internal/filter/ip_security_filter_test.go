package filter

import (
	"net"
	"testing"

	"github.com/meridiangw/gateway/internal/errors"
	"github.com/meridiangw/gateway/internal/gwcontext"
	"github.com/meridiangw/gateway/internal/registry"
)

func newIPSecurityTestContext(rule *registry.Rule, clientIP string) *gwcontext.GatewayContext {
	req := &gwcontext.GatewayRequest{ClientIP: clientIP, Path: "/orders"}
	return gwcontext.New(req, rule, "req-1")
}

// Blacklist wins even when the same IP would also satisfy the whitelist —
// spec.md §8 scenario 6.
func TestIPSecurityFilterBlacklistBeatsWhitelist(t *testing.T) {
	rule := &registry.Rule{
		ID: "rule-1",
		FilterConfigs: []registry.FilterConfig{
			{ID: "ip_security_filter", Config: `{"whitelist":["10.0.0.1/32"],"blacklist":["10.0.0.1/32"]}`},
		},
	}
	f := NewIPSecurityFilter()

	ctx := newIPSecurityTestContext(rule, "10.0.0.1")
	err := f.DoFilter(ctx)

	if err == nil {
		t.Fatal("DoFilter() = nil, want blacklist rejection")
	}
	gwErr, ok := err.(*errors.GatewayError)
	if !ok {
		t.Fatalf("error type = %T, want *errors.GatewayError", err)
	}
	if gwErr.Code != errors.ErrBlacklist.Code {
		t.Fatalf("error code = %d, want %d (blacklist)", gwErr.Code, errors.ErrBlacklist.Code)
	}
	if !ctx.IsTerminated() {
		t.Fatal("blacklisted request should terminate the context")
	}
}

func TestIPSecurityFilterWhitelistRejectsUnlisted(t *testing.T) {
	rule := &registry.Rule{
		ID: "rule-1",
		FilterConfigs: []registry.FilterConfig{
			{ID: "ip_security_filter", Config: `{"whitelist":["10.0.0.1/32"]}`},
		},
	}
	f := NewIPSecurityFilter()

	ctx := newIPSecurityTestContext(rule, "10.0.0.2")
	err := f.DoFilter(ctx)

	if err == nil {
		t.Fatal("DoFilter() = nil, want whitelist rejection")
	}
	gwErr, ok := err.(*errors.GatewayError)
	if !ok {
		t.Fatalf("error type = %T, want *errors.GatewayError", err)
	}
	if gwErr.Code != errors.ErrWhitelist.Code {
		t.Fatalf("error code = %d, want %d (whitelist)", gwErr.Code, errors.ErrWhitelist.Code)
	}
}

func TestIPSecurityFilterAllowsWhitelistedIP(t *testing.T) {
	rule := &registry.Rule{
		ID: "rule-1",
		FilterConfigs: []registry.FilterConfig{
			{ID: "ip_security_filter", Config: `{"whitelist":["10.0.0.0/24"]}`},
		},
	}
	f := NewIPSecurityFilter()

	ctx := newIPSecurityTestContext(rule, "10.0.0.42")
	if err := f.DoFilter(ctx); err != nil {
		t.Fatalf("DoFilter() error = %v, want nil", err)
	}
	if ctx.IsTerminated() {
		t.Fatal("allowed request should not terminate the context")
	}
}

func TestIPSecurityFilterNoOpWithoutConfig(t *testing.T) {
	rule := &registry.Rule{ID: "rule-1"}
	f := NewIPSecurityFilter()

	ctx := newIPSecurityTestContext(rule, "203.0.113.9")
	if err := f.DoFilter(ctx); err != nil {
		t.Fatalf("DoFilter() error = %v, want nil", err)
	}
}

func TestMatchesAnyAcceptsLiteralAndCIDR(t *testing.T) {
	ip := net.ParseIP("192.168.1.5")
	if !matchesAny(ip, []string{"192.168.1.5"}) {
		t.Fatal("expected literal IP match")
	}
	if !matchesAny(ip, []string{"192.168.0.0/16"}) {
		t.Fatal("expected CIDR match")
	}
	if matchesAny(ip, []string{"10.0.0.0/8"}) {
		t.Fatal("expected no match outside the CIDR")
	}
}
