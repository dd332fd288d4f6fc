package dispatcher

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/meridiangw/gateway/internal/backend"
	"github.com/meridiangw/gateway/internal/chain"
	"github.com/meridiangw/gateway/internal/circuitbreaker"
	"github.com/meridiangw/gateway/internal/filter"
	"github.com/meridiangw/gateway/internal/metrics"
	"github.com/meridiangw/gateway/internal/registry"
)

func newTestDispatcher(t *testing.T, backendAddr string) (*Dispatcher, *registry.Registry) {
	t.Helper()

	reg := registry.New()
	reg.PutService(&registry.ServiceDefinition{ServiceID: "orders", Version: "v1", Protocol: "HTTP"})
	reg.PutInstance(&registry.ServiceInstance{
		ServiceInstanceID: backendAddr,
		UniqueID:          "orders:v1",
		Enable:            true,
	})
	reg.PutRule(&registry.Rule{
		ID:        "rule-1",
		ServiceID: "orders",
		Paths:     []string{"/orders"},
		Order:     0,
		FilterConfigs: []registry.FilterConfig{
			{ID: "load_balance_filter", Config: `{"load_balance_key":"random"}`},
		},
	})

	filters := filter.NewRegistry()
	breakers := circuitbreaker.NewRegistry()
	client := backend.NewClient()
	log := zap.NewNop()
	collector := metrics.NewCollector()

	ipSecurity := filter.NewIPSecurityFilter()
	rateLimit := filter.NewRateLimitFilter(collector)
	loadBalance := filter.NewLoadBalanceFilter(reg)
	cb := filter.NewCircuitBreakerFilter(breakers, collector)
	cbResult := filter.NewCircuitBreakerResultFilter(collector)
	router := filter.NewRouterFilter(client)

	for _, f := range []filter.Filter{ipSecurity, rateLimit, loadBalance, cb, cbResult} {
		filters.Register(f)
	}

	preRule := []filter.Filter{
		filter.NewMonitorStartFilter(),
		filter.NewGrayFilter(),
		filter.NewMonitorEndFilter(log),
	}
	factory := chain.NewFactory(filters, preRule, router)

	return New(reg, factory, log, collector), reg
}

func TestDispatchRoutesToBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d, _ := newTestDispatcher(t, strings.TrimPrefix(srv.URL, "http://"))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Service-Unique-Id", "orders:v1")
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("body = %q, want %q", rec.Body.String(), "ok")
	}
}

func TestDispatchMissingUniqueIDFails(t *testing.T) {
	d, _ := newTestDispatcher(t, "127.0.0.1:0")

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDispatchServiceDefinitionNotFound(t *testing.T) {
	d, _ := newTestDispatcher(t, "127.0.0.1:0")

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Service-Unique-Id", "unknown:v1")
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDispatchPathNoMatched(t *testing.T) {
	d, _ := newTestDispatcher(t, "127.0.0.1:0")

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set("X-Service-Unique-Id", "orders:v1")
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDispatchNoEligibleInstance(t *testing.T) {
	d, reg := newTestDispatcher(t, "127.0.0.1:0")
	reg.RemoveInstance("orders:v1", "127.0.0.1:0")

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Service-Unique-Id", "orders:v1")
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503, body=%s", rec.Code, rec.Body.String())
	}
}

func TestExtractClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	if ip := extractClientIP(req); ip != "203.0.113.5" {
		t.Fatalf("extractClientIP = %q, want %q", ip, "203.0.113.5")
	}
}

func TestExtractClientIPFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4000"

	if ip := extractClientIP(req); ip != "10.0.0.1" {
		t.Fatalf("extractClientIP = %q, want %q", ip, "10.0.0.1")
	}
}
