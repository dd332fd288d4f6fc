// Package dispatcher is the gateway's entry point (spec.md §4.8): it builds
// a GatewayContext from an inbound HTTP request, resolves the matching
// rule, drives the rule's filter chain, and writes the result.
package dispatcher

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridiangw/gateway/internal/chain"
	"github.com/meridiangw/gateway/internal/errors"
	"github.com/meridiangw/gateway/internal/gwcontext"
	"github.com/meridiangw/gateway/internal/metrics"
	"github.com/meridiangw/gateway/internal/registry"
)

func init() {
	uuid.EnableRandPool()
}

// Dispatcher wires the registry and the filter chain factory behind a
// single http.Handler.
type Dispatcher struct {
	registry *registry.Registry
	chains   *chain.Factory
	log      *zap.Logger
	metrics  metrics.Collector
}

// New returns a Dispatcher. collector may be nil, in which case metrics are
// discarded.
func New(reg *registry.Registry, chains *chain.Factory, log *zap.Logger, collector metrics.Collector) *Dispatcher {
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return &Dispatcher{registry: reg, chains: chains, log: log, metrics: collector}
}

// ServeHTTP implements http.Handler, running the full dispatch steps
// spec.md §4.8 specifies with a panic-recovery boundary around all of it —
// this core has no surrounding middleware chain of its own to supply that.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("panic recovered",
				zap.Any("error", rec),
				zap.ByteString("stack", debug.Stack()),
				zap.String("request_id", requestID),
			)
			errors.NewKind(errors.KindInternal, http.StatusInternalServerError, fmt.Sprintf("panic: %v", rec)).
				WithRequestID(requestID).
				WriteJSON(w)
		}
	}()

	uniqueID := r.Header.Get("X-Service-Unique-Id")
	if uniqueID == "" {
		errors.NewKind(errors.KindInternal, http.StatusBadRequest, "missing X-Service-Unique-Id").
			WithRequestID(requestID).WriteJSON(w)
		return
	}

	clientIP := extractClientIP(r)

	def, ok := d.registry.GetDefinition(uniqueID)
	if !ok {
		errors.ErrServiceDefinitionNotFound.WithRequestID(requestID).WriteJSON(w)
		return
	}

	rule, ok := d.resolveRule(def.ServiceID, r.URL.Path)
	if !ok {
		errors.ErrPathNoMatched.WithRequestID(requestID).WriteJSON(w)
		return
	}

	body, _ := io.ReadAll(r.Body)
	req := &gwcontext.GatewayRequest{
		UniqueID:    uniqueID,
		Method:      r.Method,
		URI:         r.URL.RequestURI(),
		Path:        r.URL.Path,
		ClientIP:    clientIP,
		Host:        r.Host,
		Headers:     r.Header.Clone(),
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
	}

	ctx := gwcontext.New(req, rule, requestID)
	ctx.Protocol = def.Protocol
	ctx.KeepAlive = r.ProtoAtLeast(1, 1)

	d.metrics.RecordActiveRequest(rule.ID, 1)
	d.chains.Build(rule).Execute(ctx)
	d.metrics.RecordActiveRequest(rule.ID, -1)

	status := d.writeResult(w, ctx)
	d.metrics.RecordRequest(rule.ID, r.Method, status, time.Since(start))
}

// resolveRule implements spec.md §4.8 step 4: exact-path lookup, then the
// first rule (in order) whose prefix matches.
func (d *Dispatcher) resolveRule(serviceID, path string) (*registry.Rule, bool) {
	if rule, ok := d.registry.GetRuleByPath(serviceID, path); ok {
		return rule, true
	}
	for _, rule := range d.registry.GetRulesByService(serviceID) {
		if rule.HasPrefix(path) {
			return rule, true
		}
	}
	return nil, false
}

// extractClientIP takes the first X-Forwarded-For token if present,
// otherwise the transport peer address.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := splitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func splitHostPort(addr string) (string, string, error) {
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return addr, "", nil
	}
	return addr[:i], addr[i+1:], nil
}

// writeResult writes the context's final observed state — exactly one of
// Response/Err per spec.md §3's GatewayContext invariant — and returns the
// status code written, for metrics recording.
func (d *Dispatcher) writeResult(w http.ResponseWriter, ctx *gwcontext.GatewayContext) int {
	if ctx.Response != nil {
		for k, vs := range ctx.Response.Headers {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.Header().Set("X-Request-Id", ctx.RequestID)
		status := ctx.Response.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write(ctx.Response.Body)
		return status
	}

	var gwErr *errors.GatewayError
	if ge, ok := errors.IsGatewayError(ctx.Err); ok {
		gwErr = ge.WithRequestID(ctx.RequestID)
	} else {
		gwErr = errors.ErrGatewayServiceUnavailable.WithRequestID(ctx.RequestID)
	}
	gwErr.WriteJSON(w)
	return gwErr.Code
}
