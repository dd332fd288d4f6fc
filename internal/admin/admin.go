// Package admin exposes the gateway's operational surface: health
// (liveness only; there is no separate readiness endpoint), registry/breaker
// introspection, and Prometheus metrics.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/meridiangw/gateway/internal/circuitbreaker"
	"github.com/meridiangw/gateway/internal/metrics"
	"github.com/meridiangw/gateway/internal/registry"
)

// Server is the admin HTTP handler.
type Server struct {
	registry *registry.Registry
	breakers *circuitbreaker.Registry
	metrics  *metrics.PrometheusCollector
}

// New returns an admin Server wired to the gateway's shared registry,
// circuit breaker registry, and metrics collector.
func New(reg *registry.Registry, breakers *circuitbreaker.Registry, collector *metrics.PrometheusCollector) *Server {
	return &Server{registry: reg, breakers: breakers, metrics: collector}
}

// Handler builds the admin router.
func (s *Server) Handler() http.Handler {
	r := httprouter.New()
	r.GET("/healthz", s.handleHealthz)
	r.GET("/debug/registry", s.handleDebugRegistry)
	r.GET("/debug/breakers", s.handleDebugBreakers)
	r.Handler(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleDebugRegistry(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.registry.Snapshot())
}

func (s *Server) handleDebugBreakers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.breakers.Snapshots())
}
