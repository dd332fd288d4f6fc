package filter

import (
	"time"

	"go.uber.org/zap"

	"github.com/meridiangw/gateway/internal/gwcontext"
)

const attrRequestStart = "request_start"

// MonitorStartFilter stamps the request's start time. It runs before any
// other filter in the chain (OrderMonitorStart).
type MonitorStartFilter struct{}

// NewMonitorStartFilter returns the monitor_start_filter singleton.
func NewMonitorStartFilter() *MonitorStartFilter { return &MonitorStartFilter{} }

func (f *MonitorStartFilter) ID() string   { return "monitor_start_filter" }
func (f *MonitorStartFilter) Name() string { return "monitor_start" }
func (f *MonitorStartFilter) Order() int   { return OrderMonitorStart }

func (f *MonitorStartFilter) DoFilter(ctx *gwcontext.GatewayContext) error {
	ctx.SetAttribute(attrRequestStart, time.Now())
	return nil
}

// MonitorEndFilter logs a structured access-log line once the chain has
// finished, regardless of how it terminated. It runs last (OrderMonitorEnd)
// and is always invoked by the chain runner's "finally" pass.
type MonitorEndFilter struct {
	log *zap.Logger
}

// NewMonitorEndFilter returns the monitor_end_filter singleton, logging
// through log.
func NewMonitorEndFilter(log *zap.Logger) *MonitorEndFilter {
	return &MonitorEndFilter{log: log}
}

func (f *MonitorEndFilter) ID() string   { return MonitorEndFilterID }
func (f *MonitorEndFilter) Name() string { return "monitor_end" }
func (f *MonitorEndFilter) Order() int   { return OrderMonitorEnd }

func (f *MonitorEndFilter) DoFilter(ctx *gwcontext.GatewayContext) error {
	var elapsedMs int64
	if v, ok := ctx.Attribute(attrRequestStart); ok {
		if start, ok := v.(time.Time); ok {
			elapsedMs = time.Since(start).Milliseconds()
		}
	}

	status := 0
	if ctx.Response != nil {
		status = ctx.Response.StatusCode
	}

	ruleID := ""
	if ctx.Rule != nil {
		ruleID = ctx.Rule.ID
	}

	f.log.Info("request",
		zap.String("request_id", ctx.RequestID),
		zap.String("rule_id", ruleID),
		zap.String("method", ctx.Request.Method),
		zap.String("path", ctx.Request.Path),
		zap.String("client_ip", ctx.Request.ClientIP),
		zap.Int("status", status),
		zap.Int64("elapsed_ms", elapsedMs),
		zap.String("state", ctx.State().String()),
		zap.Bool("gray", ctx.Gray),
		zap.Error(ctx.Err),
	)
	return nil
}
