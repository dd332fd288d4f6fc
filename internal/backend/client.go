// Package backend is the HTTP client the router filter uses to reach the
// instance the load balancer chose (spec.md §6's backend client interface).
package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/meridiangw/gateway/internal/gwcontext"
)

// Discrete error variants, matching §6's "errors include connect/read/timeout
// as discrete variants" contract.
var (
	ErrConnect = errors.New("backend: connect error")
	ErrRead    = errors.New("backend: read error")
	ErrTimeout = errors.New("backend: timeout")
)

// DefaultTimeout is invoker.timeout's default per spec.md §5.
const DefaultTimeout = 500 * time.Millisecond

// Client is a thin wrapper over http.Client with a shared, pooled
// http.Transport (connection reuse across requests to the same instance).
type Client struct {
	http *http.Client
}

// NewClient returns a Client with a pooled transport.
func NewClient() *Client {
	transport := &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 50,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &Client{http: &http.Client{Transport: transport}}
}

// Send dials modifyHost (the load-balancer-chosen "ip:port") with inbound's
// method/path/headers/body, bounded by timeout.
func (c *Client) Send(ctx context.Context, inbound *gwcontext.GatewayRequest, modifyHost string, timeout time.Duration) (*gwcontext.GatewayResponse, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := "http://" + modifyHost + inbound.URI
	req, err := http.NewRequestWithContext(ctx, inbound.Method, url, bytes.NewReader(inbound.Body))
	if err != nil {
		return nil, ErrConnect
	}
	req.Header = inbound.Headers.Clone()
	req.Host = inbound.Host

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, ErrConnect
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrRead
	}

	return &gwcontext.GatewayResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}
