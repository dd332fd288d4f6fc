package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/meridiangw/gateway/internal/gwcontext"
)

func TestSendRoundTripsQueryAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "q=1" {
			t.Errorf("server saw query = %q, want q=1", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer srv.Close()

	c := NewClient()
	req := &gwcontext.GatewayRequest{
		Method:  http.MethodPost,
		URI:     "/orders?q=1",
		Headers: http.Header{},
	}

	resp, err := c.Send(context.Background(), req, strings.TrimPrefix(srv.URL, "http://"), time.Second)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("StatusCode = %d, want 201", resp.StatusCode)
	}
	if string(resp.Body) != "created" {
		t.Fatalf("Body = %q, want %q", resp.Body, "created")
	}
}

func TestSendTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient()
	req := &gwcontext.GatewayRequest{Method: http.MethodGet, URI: "/slow", Headers: http.Header{}}

	_, err := c.Send(context.Background(), req, strings.TrimPrefix(srv.URL, "http://"), 5*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestSendConnectError(t *testing.T) {
	c := NewClient()
	req := &gwcontext.GatewayRequest{Method: http.MethodGet, URI: "/", Headers: http.Header{}}

	_, err := c.Send(context.Background(), req, "127.0.0.1:1", time.Second)
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("err = %v, want ErrConnect", err)
	}
}

func TestSendDefaultsTimeoutWhenNonPositive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient()
	req := &gwcontext.GatewayRequest{Method: http.MethodGet, URI: "/", Headers: http.Header{}}

	resp, err := c.Send(context.Background(), req, strings.TrimPrefix(srv.URL, "http://"), 0)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
}
