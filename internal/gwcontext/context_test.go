package gwcontext

import (
	"errors"
	"testing"

	"github.com/meridiangw/gateway/internal/registry"
)

func newTestContext() *GatewayContext {
	req := &GatewayRequest{UniqueID: "orders:v1", Method: "GET", Path: "/orders"}
	rule := &registry.Rule{ID: "rule-1"}
	return New(req, rule, "req-1")
}

func TestNewStartsRunning(t *testing.T) {
	ctx := newTestContext()
	if ctx.State() != StateRunning {
		t.Fatalf("State() = %v, want Running", ctx.State())
	}
	if ctx.IsTerminated() {
		t.Fatal("IsTerminated() = true, want false")
	}
}

func TestWriteTransitionsToWritten(t *testing.T) {
	ctx := newTestContext()
	ctx.Write(&GatewayResponse{StatusCode: 200})

	if ctx.State() != StateWritten {
		t.Fatalf("State() = %v, want Written", ctx.State())
	}
	if ctx.Response == nil || ctx.Response.StatusCode != 200 {
		t.Fatalf("Response = %+v, want StatusCode 200", ctx.Response)
	}
}

func TestWriteIsNoOpOnceNotRunning(t *testing.T) {
	ctx := newTestContext()
	ctx.Write(&GatewayResponse{StatusCode: 200})
	ctx.Write(&GatewayResponse{StatusCode: 500})

	if ctx.Response.StatusCode != 200 {
		t.Fatalf("second Write() overwrote the first: got %d", ctx.Response.StatusCode)
	}
}

func TestTerminatedIsIdempotent(t *testing.T) {
	ctx := newTestContext()
	ctx.Terminated()
	ctx.Terminated()

	if !ctx.IsTerminated() {
		t.Fatal("IsTerminated() = false, want true")
	}
}

func TestFailRecordsErrWithoutTerminating(t *testing.T) {
	ctx := newTestContext()
	wantErr := errors.New("boom")
	ctx.Fail(wantErr)

	if ctx.Err != wantErr {
		t.Fatalf("Err = %v, want %v", ctx.Err, wantErr)
	}
	if ctx.IsTerminated() {
		t.Fatal("Fail() alone should not terminate the context")
	}
}

func TestAttributeRoundTrip(t *testing.T) {
	ctx := newTestContext()
	if _, ok := ctx.Attribute("missing"); ok {
		t.Fatal("Attribute() found a key that was never set")
	}

	ctx.SetAttribute("key", 42)
	v, ok := ctx.Attribute("key")
	if !ok || v.(int) != 42 {
		t.Fatalf("Attribute(\"key\") = (%v, %v), want (42, true)", v, ok)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateRunning:    "RUNNING",
		StateWritten:    "WRITTEN",
		StateTerminated: "TERMINATED",
		State(99):       "UNKNOWN",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
