package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// ---------------------------------------------------------------------------
// Fake Pinger for readiness tests
// ---------------------------------------------------------------------------

// fakePinger is a test double for the Pinger interface.
type fakePinger struct {
	// name is returned by Name().
	name string
	// err is returned by Ping(); nil means healthy.
	err error
}

func (f *fakePinger) Name() string                 { return f.name }
func (f *fakePinger) Ping(_ context.Context) error { return f.err }

// newReadyTestServer builds a *Server with the given pingers wired in.
func newReadyTestServer(t *testing.T, pingers ...Pinger) *Server {
	t.Helper()
	return newTestServer(t, &fakeAnswerer{}, func(c *Config) { c.Pingers = pingers })
}

// ---------------------------------------------------------------------------
// GET /health — liveness
// ---------------------------------------------------------------------------

// TestHandleHealth_OK verifies that GET /health returns 200 with the fixed
// {"ok":true,"service":"rag-api"} body regardless of dependency state.
func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer(t, &fakePinger{name: "qdrant", err: errors.New("down")})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d — body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}

	var body healthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if !body.OK {
		t.Error("expected ok:true")
	}
	if body.Service != "rag-api" {
		t.Errorf("service: expected %q, got %q", "rag-api", body.Service)
	}
}

// ---------------------------------------------------------------------------
// GET /ready — readiness
// ---------------------------------------------------------------------------

func getReady(s *Server) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)
	return w
}

// TestHandleReady_NoPingers verifies that /ready returns 200 with
// ready:true and an empty checks array when no pingers are registered.
func TestHandleReady_NoPingers(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer(t)
	w := getReady(s)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Ready {
		t.Errorf("expected ready:true with no pingers")
	}
	if len(resp.Checks) != 0 {
		t.Errorf("expected 0 checks, got %d", len(resp.Checks))
	}
}

// TestHandleReady_AllHealthy verifies that /ready returns 200 with
// ready:true when all pingers succeed.
func TestHandleReady_AllHealthy(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer(t, &fakePinger{name: "qdrant"})
	w := getReady(s)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Ready {
		t.Errorf("expected ready:true")
	}
	if len(resp.Checks) != 1 {
		t.Fatalf("expected 1 check, got %d", len(resp.Checks))
	}
	if c := resp.Checks[0]; !c.OK || c.Error != "" {
		t.Errorf("check %q: expected ok with no error, got %+v", c.Name, c)
	}
}

// TestHandleReady_Failing verifies that /ready returns 503 with ready:false
// when a pinger fails, and the failing check carries the error.
func TestHandleReady_Failing(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer(t, &fakePinger{name: "qdrant", err: errors.New("connection refused")})
	w := getReady(s)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ready {
		t.Errorf("expected ready:false")
	}
	if len(resp.Checks) != 1 {
		t.Fatalf("expected 1 check, got %d", len(resp.Checks))
	}
	if c := resp.Checks[0]; c.OK || c.Error == "" {
		t.Errorf("check %q: expected failure with error, got %+v", c.Name, c)
	}
}

// TestIndexPinger verifies the IndexPinger adapts Ping results and label.
func TestIndexPinger(t *testing.T) {
	t.Parallel()

	healthy := NewIndexPinger(pingFunc(func(context.Context) error { return nil }))
	if healthy.Name() != "qdrant" {
		t.Errorf("Name() = %q, want qdrant", healthy.Name())
	}
	if err := healthy.Ping(context.Background()); err != nil {
		t.Errorf("Ping() on healthy index: %v", err)
	}

	down := NewIndexPinger(pingFunc(func(context.Context) error { return errors.New("unreachable") }))
	if err := down.Ping(context.Background()); err == nil {
		t.Error("Ping() on unreachable index: expected error")
	}
}

// pingFunc adapts a function to the pingable interface.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
