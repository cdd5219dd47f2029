package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/rag-api-go/internal/generation"
	"github.com/54b3r/rag-api-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8000).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must be long enough for streaming answers.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /ready.
	// If empty, /ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on /ask/stream
	// (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on /ask/stream.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's Prometheus metrics.
	// If nil, the default registerer is used.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. If nil, the default gatherer is used.
	MetricsGatherer prometheus.Gatherer
	// Audit is the request audit log. If nil, auditing is disabled.
	Audit store.RequestLog
}

// answerer is the interface handleAsk calls to run the question pipeline.
// *pipeline.Service satisfies it; tests inject a fake.
type answerer interface {
	// Answer runs the pipeline and returns the unstarted answer stream.
	Answer(ctx context.Context, question string) (*generation.Stream, error)
	// NormalizeTopK resolves the effective top-k (nil means the default).
	NormalizeTopK(topK *int) int
}

// Server is the HTTP boundary of the question-answering service.
type Server struct {
	// answerer runs the question pipeline; set to the pipeline service in
	// production, overridden by a fake in tests.
	answerer answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /ready.
	pingers []Pinger
	// metrics holds the server's Prometheus instruments.
	metrics *serverMetrics
	// audit is the request audit log; nil disables auditing.
	audit store.RequestLog
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /ask/stream.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
}

// errorResponse is the JSON body for non-streaming error replies.
type errorResponse struct {
	// Detail is the human-readable error description.
	Detail string `json:"detail"`
}

// healthResponse is the JSON body for GET /health.
type healthResponse struct {
	// OK is always true while the process is serving requests.
	OK bool `json:"ok"`
	// Service is the service identifier.
	Service string `json:"service"`
}
