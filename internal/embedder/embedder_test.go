package embedder

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/54b3r/rag-api-go/internal/rag"
)

// ---------------------------------------------------------------------------
// Validated — dimension enforcement
// ---------------------------------------------------------------------------

// fixedEmbedder returns a canned vector or error for decorator tests.
type fixedEmbedder struct {
	vec []float32
	err error
}

func (f *fixedEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return f.vec, f.err
}

func TestValidated_AcceptsMatchingDimension(t *testing.T) {
	t.Parallel()

	e := Validated(&fixedEmbedder{vec: []float32{0.1, 0.2, 0.3}}, 3)
	vec, err := e.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("expected 3-dim vector, got %d", len(vec))
	}
}

func TestValidated_DimensionMismatch(t *testing.T) {
	t.Parallel()

	e := Validated(&fixedEmbedder{vec: []float32{0.1, 0.2}}, 768)
	_, err := e.Embed(context.Background(), "q")

	var ue *rag.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.Stage != rag.StageEmbedding || ue.Kind != rag.KindBadResponse {
		t.Errorf("expected embedding/bad-response, got %s/%s", ue.Stage, ue.Kind)
	}
}

func TestValidated_EmptyVector(t *testing.T) {
	t.Parallel()

	e := Validated(&fixedEmbedder{vec: nil}, 768)
	_, err := e.Embed(context.Background(), "q")

	var ue *rag.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.Kind != rag.KindBadResponse {
		t.Errorf("expected bad-response kind, got %s", ue.Kind)
	}
}

func TestValidated_WrapsTransportErrors(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	e := Validated(&fixedEmbedder{err: cause}, 768)
	_, err := e.Embed(context.Background(), "q")

	var ue *rag.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.Kind != rag.KindInternal {
		t.Errorf("expected internal kind, got %s", ue.Kind)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be wrapped, got %v", err)
	}
}

func TestValidDimension(t *testing.T) {
	t.Parallel()

	for _, d := range []int{256, 384, 512, 768, 1024, 1536, 3072} {
		if !ValidDimension(d) {
			t.Errorf("ValidDimension(%d) = false, want true", d)
		}
	}
	for _, d := range []int{0, 1, 100, 2048, 4096} {
		if ValidDimension(d) {
			t.Errorf("ValidDimension(%d) = true, want false", d)
		}
	}
}

// ---------------------------------------------------------------------------
// Gateway adapter — Titan-style {text, dimensions, normalize} exchange
// ---------------------------------------------------------------------------

func TestGatewayEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	e := NewGatewayEmbedder(&GatewayConfig{
		Endpoint:   srv.URL,
		Dimensions: 3,
		Normalize:  true,
	})

	vec, err := e.Embed(context.Background(), "what is the return policy?")
	if err != nil {
		t.Fatalf("Embed() failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("expected 3-dim vector, got %d", len(vec))
	}
}

func TestGatewayEmbedder_BackendError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"model unavailable"}`))
	}))
	defer srv.Close()

	e := NewGatewayEmbedder(&GatewayConfig{Endpoint: srv.URL, Dimensions: 3})
	if _, err := e.Embed(context.Background(), "q"); err == nil {
		t.Fatal("expected error for HTTP 502, got nil")
	}
}

// ---------------------------------------------------------------------------
// OpenAI adapter
// ---------------------------------------------------------------------------

func TestOpenAIEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,2,3]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		Model:      "text-embedding-3-small",
		Dimensions: 3,
	})

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("expected 3-dim vector, got %d", len(vec))
	}
}

func TestOpenAIEmbedder_MissingData(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	if _, err := e.Embed(context.Background(), "q"); err == nil {
		t.Fatal("expected error for empty data, got nil")
	}
}

// ---------------------------------------------------------------------------
// looksLikeChatModel
// ---------------------------------------------------------------------------

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	chat := []string{"gpt-4o", "Claude-3", "llama3:8b", "mistral-7b"}
	for _, m := range chat {
		if !looksLikeChatModel(m) {
			t.Errorf("looksLikeChatModel(%q) = false, want true", m)
		}
	}

	embedding := []string{"nomic-embed-text", "text-embedding-3-small", "bge-m3"}
	for _, m := range embedding {
		if looksLikeChatModel(m) {
			t.Errorf("looksLikeChatModel(%q) = true, want false", m)
		}
	}
}
