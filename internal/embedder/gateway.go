package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// GatewayEmbedder implements rag.Embedder against a Titan-style embedding
// gateway: a single POST endpoint exchanging {text, dimensions, normalize}
// for {embedding}. This is the wire shape the offline ingestion pipeline
// records in each point's meta, so using the same gateway online keeps
// query vectors in the same space as the stored corpus.
// It is safe for concurrent use.
type GatewayEmbedder struct {
	// endpoint is the full URL of the embedding gateway.
	endpoint string
	// apiKey is the optional Bearer token for the gateway.
	apiKey string
	// dimensions is the vector length requested from the gateway.
	dimensions int
	// normalize requests unit-length vectors from the gateway.
	normalize bool
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// GatewayConfig holds the settings for constructing a GatewayEmbedder.
type GatewayConfig struct {
	// Endpoint is the full URL of the embedding gateway.
	Endpoint string
	// APIKey is the optional Bearer token.
	APIKey string
	// Dimensions is the vector length to request.
	Dimensions int
	// Normalize requests unit-length vectors.
	Normalize bool
}

// NewGatewayEmbedder constructs a GatewayEmbedder from the given config.
func NewGatewayEmbedder(cfg *GatewayConfig) *GatewayEmbedder {
	return &GatewayEmbedder{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		dimensions: cfg.Dimensions,
		normalize:  cfg.Normalize,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// gatewayEmbedRequest is the JSON body sent to the gateway.
type gatewayEmbedRequest struct {
	Text       string `json:"text"`
	Dimensions int    `json:"dimensions"`
	Normalize  bool   `json:"normalize"`
}

// gatewayEmbedResponse is the JSON body returned from the gateway.
type gatewayEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// Embed returns the embedding vector for a single query text.
func (e *GatewayEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(gatewayEmbedRequest{
		Text:       text,
		Dimensions: e.dimensions,
		Normalize:  e.normalize,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gateway embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result gatewayEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("gateway embedder: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("gateway embedder: %s", msg)
	}

	return result.Embedding, nil
}
