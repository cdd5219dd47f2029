package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/54b3r/rag-api-go/internal/rag"
)

// Default embedding models and dimensions per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ — override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
	// defaultGatewayDimensions matches the Titan v2 default the ingestion
	// pipeline writes into each point's meta.
	defaultGatewayDimensions = 1024
)

// DefaultDimensions returns the default embedding vector size for the given
// backend name. EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	case "gateway":
		return defaultGatewayDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// NewFromEnv constructs the query embedder from environment variables and
// wraps it with the dimension-enforcing decorator, so every construction
// path yields an embedder whose output provably matches the collection.
//
// Environment variables:
//
//	EMBEDDING_PROVIDER   = ollama | openai | azure | gateway (default: ollama)
//	EMBEDDING_MODEL      — overrides the backend's default model
//	EMBEDDING_DIMENSIONS — overrides the backend's default vector size;
//	                       must be one of 256, 384, 512, 768, 1024, 1536, 3072
//	EMBEDDING_API_KEY    — overrides the backend's native credential env var
//	EMBEDDING_ENDPOINT   — overrides the backend's default endpoint
//	                       (required for gateway)
//	EMBEDDING_NORMALIZE  = true | false (gateway only, default: true)
func NewFromEnv() (rag.Embedder, error) {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")

	dims := DefaultDimensions(backend)
	if !ValidDimension(dims) {
		return nil, fmt.Errorf("embedder: unsupported EMBEDDING_DIMENSIONS %d — valid values: 256, 384, 512, 768, 1024, 1536, 3072", dims)
	}

	switch backend {
	case "ollama":
		host := getEnv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		inner := NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
		})
		return Validated(inner, dims), nil

	case "openai":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		baseURL := getEnv("EMBEDDING_ENDPOINT")
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		inner := NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: dims,
		})
		return Validated(inner, dims), nil

	case "azure":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := getEnv("EMBEDDING_ENDPOINT")
		if endpoint == "" {
			endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		inner := NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint + "/openai",
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: dims,
			Azure:      true,
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		})
		return Validated(inner, dims), nil

	case "gateway":
		endpoint := getEnv("EMBEDDING_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: gateway requires EMBEDDING_ENDPOINT")
		}
		inner := NewGatewayEmbedder(&GatewayConfig{
			Endpoint:   endpoint,
			APIKey:     getEnv("EMBEDDING_API_KEY"),
			Dimensions: dims,
			Normalize:  getEnvBool("EMBEDDING_NORMALIZE", true),
		})
		return Validated(inner, dims), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: ollama, openai, azure, gateway", backend)
	}
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvBool returns the boolean value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
