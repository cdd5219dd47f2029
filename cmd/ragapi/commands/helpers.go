package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/54b3r/rag-api-go/internal/embedder"
	"github.com/54b3r/rag-api-go/internal/generation"
	"github.com/54b3r/rag-api-go/internal/pipeline"
	"github.com/54b3r/rag-api-go/internal/provider"
	"github.com/54b3r/rag-api-go/internal/rag"
)

// buildQueryService assembles the full query path from environment
// configuration: embedder, Qdrant index, chat model, and the pipeline
// service tying them together. The returned cleanup function closes the
// Qdrant connection and must be called before process exit.
func buildQueryService(ctx context.Context, log *slog.Logger) (*pipeline.Service, *rag.QdrantIndex, func(), error) {
	if err := embedder.Preflight(log); err != nil {
		return nil, nil, nil, err //nolint:wrapcheck // preflight errors name the offending env var already
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	collection := os.Getenv("QDRANT_COLLECTION")
	if collection == "" {
		return nil, nil, nil, fmt.Errorf("QDRANT_COLLECTION must be set")
	}

	index, err := rag.NewQdrantIndex(ctx, &rag.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: collection,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	}, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		_ = index.Close()
		return nil, nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

	gen, err := generation.New(&generation.Config{
		Model:       chatModel,
		Temperature: providerCfg.Tuning.Temperature,
		MaxTokens:   providerCfg.Tuning.MaxTokens,
	})
	if err != nil {
		_ = index.Close()
		return nil, nil, nil, fmt.Errorf("failed to initialise generator: %w", err)
	}

	svc, err := pipeline.New(emb, index, gen, pipeline.Config{
		TopKDefault:      getEnvInt("TOP_K_DEFAULT", 5),
		TopKMax:          getEnvInt("TOP_K_MAX", 10),
		MaxContextChunks: getEnvInt("MAX_CONTEXT_CHUNKS", 5),
		MaxContextChars:  getEnvInt("MAX_CONTEXT_CHARS", 12000),
	}, log, nil)
	if err != nil {
		_ = index.Close()
		return nil, nil, nil, fmt.Errorf("failed to initialise pipeline: %w", err)
	}

	cleanup := func() { _ = index.Close() }
	return svc, index, cleanup, nil
}

// getEnvOrDefault returns the env var value or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback when unset
// or unparsable.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvFloat returns the env var parsed as float64, or fallback when
// unset or unparsable.
func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
