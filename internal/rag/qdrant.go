package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection holding the chunk corpus.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// searchFn is one wire shape for a top-k similarity query. Two shapes exist
// (the universal Query API and the legacy SearchPoints RPC); they exchange
// the same semantics, so the choice is made once at construction and is
// invisible above this struct.
type searchFn func(ctx context.Context, vector []float32, limit uint64) ([]*qdrant.ScoredPoint, error)

// QdrantIndex implements Index backed by a Qdrant collection. The index is
// read-only: it issues top-k similarity queries and never mutates the
// collection (population belongs to the offline ingestion pipeline).
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig

	// search is the wire shape selected at construction time.
	search searchFn
}

// NewQdrantIndex connects to Qdrant and selects the similarity-query wire
// shape the server supports. The collection is expected to exist already;
// this index never creates or mutates it.
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig, log *slog.Logger) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name must not be empty")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	idx.search = idx.selectQueryShape(ctx, log)

	return idx, nil
}

// selectQueryShape probes the server version once and picks the similarity
// query wire shape. Servers 1.10+ speak the universal Query API; older
// deployments only accept the legacy SearchPoints RPC. Detection failure
// falls back to the Query API — a server we cannot even health-check will
// fail the first search with a clear transport error either way.
func (s *QdrantIndex) selectQueryShape(ctx context.Context, log *slog.Logger) searchFn {
	reply, err := s.client.HealthCheck(ctx)
	if err != nil {
		log.Warn("qdrant: version probe failed, assuming Query API",
			slog.Any("error", err),
		)
		return s.searchQuery
	}

	version := reply.GetVersion()
	if qdrantPredatesQueryAPI(version) {
		log.Info("qdrant: legacy server detected, using SearchPoints RPC",
			slog.String("version", version),
		)
		return s.searchLegacy
	}

	log.Debug("qdrant: using Query API", slog.String("version", version))
	return s.searchQuery
}

// qdrantPredatesQueryAPI reports whether the server version string is older
// than 1.10, the release that introduced the universal Query API.
// Unparseable versions are treated as current.
func qdrantPredatesQueryAPI(version string) bool {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	if major != 1 {
		return major < 1
	}
	return minor < 10
}

// searchQuery issues the top-k query via the universal Query API.
func (s *QdrantIndex) searchQuery(ctx context.Context, vector []float32, limit uint64) ([]*qdrant.ScoredPoint, error) {
	return s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
}

// searchLegacy issues the top-k query via the pre-1.10 SearchPoints RPC.
func (s *QdrantIndex) searchLegacy(ctx context.Context, vector []float32, limit uint64) ([]*qdrant.ScoredPoint, error) {
	resp, err := s.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.cfg.Collection,
		Vector:         vector,
		Limit:          limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	return resp.GetResult(), nil
}

// Search returns the topK nearest chunks for the query vector, preserving
// the store's descending-score order verbatim. A failed store call is an
// UpstreamError; malformed result records are silently dropped.
func (s *QdrantIndex) Search(ctx context.Context, vector []float32, topK int) ([]Chunk, error) {
	points, err := s.search(ctx, vector, uint64(topK))
	if err != nil {
		return nil, &UpstreamError{
			Stage:  StageRetrieval,
			Kind:   KindInternal,
			Detail: fmt.Sprintf("qdrant query against %q failed", s.cfg.Collection),
			Err:    err,
		}
	}
	return chunksFromPoints(points), nil
}

// chunksFromPoints maps scored points onto Chunks in result order.
// Records missing chunk_id, doc_id, or text are retrieval noise and are
// skipped rather than raised — a single corrupt record must never abort
// the query path.
func chunksFromPoints(points []*qdrant.ScoredPoint) []Chunk {
	chunks := make([]Chunk, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		chunkID := payload["chunk_id"].GetStringValue()
		docID := payload["doc_id"].GetStringValue()
		text := payload["text"].GetStringValue()
		if chunkID == "" || docID == "" || text == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ChunkID:   chunkID,
			DocID:     docID,
			Text:      text,
			Score:     p.GetScore(),
			Title:     payload["title"].GetStringValue(),
			SourceURI: payload["source_uri"].GetStringValue(),
		})
	}
	return chunks
}

// Ping calls the Qdrant HealthCheck RPC. Used by the readiness endpoint.
func (s *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}
