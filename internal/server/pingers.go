package server

import (
	"context"
	"fmt"
)

// pingable is the slice of the vector index the readiness probe needs.
// *rag.QdrantIndex satisfies it; tests inject a fake.
type pingable interface {
	Ping(ctx context.Context) error
}

// IndexPinger probes the vector index backing retrieval. It satisfies the
// Pinger interface and is used by GET /ready.
type IndexPinger struct {
	// index is the vector index to probe.
	index pingable
}

// NewIndexPinger constructs an IndexPinger for the given vector index.
func NewIndexPinger(index pingable) *IndexPinger {
	return &IndexPinger{index: index}
}

// Name returns the dependency label used in readiness responses.
func (p *IndexPinger) Name() string { return "qdrant" }

// Ping probes the vector index.
// Returns nil if it is reachable, or a descriptive error otherwise.
func (p *IndexPinger) Ping(ctx context.Context) error {
	if err := p.index.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
