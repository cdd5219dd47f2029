package embedder

import (
	"context"
	"fmt"

	"github.com/54b3r/rag-api-go/internal/rag"
)

// allowedDimensions is the fixed set of embedding vector sizes the service
// accepts. The collection and the embedder must agree on one of these;
// anything else is a misconfiguration caught at startup.
var allowedDimensions = []int{256, 384, 512, 768, 1024, 1536, 3072}

// ValidDimension reports whether d is one of the supported vector sizes.
func ValidDimension(d int) bool {
	for _, a := range allowedDimensions {
		if d == a {
			return true
		}
	}
	return false
}

// validatedEmbedder enforces the configured vector dimension on every
// embed call. The inner adapter reports transport and protocol failures;
// this decorator catches the structurally-bad-response cases (no vector,
// wrong length) that would otherwise surface as a confusing store error
// one stage later.
type validatedEmbedder struct {
	// inner is the backend adapter doing the actual HTTP call.
	inner rag.Embedder
	// dimensions is the vector length the collection was built with.
	dimensions int
}

// Validated wraps e so that every returned vector is checked against the
// configured dimension. Violations come back as rag.UpstreamError, as do
// transport failures from the inner adapter. There is no retry at this
// layer.
func Validated(e rag.Embedder, dimensions int) rag.Embedder {
	return &validatedEmbedder{inner: e, dimensions: dimensions}
}

// Embed calls the inner adapter and validates the response shape.
func (v *validatedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := v.inner.Embed(ctx, text)
	if err != nil {
		return nil, &rag.UpstreamError{
			Stage:  rag.StageEmbedding,
			Kind:   rag.KindInternal,
			Detail: "embedding backend call failed",
			Err:    err,
		}
	}
	if len(vec) == 0 {
		return nil, &rag.UpstreamError{
			Stage:  rag.StageEmbedding,
			Kind:   rag.KindBadResponse,
			Detail: "embedding backend returned no vector",
		}
	}
	if len(vec) != v.dimensions {
		return nil, &rag.UpstreamError{
			Stage:  rag.StageEmbedding,
			Kind:   rag.KindBadResponse,
			Detail: fmt.Sprintf("embedding dimension mismatch: got %d, collection expects %d", len(vec), v.dimensions),
		}
	}
	return vec, nil
}
