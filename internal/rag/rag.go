// Package rag defines the core data types and component contracts of the
// retrieval-augmented answer pipeline: query embedding, similarity search,
// and the error taxonomy shared by every stage. Concrete implementations
// (the Qdrant index, the HTTP embedders, the eino generation backend)
// satisfy these interfaces so the pipeline never depends on a specific
// backend.
package rag

import (
	"context"
)

// Chunk is one retrieved unit of source text. Chunks are produced by the
// index per request, are immutable once constructed, and are never
// persisted by this service.
type Chunk struct {
	// ChunkID uniquely identifies the chunk within the corpus.
	ChunkID string

	// DocID identifies the source document the chunk was cut from.
	DocID string

	// Text is the raw chunk text injected into the generation prompt.
	Text string

	// Score is the similarity score assigned by the vector store.
	// Higher means more relevant.
	Score float32

	// Title is the optional source document title.
	Title string

	// SourceURI is the optional origin URI of the source document.
	SourceURI string
}

// Embedder converts one query text into a dense vector embedding.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed returns the embedding vector for text. The vector length must
	// equal the dimension the vector store collection was built with;
	// the embedder package provides a decorator that enforces this.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index performs similarity search against a vector store.
// Implementations must be safe to call from multiple goroutines.
type Index interface {
	// Search returns the topK nearest chunks for the query vector, in the
	// store's own descending-score order. Malformed records are excluded
	// from the result, never surfaced as errors.
	Search(ctx context.Context, vector []float32, topK int) ([]Chunk, error)
}
