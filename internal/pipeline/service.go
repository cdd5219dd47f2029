// Package pipeline orchestrates the retrieval-augmented answer flow:
// embed the question, search the vector index, assemble a bounded context,
// and hand back the generation stream. The service owns stage timing and
// top-k normalization; everything else is delegated to the injected parts.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/rag-api-go/internal/generation"
	"github.com/54b3r/rag-api-go/internal/prompt"
	"github.com/54b3r/rag-api-go/internal/rag"
)

// maxQuestionChars is the upper bound on question length after trimming.
const maxQuestionChars = 4000

// Generator produces a streamed answer for a prepared prompt.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, messages []*schema.Message) (*generation.Stream, error)
}

// Config holds the retrieval and context-assembly knobs.
type Config struct {
	// TopKDefault is the number of chunks retrieved when the caller does
	// not choose one.
	TopKDefault int
	// TopKMax caps any requested top-k.
	TopKMax int
	// MaxContextChunks caps how many retrieved chunks may enter the prompt.
	MaxContextChunks int
	// MaxContextChars is the character budget for the assembled context.
	MaxContextChars int
}

// Service runs the full question-to-answer pipeline.
type Service struct {
	embedder  rag.Embedder
	index     rag.Index
	generator Generator
	cfg       Config
	log       *slog.Logger
	metrics   *metrics
}

// New constructs a Service. reg may be nil to use the default Prometheus
// registry; log may be nil to use slog.Default.
func New(embedder rag.Embedder, index rag.Index, generator Generator, cfg Config, log *slog.Logger, reg prometheus.Registerer) (*Service, error) {
	if embedder == nil {
		return nil, fmt.Errorf("pipeline: embedder is required")
	}
	if index == nil {
		return nil, fmt.Errorf("pipeline: index is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("pipeline: generator is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		embedder:  embedder,
		index:     index,
		generator: generator,
		cfg:       cfg,
		log:       log,
		metrics:   newMetrics(reg),
	}, nil
}

// ValidateQuestion trims the question and checks the boundary rules:
// non-blank, at most 4000 characters. It returns the trimmed question or a
// rag.ValidationError describing the violation.
func ValidateQuestion(question string) (string, error) {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return "", &rag.ValidationError{Msg: "question must not be blank"}
	}
	if utf8.RuneCountInString(trimmed) > maxQuestionChars {
		return "", &rag.ValidationError{Msg: fmt.Sprintf("question must be at most %d characters", maxQuestionChars)}
	}
	return trimmed, nil
}

// NormalizeTopK resolves the effective top-k: nil means the configured
// default, and any value is clamped into [1, TopKMax].
func (s *Service) NormalizeTopK(topK *int) int {
	k := s.cfg.TopKDefault
	if topK != nil {
		k = *topK
	}
	if k < 1 {
		k = 1
	}
	if k > s.cfg.TopKMax {
		k = s.cfg.TopKMax
	}
	return k
}

// Answer runs the pipeline with the configured default top-k and returns
// the unstarted generation stream. The caller owns the stream and must
// Close it.
func (s *Service) Answer(ctx context.Context, question string) (*generation.Stream, error) {
	return s.answer(ctx, question, s.NormalizeTopK(nil))
}

// AnswerTopK is Answer with an explicit top-k, clamped into [1, TopKMax].
// Used by the CLI path; the HTTP boundary always takes the default.
func (s *Service) AnswerTopK(ctx context.Context, question string, topK int) (*generation.Stream, error) {
	return s.answer(ctx, question, s.NormalizeTopK(&topK))
}

func (s *Service) answer(ctx context.Context, question string, topK int) (*generation.Stream, error) {
	question, err := ValidateQuestion(question)
	if err != nil {
		return nil, err
	}

	t0 := time.Now()
	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	embedDur := time.Since(t0)
	s.metrics.stageSeconds.WithLabelValues("embedding").Observe(embedDur.Seconds())

	t1 := time.Now()
	chunks, err := s.index.Search(ctx, vector, topK)
	if err != nil {
		return nil, err
	}
	retrievalDur := time.Since(t1)
	s.metrics.stageSeconds.WithLabelValues("retrieval").Observe(retrievalDur.Seconds())

	for i, chunk := range chunks {
		s.log.Debug("retrieved chunk",
			"rank", i+1,
			"score", chunk.Score,
			"chunk_id", chunk.ChunkID,
			"doc_id", chunk.DocID,
		)
	}

	t2 := time.Now()
	systemPrompt, messages := prompt.BuildMessages(question, chunks, s.cfg.MaxContextChunks, s.cfg.MaxContextChars)
	promptDur := time.Since(t2)
	s.metrics.stageSeconds.WithLabelValues("prompt").Observe(promptDur.Seconds())

	s.log.Info("rag query prepared",
		"top_k", topK,
		"retrieved", len(chunks),
		"embed_ms", embedDur.Milliseconds(),
		"retrieval_ms", retrievalDur.Milliseconds(),
		"prompt_ms", promptDur.Milliseconds(),
	)

	return s.generator.Generate(ctx, systemPrompt, messages)
}
