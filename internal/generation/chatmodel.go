package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/rag-api-go/internal/rag"
)

// ChatGenerator adapts a streaming eino chat model to the answer-stream
// contract. One instance is built at startup and shared by all requests;
// each Generate call opens an independent backend stream.
type ChatGenerator struct {
	// model is the chat model constructed by the provider factory.
	model model.ToolCallingChatModel

	// temperature controls response randomness per request.
	temperature float32

	// maxTokens caps the generated answer length per request.
	maxTokens int
}

// Config holds the settings for constructing a ChatGenerator.
type Config struct {
	// Model is the chat model constructed by the provider factory.
	Model model.ToolCallingChatModel

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32

	// MaxTokens caps the generated answer length.
	MaxTokens int
}

// New constructs a ChatGenerator from the given config.
func New(cfg *Config) (*ChatGenerator, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("generation: model must not be nil")
	}
	return &ChatGenerator{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Generate opens the backend stream for one request and returns the lazy
// answer stream. It fails — before any fragment is emitted — when the
// backend call errors or does not yield a stream handle at all.
func (g *ChatGenerator) Generate(ctx context.Context, systemPrompt string, messages []*schema.Message) (*Stream, error) {
	input := make([]*schema.Message, 0, len(messages)+1)
	input = append(input, schema.SystemMessage(systemPrompt))
	input = append(input, messages...)

	sr, err := g.model.Stream(ctx, input,
		model.WithTemperature(g.temperature),
		model.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		return nil, &rag.UpstreamError{
			Stage:  rag.StageGeneration,
			Kind:   classifyKind(err),
			Detail: "backend stream call failed",
			Err:    err,
		}
	}
	if sr == nil {
		return nil, &rag.UpstreamError{
			Stage:  rag.StageGeneration,
			Kind:   rag.KindBadResponse,
			Detail: "backend returned no stream handle",
		}
	}

	return newStream(&chatModelSource{sr: sr}), nil
}

// chatModelSource adapts an eino message stream onto tagged Events.
type chatModelSource struct {
	// sr is the open backend stream for one request.
	sr *schema.StreamReader[*schema.Message]
}

// Next maps the next backend frame onto an Event. End of stream becomes
// Stop; receive errors become Error frames with a classified kind; frames
// without text content (tool calls, usage accounting) become Metadata.
func (s *chatModelSource) Next() Event {
	msg, err := s.sr.Recv()
	if errors.Is(err, io.EOF) {
		return Event{Type: EventStop}
	}
	if err != nil {
		return Event{Type: EventError, Kind: classifyKind(err), Detail: err.Error()}
	}
	if msg == nil {
		return Event{Type: EventUnknown}
	}
	if msg.Content != "" {
		return Event{Type: EventTextDelta, Text: msg.Content}
	}
	return Event{Type: EventMetadata}
}

// Close releases the backend stream.
func (s *chatModelSource) Close() {
	s.sr.Close()
}

// classifyKind maps a backend error onto one of the stream error kinds.
// Providers report failures as opaque wrapped errors, so classification is
// by message inspection; anything unrecognized is internal.
func classifyKind(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "throttl"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "429"):
		return rag.KindThrottling
	case strings.Contains(msg, "validation"),
		strings.Contains(msg, "invalid request"):
		return rag.KindValidation
	case strings.Contains(msg, "stream"):
		return rag.KindStreamError
	default:
		return rag.KindInternal
	}
}
