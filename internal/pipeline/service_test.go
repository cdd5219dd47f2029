package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/rag-api-go/internal/generation"
	"github.com/54b3r/rag-api-go/internal/rag"
)

// ── Fakes ─────────────────────────────────────────────────────────────────

type fakeEmbedder struct {
	vector   []float32
	err      error
	lastText string
	calls    int
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	e.lastText = text
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

type fakeIndex struct {
	chunks     []rag.Chunk
	err        error
	lastVector []float32
	lastTopK   int
	calls      int
}

func (x *fakeIndex) Search(_ context.Context, vector []float32, topK int) ([]rag.Chunk, error) {
	x.calls++
	x.lastVector = vector
	x.lastTopK = topK
	if x.err != nil {
		return nil, x.err
	}
	return x.chunks, nil
}

// fakeChatModel feeds canned frames through a real generation stream.
type fakeChatModel struct {
	frames    []*schema.Message
	err       error
	lastInput []*schema.Message
}

func (m *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return nil, errors.New("not implemented")
}

func (m *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.lastInput = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.StreamReaderFromArray(m.frames), nil
}

func (m *fakeChatModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func newTestService(t *testing.T, emb *fakeEmbedder, idx *fakeIndex, cm *fakeChatModel, cfg Config) *Service {
	t.Helper()
	gen, err := generation.New(&generation.Config{Model: cm, Temperature: 0.2, MaxTokens: 100})
	if err != nil {
		t.Fatalf("generation.New: %v", err)
	}
	svc, err := New(emb, idx, gen, cfg, nil, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func drain(t *testing.T, s *generation.Stream) (string, error) {
	t.Helper()
	defer s.Close()
	var b strings.Builder
	for {
		frag, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(frag)
	}
}

var defaultCfg = Config{TopKDefault: 5, TopKMax: 10, MaxContextChunks: 5, MaxContextChars: 12000}

// ── Answer ────────────────────────────────────────────────────────────────

func TestAnswerStreamsGeneratedText(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	idx := &fakeIndex{chunks: []rag.Chunk{
		{ChunkID: "c1", DocID: "d1", Text: "Reset your password from the login page.", Score: 0.92},
		{ChunkID: "c2", DocID: "d1", Text: "Contact support if the reset email never arrives.", Score: 0.81},
	}}
	cm := &fakeChatModel{frames: []*schema.Message{
		schema.AssistantMessage("Go to the login page", nil),
		schema.AssistantMessage(" and click reset.", nil),
	}}
	svc := newTestService(t, emb, idx, cm, defaultCfg)

	stream, err := svc.Answer(context.Background(), "  How do I reset my password?  ")
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	got, err := drain(t, stream)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if want := "Go to the login page and click reset."; got != want {
		t.Errorf("answer = %q, want %q", got, want)
	}

	if emb.lastText != "How do I reset my password?" {
		t.Errorf("embedded text = %q, want trimmed question", emb.lastText)
	}
	if idx.lastTopK != 5 {
		t.Errorf("topK = %d, want configured default 5", idx.lastTopK)
	}
	if len(idx.lastVector) != 3 {
		t.Errorf("search vector length = %d, want 3", len(idx.lastVector))
	}

	if len(cm.lastInput) != 2 {
		t.Fatalf("model input = %d messages, want system + user", len(cm.lastInput))
	}
	if cm.lastInput[0].Role != schema.System {
		t.Errorf("first message role = %q, want system", cm.lastInput[0].Role)
	}
	user := cm.lastInput[1].Content
	if !strings.Contains(user, "[Context 1]") || !strings.Contains(user, "Reset your password") {
		t.Errorf("user message missing assembled context:\n%s", user)
	}
}

func TestAnswerWithoutRetrievedContext(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vector: []float32{1}}
	idx := &fakeIndex{} // no chunks
	cm := &fakeChatModel{frames: []*schema.Message{
		schema.AssistantMessage("I don't have enough information.", nil),
	}}
	svc := newTestService(t, emb, idx, cm, defaultCfg)

	stream, err := svc.Answer(context.Background(), "Anything?")
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	if _, err := drain(t, stream); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if !strings.Contains(cm.lastInput[1].Content, "[No context retrieved]") {
		t.Errorf("user message should carry the empty-context marker:\n%s", cm.lastInput[1].Content)
	}
}

func TestAnswerValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		question string
	}{
		{"empty", ""},
		{"blank", "   \n\t  "},
		{"too long", strings.Repeat("q", 4001)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			emb := &fakeEmbedder{vector: []float32{1}}
			svc := newTestService(t, emb, &fakeIndex{}, &fakeChatModel{}, defaultCfg)

			_, err := svc.Answer(context.Background(), tc.question)
			var verr *rag.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Answer() error = %v, want ValidationError", err)
			}
			if emb.calls != 0 {
				t.Errorf("embedder called %d times before validation failure", emb.calls)
			}
		})
	}
}

func TestAnswerPropagatesStageErrors(t *testing.T) {
	t.Parallel()

	embedErr := &rag.UpstreamError{Stage: rag.StageEmbedding, Kind: rag.KindBadResponse, Detail: "empty vector"}
	searchErr := &rag.UpstreamError{Stage: rag.StageRetrieval, Kind: rag.KindInternal, Detail: "query failed"}

	tests := []struct {
		name      string
		emb       *fakeEmbedder
		idx       *fakeIndex
		wantStage string
	}{
		{
			name:      "embedding failure",
			emb:       &fakeEmbedder{err: embedErr},
			idx:       &fakeIndex{},
			wantStage: rag.StageEmbedding,
		},
		{
			name:      "retrieval failure",
			emb:       &fakeEmbedder{vector: []float32{1}},
			idx:       &fakeIndex{err: searchErr},
			wantStage: rag.StageRetrieval,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := newTestService(t, tc.emb, tc.idx, &fakeChatModel{}, defaultCfg)

			_, err := svc.Answer(context.Background(), "question")
			var uerr *rag.UpstreamError
			if !errors.As(err, &uerr) {
				t.Fatalf("Answer() error = %v, want UpstreamError", err)
			}
			if uerr.Stage != tc.wantStage {
				t.Errorf("stage = %q, want %q", uerr.Stage, tc.wantStage)
			}
		})
	}
}

func TestAnswerPropagatesGeneratorCallError(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vector: []float32{1}}
	cm := &fakeChatModel{err: errors.New("ThrottlingException: too many requests")}
	svc := newTestService(t, emb, &fakeIndex{}, cm, defaultCfg)

	_, err := svc.Answer(context.Background(), "question")
	var uerr *rag.UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("Answer() error = %v, want UpstreamError", err)
	}
	if uerr.Stage != rag.StageGeneration {
		t.Errorf("stage = %q, want %q", uerr.Stage, rag.StageGeneration)
	}
	if uerr.Kind != rag.KindThrottling {
		t.Errorf("kind = %q, want %q", uerr.Kind, rag.KindThrottling)
	}
}

// ── NormalizeTopK ─────────────────────────────────────────────────────────

func TestNormalizeTopK(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, &fakeIndex{}, &fakeChatModel{}, defaultCfg)

	intPtr := func(n int) *int { return &n }
	tests := []struct {
		name string
		topK *int
		want int
	}{
		{"nil uses default", nil, 5},
		{"zero clamps to one", intPtr(0), 1},
		{"negative clamps to one", intPtr(-3), 1},
		{"above max clamps to max", intPtr(50), 10},
		{"in range passes through", intPtr(7), 7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := svc.NormalizeTopK(tc.topK); got != tc.want {
				t.Errorf("NormalizeTopK(%v) = %d, want %d", tc.topK, got, tc.want)
			}
		})
	}
}

func TestAnswerTopKClamped(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vector: []float32{1}}
	idx := &fakeIndex{}
	cm := &fakeChatModel{frames: []*schema.Message{schema.AssistantMessage("ok", nil)}}
	svc := newTestService(t, emb, idx, cm, defaultCfg)

	stream, err := svc.AnswerTopK(context.Background(), "question", 99)
	if err != nil {
		t.Fatalf("AnswerTopK() error: %v", err)
	}
	stream.Close()
	if idx.lastTopK != 10 {
		t.Errorf("topK = %d, want clamped max 10", idx.lastTopK)
	}
}
