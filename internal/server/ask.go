package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/54b3r/rag-api-go/internal/logging"
	"github.com/54b3r/rag-api-go/internal/pipeline"
	"github.com/54b3r/rag-api-go/internal/rag"
	"github.com/54b3r/rag-api-go/internal/store"
)

// auditTimeout bounds the audit write after the response is finished; the
// request context may already be cancelled by then.
const auditTimeout = 2 * time.Second

// handleAsk handles POST /ask/stream. It validates the question, runs the
// pipeline, and streams the answer as plain text, flushing each fragment as
// it is produced. Failures before the first byte map to JSON error replies;
// once streaming has begun the only option left is to stop.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	question, err := pipeline.ValidateQuestion(req.Question)
	if err != nil {
		var verr *rag.ValidationError
		detail := "invalid request"
		if errors.As(err, &verr) {
			detail = verr.Msg
		}
		s.recordAudit(log, store.RequestRecord{
			QuestionChars: utf8.RuneCountInString(req.Question),
			Outcome:       store.OutcomeRejected,
			DurationMs:    time.Since(start).Milliseconds(),
		})
		s.writeError(w, http.StatusBadRequest, detail)
		return
	}

	topK := s.answerer.NormalizeTopK(nil)

	stream, err := s.answerer.Answer(r.Context(), question)
	if err != nil {
		// The cause is logged server-side only; clients get a generic reply.
		log.Error("ask pipeline failed", slog.Any("error", err))
		s.metrics.askRequestsTotal.WithLabelValues(store.OutcomeError).Inc()
		s.recordAudit(log, store.RequestRecord{
			QuestionChars: utf8.RuneCountInString(question),
			TopK:          topK,
			Outcome:       store.OutcomeError,
			DurationMs:    time.Since(start).Milliseconds(),
		})
		s.writeError(w, http.StatusInternalServerError, "Failed to process request")
		return
	}
	defer stream.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "Failed to process request")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	s.metrics.askActiveStreams.Inc()
	defer s.metrics.askActiveStreams.Dec()

	outcome := store.OutcomeOK
	fragments, chars := 0, 0
	for {
		frag, rerr := stream.Recv()
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			// Mid-stream failure: the 200 status is already on the wire, so
			// the stream simply ends early. Clients see a truncated answer.
			log.Error("generation stream failed", slog.Any("error", rerr))
			outcome = store.OutcomeError
			break
		}
		if _, werr := io.WriteString(w, frag); werr != nil {
			outcome = store.OutcomeClientGone
			break
		}
		flusher.Flush()
		fragments++
		chars += len(frag)
	}
	if outcome == store.OutcomeError && r.Context().Err() != nil {
		outcome = store.OutcomeClientGone
	}

	elapsed := time.Since(start)
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())

	log.Info("ask stream finished",
		slog.String("outcome", outcome),
		slog.Int("fragments", fragments),
		slog.Int("chars", chars),
		slog.Duration("duration", elapsed),
	)

	s.recordAudit(log, store.RequestRecord{
		QuestionChars: utf8.RuneCountInString(question),
		TopK:          topK,
		Outcome:       outcome,
		Fragments:     fragments,
		AnswerChars:   chars,
		DurationMs:    elapsed.Milliseconds(),
	})
}

// recordAudit writes one audit row. Audit failures are logged and otherwise
// ignored — the answer was already served.
func (s *Server) recordAudit(log *slog.Logger, rec store.RequestRecord) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := s.audit.Append(ctx, rec); err != nil {
		log.Warn("audit append failed", slog.Any("error", err))
	}
}

// writeError sends a JSON {"detail": ...} reply with the given status.
func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Detail: detail}); err != nil {
		s.log.Error("error encode failed", slog.Any("error", err))
	}
}
