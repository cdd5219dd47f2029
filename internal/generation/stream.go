package generation

import (
	"io"

	"github.com/54b3r/rag-api-go/internal/rag"
)

// Stream is the lazy answer stream for one request: a finite,
// non-restartable sequence of text fragments pulled from the backend one
// event at a time. It is single-consumer and not safe for concurrent use.
type Stream struct {
	// src is the backend event reader.
	src eventSource

	// done is set once the stream has terminated, by Stop, Error, or Close.
	done bool

	// err is the terminal error, nil after a clean Stop or Close.
	err error
}

// newStream wraps src in a Stream. The caller owns the returned stream and
// must Close it unless Recv has already returned a non-nil error.
func newStream(src eventSource) *Stream {
	return &Stream{src: src}
}

// Recv returns the next text fragment. It pulls backend events strictly in
// arrival order: empty deltas are skipped, metadata and unrecognized
// frames are ignored, Stop terminates the stream with io.EOF, and an error
// frame terminates it with a rag.UpstreamError carrying the frame's kind
// and detail. After termination every call returns the same result without
// touching the backend stream.
func (s *Stream) Recv() (string, error) {
	if s.done {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}

	for {
		ev := s.src.Next()
		switch ev.Type {
		case EventTextDelta:
			if ev.Text == "" {
				continue
			}
			return ev.Text, nil

		case EventStop:
			s.finish(nil)
			return "", io.EOF

		case EventError:
			s.finish(&rag.UpstreamError{
				Stage:  rag.StageGeneration,
				Kind:   ev.Kind,
				Detail: ev.Detail,
			})
			return "", s.err

		default:
			// Metadata and unknown frames.
			continue
		}
	}
}

// Close terminates the stream and releases the backend stream without
// draining it. Callers must invoke it when abandoning the stream early —
// on client disconnect in particular — so the backend connection is freed
// promptly. Idempotent.
func (s *Stream) Close() {
	s.finish(nil)
}

// finish marks the stream terminated, records err, and closes the backend
// stream exactly once.
func (s *Stream) finish(err error) {
	if s.done {
		return
	}
	s.done = true
	s.err = err
	s.src.Close()
}
