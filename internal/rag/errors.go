package rag

import "fmt"

// Pipeline stage names used in UpstreamError and in stage metrics.
const (
	// StageEmbedding is the query embedding stage.
	StageEmbedding = "embedding"
	// StageRetrieval is the vector similarity search stage.
	StageRetrieval = "retrieval"
	// StageGeneration is the streaming answer generation stage.
	StageGeneration = "generation"
)

// Error kinds carried by UpstreamError. The generation backend reports a
// heterogeneous set of failure events; they all collapse to one error type
// with a kind discriminator so callers that need differentiated handling
// (e.g. retry on throttling) can switch on it later.
const (
	// KindInternal is a backend-internal failure or transport error.
	KindInternal = "internal"
	// KindValidation is a request the backend rejected as malformed.
	KindValidation = "validation"
	// KindThrottling is a rate or quota rejection from the backend.
	KindThrottling = "throttling"
	// KindStreamError is a failure that corrupted an open event stream.
	KindStreamError = "stream-error"
	// KindBadResponse is a structurally invalid backend response
	// (missing vector, wrong dimension, absent stream handle).
	KindBadResponse = "bad-response"
)

// UpstreamError reports a failure in one of the external backends the
// pipeline depends on (embedding, vector store, generation). It is never
// user-correctable: the HTTP boundary maps it to a generic 500 and logs
// the full detail server-side.
type UpstreamError struct {
	// Stage names the pipeline stage that failed (see Stage* constants).
	Stage string

	// Kind classifies the failure (see Kind* constants).
	Kind string

	// Detail is the human-readable failure description. Logged, never
	// sent to clients.
	Detail string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s upstream error (%s): %s: %v", e.Stage, e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s upstream error (%s): %s", e.Stage, e.Kind, e.Detail)
}

// Unwrap returns the underlying cause for errors.Is / errors.As chains.
func (e *UpstreamError) Unwrap() error { return e.Err }

// ValidationError reports a malformed question at the request boundary.
// It is user-correctable: the HTTP boundary surfaces the message verbatim
// with status 400. Validation always runs before any backend call.
type ValidationError struct {
	// Msg is the client-visible description of the violation.
	Msg string
}

// Error implements the error interface.
func (e *ValidationError) Error() string { return e.Msg }
