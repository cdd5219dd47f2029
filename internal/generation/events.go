// Package generation drives the backend streaming text-generation
// protocol and converts its heterogeneous event stream into a lazy,
// pull-based sequence of plain-text answer fragments. The backend chat
// model is constructed by the provider package; this package owns the
// event state machine and the stream lifecycle.
package generation

// EventType tags one frame of the generation backend's event stream.
type EventType int

const (
	// EventTextDelta carries an incremental piece of answer text.
	EventTextDelta EventType = iota
	// EventStop marks the successful end of generation. No frames follow.
	EventStop
	// EventMetadata carries usage accounting or other informational data.
	EventMetadata
	// EventError reports a backend failure; Kind and Detail describe it.
	// No frames follow.
	EventError
	// EventUnknown is any frame this service does not recognize. Skipped,
	// so backend protocol additions never break the stream.
	EventUnknown
)

// Event is one tagged frame from the generation backend stream, in the
// temporal order the backend emitted it.
type Event struct {
	// Type discriminates the frame.
	Type EventType

	// Text is the fragment payload of an EventTextDelta frame.
	Text string

	// Kind classifies an EventError frame (rag.Kind* values).
	Kind string

	// Detail is the human-readable description of an EventError frame.
	Detail string
}

// eventSource is a pull-based reader over the backend's raw event stream.
// Implementations adapt one concrete backend protocol onto Events.
type eventSource interface {
	// Next blocks until the next frame arrives. Every stream ends with a
	// Stop or Error frame; Next must not be called after either.
	Next() Event

	// Close releases the underlying backend stream.
	Close()
}
