package stt

// EventKind discriminates the closed set of events the adapter emits.
// Provider callback payloads never cross this boundary.
type EventKind int

const (
	// EventTranscript carries a non-empty recognition hypothesis.
	EventTranscript EventKind = iota
	// EventError reports a provider failure. Terminal for the audio phase
	// of a session, not for the process.
	EventError
	// EventEndOfStream is the single terminal sentinel. Nothing follows it.
	EventEndOfStream
)

// Event is one entry in the adapter's ordered queue.
type Event struct {
	Kind EventKind

	// Transcript fields. Text is never empty for EventTranscript.
	Text             string
	IsFinalUtterance bool

	// Error description for EventError.
	Message string
}
