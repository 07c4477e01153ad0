// Package session drives one client transcription session end to end:
// authenticate, stream audio to the speech provider while relaying live
// captions, summarize the reconciled transcript, and persist the result.
package session

import (
	"context"

	"github.com/kt34/ai-notes/internal/stt"
)

// State is the lifecycle phase of one session.
type State int

const (
	StateAuthenticating State = iota
	StateStreaming
	StateFinalizing
	StatePersisting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StatePersisting:
		return "persisting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SpeechAdapter is the provider-session surface the orchestrator drives.
// Satisfied by stt.Adapter.
type SpeechAdapter interface {
	Start(ctx context.Context) error
	Send(frame []byte) error
	Finish()
	Events() <-chan stt.Event
}

// Summarizer produces the marker-delimited summary document for a
// transcript. Satisfied by summarize.Summarizer.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}
