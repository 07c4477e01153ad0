// Package transcribe accumulates speech-recognition events into a best-effort
// complete transcript for a session.
package transcribe

import "strings"

// Fallback transcripts returned when a session produced no usable text.
// Callers check for these before persisting or summarizing.
const (
	SentinelNoSpeech       = "no speech detected"
	SentinelEndedPremature = "session ended prematurely"
)

// Reconciler builds a transcript from a stream of interim and final
// recognition results. Final results are accumulated in order; the latest
// text of any kind is tracked separately so a trailing utterance that never
// received a final flag can still be recovered at session end.
//
// Not safe for concurrent use. Each session owns one Reconciler and feeds
// it from a single goroutine.
type Reconciler struct {
	finalSegments []string
	lastText      string
	audioReceived bool
}

func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Observe records one recognition result. Empty text is ignored.
func (r *Reconciler) Observe(text string, isFinal bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if isFinal {
		r.finalSegments = append(r.finalSegments, text)
	}
	r.lastText = text
}

// MarkAudioReceived notes that at least one non-empty audio frame arrived.
// It distinguishes "no speech detected" from "session ended prematurely"
// when the session produced no transcript at all.
func (r *Reconciler) MarkAudioReceived() {
	r.audioReceived = true
}

// LastText returns the most recent non-empty result text, interim or final.
func (r *Reconciler) LastText() string {
	return r.lastText
}

// HasFinalSegments reports whether any final result has been observed.
func (r *Reconciler) HasFinalSegments() bool {
	return len(r.finalSegments) > 0
}

// Transcript freezes the accumulated state into a single string.
//
// If the last interim text extends the last final segment, the interim text
// wins. This recovers the common failure where audio stops mid-utterance and
// the provider never flags the trailing words as final.
func (r *Reconciler) Transcript() string {
	if len(r.finalSegments) == 0 {
		if r.lastText != "" {
			return r.lastText
		}
		if r.audioReceived {
			return SentinelNoSpeech
		}
		return SentinelEndedPremature
	}

	last := r.finalSegments[len(r.finalSegments)-1]
	if len(r.lastText) > len(last) && strings.HasPrefix(r.lastText, last) {
		r.finalSegments[len(r.finalSegments)-1] = r.lastText
	}
	return strings.Join(r.finalSegments, " ")
}

// IsSentinel reports whether transcript is one of the fallback markers and
// therefore should not be summarized or persisted.
func IsSentinel(transcript string) bool {
	return transcript == SentinelNoSpeech || transcript == SentinelEndedPremature
}
