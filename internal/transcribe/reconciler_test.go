package transcribe

import "testing"

func TestTranscriptJoinsFinalSegments(t *testing.T) {
	r := NewReconciler()
	r.MarkAudioReceived()
	r.Observe("The mitochondria", true)
	r.Observe("is the powerhouse", true)
	r.Observe("of the cell.", true)

	want := "The mitochondria is the powerhouse of the cell."
	if got := r.Transcript(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTranscriptTrailingContinuation(t *testing.T) {
	r := NewReconciler()
	r.MarkAudioReceived()
	r.Observe("cell growth", false)
	r.Observe("cell growth happens", true)
	r.Observe("cell growth happens in phases", false)

	// The interim extends the final segment, so the interim wins.
	want := "cell growth happens in phases"
	if got := r.Transcript(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTranscriptUnrelatedInterimIgnored(t *testing.T) {
	r := NewReconciler()
	r.MarkAudioReceived()
	r.Observe("first sentence here", true)
	r.Observe("unrelated partial", false)

	// The interim does not extend the final segment, so it is dropped.
	if got := r.Transcript(); got != "first sentence here" {
		t.Fatalf("got %q, want %q", got, "first sentence here")
	}
}

func TestTranscriptInterimOnlyFallsBackToLastText(t *testing.T) {
	r := NewReconciler()
	r.MarkAudioReceived()
	r.Observe("cell", false)
	r.Observe("cell growth", false)

	if got := r.Transcript(); got != "cell growth" {
		t.Fatalf("got %q, want %q", got, "cell growth")
	}
}

func TestTranscriptNoEventsWithAudio(t *testing.T) {
	r := NewReconciler()
	r.MarkAudioReceived()

	if got := r.Transcript(); got != SentinelNoSpeech {
		t.Fatalf("got %q, want %q", got, SentinelNoSpeech)
	}
}

func TestTranscriptNoEventsNoAudio(t *testing.T) {
	r := NewReconciler()

	if got := r.Transcript(); got != SentinelEndedPremature {
		t.Fatalf("got %q, want %q", got, SentinelEndedPremature)
	}
}

func TestObserveIgnoresEmptyText(t *testing.T) {
	r := NewReconciler()
	r.MarkAudioReceived()
	r.Observe("hello there", true)
	r.Observe("", false)
	r.Observe("   ", true)

	if got := r.Transcript(); got != "hello there" {
		t.Fatalf("got %q, want %q", got, "hello there")
	}
	if r.LastText() != "hello there" {
		t.Fatalf("LastText = %q, want %q", r.LastText(), "hello there")
	}
}

func TestHasFinalSegments(t *testing.T) {
	r := NewReconciler()
	if r.HasFinalSegments() {
		t.Fatal("expected no final segments initially")
	}
	r.Observe("interim", false)
	if r.HasFinalSegments() {
		t.Fatal("interim result should not count as final")
	}
	r.Observe("final", true)
	if !r.HasFinalSegments() {
		t.Fatal("expected final segment after final result")
	}
}

func TestIsSentinel(t *testing.T) {
	if !IsSentinel(SentinelNoSpeech) || !IsSentinel(SentinelEndedPremature) {
		t.Fatal("sentinels not recognized")
	}
	if IsSentinel("a real transcript") {
		t.Fatal("real transcript flagged as sentinel")
	}
}
