package session

// Wire messages sent to the client over the transcription socket.

// partialMessage relays one interim caption update.
type partialMessage struct {
	Partial string `json:"partial"`
}

// segmentMessage relays one finalized utterance segment.
type segmentMessage struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final_utterance_segment"`
}

// progressMessage reports an advisory milestone during finalization.
type progressMessage struct {
	ProcessingStatus string `json:"processing_status"`
	Progress         int    `json:"progress"`
}

// resultMessage carries the final summary once the session completes.
type resultMessage struct {
	Summary    string `json:"summary"`
	Transcript string `json:"transcript"`
	LectureID  string `json:"lecture_id"`
}

// errorMessage carries a failure to the client, with whatever transcript
// was recovered before the failure.
type errorMessage struct {
	Error      string `json:"error"`
	Transcript string `json:"transcript,omitempty"`
}
