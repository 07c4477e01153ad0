package session

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kt34/ai-notes/internal/auth"
	"github.com/kt34/ai-notes/internal/metrics"
	"github.com/kt34/ai-notes/internal/storage"
	"github.com/kt34/ai-notes/internal/stt"
	"github.com/kt34/ai-notes/internal/transcribe"
)

type readFrame struct {
	messageType int
	data        []byte
}

type fakeConn struct {
	mu        sync.Mutex
	reads     chan readFrame
	written   []json.RawMessage
	closeCode int
	closed    bool
}

func newFakeConn(frames ...readFrame) *fakeConn {
	reads := make(chan readFrame, len(frames))
	for _, f := range frames {
		reads <- f
	}
	close(reads)
	return &fakeConn{reads: reads}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	f, ok := <-c.reads
	if !ok {
		return 0, nil, io.EOF
	}
	return f.messageType, f.data, nil
}

func (c *fakeConn) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.written = append(c.written, payload)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		c.mu.Lock()
		c.closeCode = int(binary.BigEndian.Uint16(data[:2]))
		c.mu.Unlock()
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.written))
	for _, raw := range c.written {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("unmarshal written message %s: %v", raw, err)
		}
		out = append(out, m)
	}
	return out
}

type fakeAdapter struct {
	mu       sync.Mutex
	events   chan stt.Event
	startErr error
	sent     [][]byte
	finished bool
}

func newFakeAdapter(events ...stt.Event) *fakeAdapter {
	ch := make(chan stt.Event, len(events)+1)
	for _, ev := range events {
		ch <- ev
	}
	return &fakeAdapter{events: ch}
}

func (a *fakeAdapter) Start(context.Context) error { return a.startErr }

func (a *fakeAdapter) Send(frame []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, frame)
	return nil
}

func (a *fakeAdapter) Finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return
	}
	a.finished = true
	a.events <- stt.Event{Kind: stt.EventEndOfStream}
}

func (a *fakeAdapter) Events() <-chan stt.Event { return a.events }

type fakeVerifier struct {
	user auth.User
	err  error
}

func (v *fakeVerifier) Verify(context.Context, string) (auth.User, error) {
	return v.user, v.err
}

type fakeSessionStore struct {
	mu         sync.Mutex
	consumeErr error
	insertErr  error
	inserted   []*storage.Lecture
}

func (s *fakeSessionStore) InsertLecture(_ context.Context, lecture *storage.Lecture) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return "", s.insertErr
	}
	s.inserted = append(s.inserted, lecture)
	return "lecture-1", nil
}

func (s *fakeSessionStore) ListLecturesByUser(context.Context, string) ([]storage.Lecture, error) {
	return nil, nil
}

func (s *fakeSessionStore) GetLecture(context.Context, string, string) (storage.Lecture, error) {
	return storage.Lecture{}, storage.ErrNotFound
}

func (s *fakeSessionStore) DeleteLecture(context.Context, string, string) error {
	return storage.ErrNotFound
}

func (s *fakeSessionStore) ConsumeSession(context.Context, string) error { return s.consumeErr }

func (s *fakeSessionStore) GetUsage(context.Context, string) (storage.Usage, error) {
	return storage.Usage{}, nil
}

func (s *fakeSessionStore) Close() error { return nil }

type fakeSummarizer struct {
	mu    sync.Mutex
	doc   string
	err   error
	calls []string
}

func (f *fakeSummarizer) Summarize(_ context.Context, transcript string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, transcript)
	f.mu.Unlock()
	return f.doc, f.err
}

func newTestOrchestrator(conn *fakeConn, adapter *fakeAdapter, store *fakeSessionStore, summarizer Summarizer, verifier auth.Verifier) *Orchestrator {
	if verifier == nil {
		verifier = &fakeVerifier{user: auth.User{ID: "user-1", Email: "student@example.com"}}
	}
	return NewOrchestrator(Options{
		Verifier:    verifier,
		Store:       store,
		Summarizer:  summarizer,
		NewAdapter:  func() SpeechAdapter { return adapter },
		ReadTimeout: 50 * time.Millisecond,
	})
}

func TestRunRejectsUnauthenticated(t *testing.T) {
	conn := newFakeConn()
	store := &fakeSessionStore{consumeErr: errors.New("must not be called")}
	o := newTestOrchestrator(conn, newFakeAdapter(), store, &fakeSummarizer{}, &fakeVerifier{
		err: auth.ErrUnauthenticated,
	})

	o.Run(context.Background(), conn, "bad-token")

	if conn.closeCode != CloseUnauthorized {
		t.Fatalf("close code = %d, want %d", conn.closeCode, CloseUnauthorized)
	}
	if !conn.closed {
		t.Error("connection not closed")
	}
	if len(store.inserted) != 0 {
		t.Error("nothing should be persisted")
	}
}

func TestRunRejectsOverQuota(t *testing.T) {
	conn := newFakeConn()
	store := &fakeSessionStore{consumeErr: storage.ErrQuotaExceeded}
	o := newTestOrchestrator(conn, newFakeAdapter(), store, &fakeSummarizer{}, nil)

	o.Run(context.Background(), conn, "token")

	if conn.closeCode != websocket.ClosePolicyViolation {
		t.Fatalf("close code = %d, want %d", conn.closeCode, websocket.ClosePolicyViolation)
	}
	msgs := conn.messages(t)
	if len(msgs) != 1 || msgs[0]["error"] != "session quota exceeded" {
		t.Fatalf("unexpected messages %v", msgs)
	}
}

func TestRunCompletesSession(t *testing.T) {
	conn := newFakeConn(
		readFrame{websocket.BinaryMessage, []byte{1, 2, 3, 4}},
		readFrame{websocket.BinaryMessage, []byte{}},
	)
	adapter := newFakeAdapter(
		stt.Event{Kind: stt.EventTranscript, Text: "cell growth"},
		stt.Event{Kind: stt.EventTranscript, Text: "cell growth happens", IsFinalUtterance: true},
	)
	store := &fakeSessionStore{}
	o := newTestOrchestrator(conn, adapter, store, &fakeSummarizer{doc: "@@LECTURE_TITLE_START@@\nGrowth\n@@LECTURE_TITLE_END@@"}, nil)

	o.Run(context.Background(), conn, "token")

	if conn.closeCode != websocket.CloseNormalClosure {
		t.Fatalf("close code = %d, want %d", conn.closeCode, websocket.CloseNormalClosure)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected 1 persisted lecture, got %d", len(store.inserted))
	}
	if store.inserted[0].Transcript != "cell growth happens" {
		t.Errorf("persisted transcript = %q", store.inserted[0].Transcript)
	}
	if store.inserted[0].UserID != "user-1" {
		t.Errorf("persisted user = %q", store.inserted[0].UserID)
	}

	msgs := conn.messages(t)
	partials, segments := 0, 0
	var final map[string]any
	for _, m := range msgs {
		if _, ok := m["partial"]; ok {
			partials++
		}
		if _, ok := m["is_final_utterance_segment"]; ok {
			segments++
		}
		if _, ok := m["lecture_id"]; ok {
			final = m
		}
	}
	if partials != 1 {
		t.Errorf("expected 1 partial message, got %d", partials)
	}
	if segments != 1 {
		t.Errorf("expected 1 final segment message, got %d", segments)
	}
	if final == nil {
		t.Fatal("no final result message sent")
	}
	if final["transcript"] != "cell growth happens" || final["lecture_id"] != "lecture-1" {
		t.Errorf("final message = %v", final)
	}
}

func TestRunDoesNotCountTranscripts(t *testing.T) {
	// Transcript counters belong to the speech adapter callbacks, where
	// every recognized event is seen. The relay loop must not bump them a
	// second time for delivered events.
	before := testutil.ToFloat64(metrics.Default.TranscriptsPartial) +
		testutil.ToFloat64(metrics.Default.TranscriptsFinal)

	conn := newFakeConn(
		readFrame{websocket.BinaryMessage, []byte{1, 2}},
		readFrame{websocket.BinaryMessage, []byte{}},
	)
	adapter := newFakeAdapter(
		stt.Event{Kind: stt.EventTranscript, Text: "one"},
		stt.Event{Kind: stt.EventTranscript, Text: "one two", IsFinalUtterance: true},
	)
	o := newTestOrchestrator(conn, adapter, &fakeSessionStore{}, &fakeSummarizer{doc: "@@LECTURE_TITLE_START@@\nT\n@@LECTURE_TITLE_END@@"}, nil)

	o.Run(context.Background(), conn, "token")

	after := testutil.ToFloat64(metrics.Default.TranscriptsPartial) +
		testutil.ToFloat64(metrics.Default.TranscriptsFinal)
	if after != before {
		t.Errorf("relay loop changed transcript counters by %v", after-before)
	}
}

func TestRunPrematureDisconnect(t *testing.T) {
	// Client disconnects before sending any audio or producing any events.
	conn := newFakeConn()
	adapter := newFakeAdapter()
	store := &fakeSessionStore{}
	o := newTestOrchestrator(conn, adapter, store, &fakeSummarizer{doc: "unused"}, nil)

	o.Run(context.Background(), conn, "token")

	if len(store.inserted) != 0 {
		t.Fatal("sentinel transcript must not be persisted")
	}

	msgs := conn.messages(t)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 error message, got %v", msgs)
	}
	if msgs[0]["transcript"] != transcribe.SentinelEndedPremature {
		t.Errorf("error transcript = %v, want %q", msgs[0]["transcript"], transcribe.SentinelEndedPremature)
	}
	if conn.closeCode != websocket.CloseNormalClosure {
		t.Errorf("close code = %d, want %d", conn.closeCode, websocket.CloseNormalClosure)
	}
}

func TestRunSummarizerFailure(t *testing.T) {
	conn := newFakeConn(
		readFrame{websocket.BinaryMessage, []byte{1, 2}},
		readFrame{websocket.BinaryMessage, []byte{}},
	)
	adapter := newFakeAdapter(
		stt.Event{Kind: stt.EventTranscript, Text: "some lecture audio", IsFinalUtterance: true},
	)
	store := &fakeSessionStore{}
	o := newTestOrchestrator(conn, adapter, store, &fakeSummarizer{
		doc: "Error generating summary: rate limited",
		err: errors.New("rate limited"),
	}, nil)

	o.Run(context.Background(), conn, "token")

	if len(store.inserted) != 0 {
		t.Fatal("error document must not be persisted")
	}
	if conn.closeCode != websocket.CloseInternalServerErr {
		t.Errorf("close code = %d, want %d", conn.closeCode, websocket.CloseInternalServerErr)
	}

	msgs := conn.messages(t)
	sawError := false
	for _, m := range msgs {
		if errText, ok := m["error"].(string); ok {
			sawError = true
			if !strings.Contains(errText, "Error generating summary") {
				t.Errorf("error message = %q", errText)
			}
		}
	}
	if !sawError {
		t.Fatal("no error message sent to client")
	}
}

func TestRunProviderErrorFinalizesPartialTranscript(t *testing.T) {
	// A provider error ends streaming only. The transcript reconciled up to
	// that point must still flow through summarization and persistence.
	conn := newFakeConn(
		readFrame{websocket.BinaryMessage, []byte{1, 2}},
		readFrame{websocket.BinaryMessage, []byte{}},
	)
	adapter := newFakeAdapter(
		stt.Event{Kind: stt.EventTranscript, Text: "partial words", IsFinalUtterance: true},
		stt.Event{Kind: stt.EventError, Message: "upstream reset"},
	)
	store := &fakeSessionStore{}
	summarizer := &fakeSummarizer{doc: "@@LECTURE_TITLE_START@@\nPartial\n@@LECTURE_TITLE_END@@"}
	o := newTestOrchestrator(conn, adapter, store, summarizer, nil)

	o.Run(context.Background(), conn, "token")

	if len(summarizer.calls) != 1 || summarizer.calls[0] != "partial words" {
		t.Fatalf("summarizer calls = %v, want the recovered partial transcript", summarizer.calls)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected the recovered transcript to be persisted, inserted = %d", len(store.inserted))
	}
	if store.inserted[0].Transcript != "partial words" {
		t.Errorf("persisted transcript = %q", store.inserted[0].Transcript)
	}
	if conn.closeCode != websocket.CloseNormalClosure {
		t.Errorf("close code = %d, want %d", conn.closeCode, websocket.CloseNormalClosure)
	}

	msgs := conn.messages(t)
	last := msgs[len(msgs)-1]
	if last["transcript"] != "partial words" || last["lecture_id"] != "lecture-1" {
		t.Errorf("final message = %v", last)
	}
}
