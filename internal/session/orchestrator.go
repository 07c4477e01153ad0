package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kt34/ai-notes/internal/auth"
	"github.com/kt34/ai-notes/internal/logging"
	"github.com/kt34/ai-notes/internal/metrics"
	"github.com/kt34/ai-notes/internal/storage"
	"github.com/kt34/ai-notes/internal/stt"
	"github.com/kt34/ai-notes/internal/summarize"
	"github.com/kt34/ai-notes/internal/transcribe"
)

// CloseUnauthorized is sent when token verification fails. Clients key on
// it to force a re-login instead of retrying.
const CloseUnauthorized = 4001

const (
	defaultReadTimeout    = 5 * time.Second
	defaultSessionTimeout = 2 * time.Hour
)

// ClientConn is the client-transport surface the orchestrator needs.
// Satisfied by *websocket.Conn.
type ClientConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Orchestrator runs one transcription session per Run call. The LLM-backed
// summarizer is shared across sessions; a fresh speech adapter is created
// for each one since it holds a live provider connection.
type Orchestrator struct {
	verifier       auth.Verifier
	store          storage.Store
	summarizer     Summarizer
	newAdapter     func() SpeechAdapter
	readTimeout    time.Duration
	sessionTimeout time.Duration
	met            *metrics.Metrics
}

type Options struct {
	Verifier   auth.Verifier
	Store      storage.Store
	Summarizer Summarizer
	NewAdapter func() SpeechAdapter

	// ReadTimeout bounds the wait for the next audio frame once audio has
	// started. Defaults to 5s.
	ReadTimeout time.Duration

	// SessionTimeout bounds the whole session, including the wait for the
	// first audio frame and summarization. Defaults to 2h.
	SessionTimeout time.Duration

	Metrics *metrics.Metrics
}

func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		verifier:       opts.Verifier,
		store:          opts.Store,
		summarizer:     opts.Summarizer,
		newAdapter:     opts.NewAdapter,
		readTimeout:    opts.ReadTimeout,
		sessionTimeout: opts.SessionTimeout,
		met:            opts.Metrics,
	}
	if o.readTimeout <= 0 {
		o.readTimeout = defaultReadTimeout
	}
	if o.sessionTimeout <= 0 {
		o.sessionTimeout = defaultSessionTimeout
	}
	if o.met == nil {
		o.met = metrics.Default
	}
	return o
}

// Run drives one session over an accepted client connection. It always
// closes conn before returning. Write errors during cleanup are swallowed:
// the client may already be gone.
func (o *Orchestrator) Run(ctx context.Context, conn ClientConn, token string) {
	sessionID := uuid.NewString()
	defer func() { _ = conn.Close() }()

	state := StateAuthenticating
	log := logging.WithComponent("session").With().Str("session_id", sessionID).Logger()

	user, err := o.verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			log.Warn().Err(err).Msg("rejected unauthenticated session")
			closeWith(conn, CloseUnauthorized, "unauthorized")
		} else {
			log.Error().Err(err).Msg("auth service failure")
			closeWith(conn, websocket.CloseInternalServerErr, "authentication unavailable")
		}
		return
	}
	log = logging.WithSession(sessionID, user.ID)

	start := time.Now()
	o.met.RecordSessionStart()
	failed := false
	defer func() {
		o.met.RecordSessionEnd(failed, time.Since(start).Seconds())
		log.Info().Stringer("state", state).Dur("duration", time.Since(start)).Msg("session ended")
	}()

	if err := o.store.ConsumeSession(ctx, user.ID); err != nil {
		failed = true
		if errors.Is(err, storage.ErrQuotaExceeded) {
			o.met.QuotaRejections.Inc()
			log.Warn().Msg("session rejected by plan limit")
			_ = conn.WriteJSON(errorMessage{Error: "session quota exceeded"})
			closeWith(conn, websocket.ClosePolicyViolation, "quota exceeded")
		} else {
			log.Error().Err(err).Msg("quota check failed")
			closeWith(conn, websocket.CloseInternalServerErr, "internal error")
		}
		return
	}

	ctx, cancel := context.WithTimeout(ctx, o.sessionTimeout)
	defer cancel()

	state = StateStreaming
	transcript, sttFailure, err := o.stream(ctx, conn, log)
	if err != nil {
		failed = true
		state = StateFailed
		log.Error().Err(err).Msg("streaming failed")
		_ = conn.WriteJSON(errorMessage{Error: "speech recognition unavailable"})
		closeWith(conn, websocket.CloseInternalServerErr, "internal error")
		return
	}
	// A provider error ends the audio phase only. Whatever transcript was
	// reconciled before the failure still gets summarized and persisted.
	if sttFailure != "" {
		log.Warn().Str("provider_error", sttFailure).Msg("speech provider error, finalizing with recovered transcript")
	}

	// A sentinel transcript means the session produced nothing worth
	// summarizing or persisting. Not a server fault, so close normally.
	if transcribe.IsSentinel(transcript) {
		failed = true
		state = StateFailed
		log.Info().Str("transcript", transcript).Msg("session produced no transcript")
		_ = conn.WriteJSON(errorMessage{Error: "no transcript captured", Transcript: transcript})
		closeWith(conn, websocket.CloseNormalClosure, "")
		return
	}

	state = StateFinalizing
	_ = conn.WriteJSON(progressMessage{ProcessingStatus: "summarizing", Progress: 25})

	doc, err := o.summarizer.Summarize(ctx, transcript)
	if err != nil || summarize.IsErrorDocument(doc) {
		failed = true
		state = StateFailed
		log.Error().Err(err).Msg("summarization failed")
		_ = conn.WriteJSON(errorMessage{Error: doc, Transcript: transcript})
		closeWith(conn, websocket.CloseInternalServerErr, "summarization failed")
		return
	}

	_ = conn.WriteJSON(progressMessage{ProcessingStatus: "parsing", Progress: 75})
	structured := summarize.ParseStructured(doc)

	state = StatePersisting
	_ = conn.WriteJSON(progressMessage{ProcessingStatus: "saving", Progress: 90})

	lectureID, err := o.store.InsertLecture(ctx, &storage.Lecture{
		UserID:     user.ID,
		Transcript: transcript,
		Summary:    doc,
		Structured: structured,
	})
	if err != nil {
		failed = true
		state = StateFailed
		o.met.PersistErrors.Inc()
		log.Error().Err(err).Msg("failed to persist lecture")
		_ = conn.WriteJSON(errorMessage{Error: "failed to save lecture", Transcript: transcript})
		closeWith(conn, websocket.CloseInternalServerErr, "internal error")
		return
	}
	o.met.LecturesPersisted.Inc()

	state = StateCompleted
	log.Info().Str("lecture_id", lectureID).Msg("lecture persisted")
	_ = conn.WriteJSON(resultMessage{Summary: doc, Transcript: transcript, LectureID: lectureID})
	closeWith(conn, websocket.CloseNormalClosure, "")
}

// stream runs the ingestion loop and the speech event loop concurrently
// until the provider stream ends, relaying live captions as they arrive.
// It returns the reconciled transcript and any provider error message.
func (o *Orchestrator) stream(ctx context.Context, conn ClientConn, log zerolog.Logger) (string, string, error) {
	adapter := o.newAdapter()
	if err := adapter.Start(ctx); err != nil {
		return "", "", fmt.Errorf("start speech session: %w", err)
	}

	frames := make(chan []byte, 32)
	go func() {
		defer close(frames)
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	type ingestResult struct {
		audioReceived bool
		err           error
	}
	ingestDone := make(chan ingestResult, 1)
	go func() {
		audioReceived, err := runIngest(ctx, frames, o.readTimeout, func(frame []byte) error {
			o.met.RecordAudioReceived(len(frame))
			return adapter.Send(frame)
		})
		adapter.Finish()
		ingestDone <- ingestResult{audioReceived: audioReceived, err: err}
	}()

	reconciler := transcribe.NewReconciler()
	var providerError string
	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case ev := <-adapter.Events():
			switch ev.Kind {
			case stt.EventTranscript:
				reconciler.Observe(ev.Text, ev.IsFinalUtterance)
				if ev.IsFinalUtterance {
					_ = conn.WriteJSON(segmentMessage{Text: ev.Text, IsFinal: true})
				} else {
					_ = conn.WriteJSON(partialMessage{Partial: ev.Text})
				}
			case stt.EventError:
				providerError = ev.Message
			case stt.EventEndOfStream:
				done = true
			}
		}
	}

	result := <-ingestDone
	if result.audioReceived {
		reconciler.MarkAudioReceived()
	}
	if result.err != nil && providerError == "" {
		log.Warn().Err(result.err).Msg("audio forwarding stopped early")
		providerError = result.err.Error()
	}

	return reconciler.Transcript(), providerError, nil
}

func closeWith(conn ClientConn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
