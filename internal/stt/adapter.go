// Package stt wraps a streaming speech-recognition connection and converts
// its push callbacks into a single ordered queue of typed events.
package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	"github.com/rs/zerolog"

	"github.com/kt34/ai-notes/internal/logging"
	"github.com/kt34/ai-notes/internal/metrics"
)

// queueCapacity bounds the event queue. Interim results arrive at a high
// rate, so the queue is sized generously; under sustained backpressure
// transcript events are dropped, terminal signals never are.
const queueCapacity = 200

var (
	// ErrConnection indicates the provider rejected the start request.
	ErrConnection = errors.New("speech provider connection failed")
	// ErrNotConnected is returned by Send before Start or after Finish.
	ErrNotConnected = errors.New("speech connection is not open")
)

// Conn is the subset of the provider's live client the adapter drives.
// The Deepgram callback websocket client satisfies it.
type Conn interface {
	Connect() bool
	Write(p []byte) (n int, err error)
	Stop()
}

// ConnFactory opens a provider connection that delivers its events to cb.
type ConnFactory func(ctx context.Context, cb api.LiveMessageCallback) (Conn, error)

// Adapter owns one provider streaming connection for the lifetime of a
// client session. It implements the provider callback interface and
// republishes transcript, error and close callbacks as Events, in arrival
// order, on a bounded queue.
type Adapter struct {
	factory ConnFactory
	queue   chan Event
	met     *metrics.Metrics
	log     zerolog.Logger

	mu     sync.Mutex
	conn   Conn
	ended  bool
	closed sync.Once
}

// NewAdapter creates an adapter around the given connection factory.
func NewAdapter(factory ConnFactory) *Adapter {
	return &Adapter{
		factory: factory,
		queue:   make(chan Event, queueCapacity),
		met:     metrics.Default,
		log:     logging.WithComponent("stt"),
	}
}

// Start opens the provider connection. The recognition parameters are fixed
// by the factory. Returns ErrConnection if the provider rejects the start.
func (a *Adapter) Start(ctx context.Context) error {
	conn, err := a.factory(ctx, a)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if ok := conn.Connect(); !ok {
		return ErrConnection
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
	return nil
}

// Send forwards one audio frame to the open connection.
func (a *Adapter) Send(frame []byte) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("send audio frame: %w", err)
	}
	return nil
}

// Finish signals graceful end of audio input. The provider flushes any
// remaining results and then closes, which produces the EndOfStream event.
func (a *Adapter) Finish() {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()

	if conn != nil {
		conn.Stop()
	}
}

// Events returns the adapter's event queue. The consumer must drain it
// until EventEndOfStream; no event follows that sentinel.
func (a *Adapter) Events() <-chan Event {
	return a.queue
}

// enqueueTranscript is non-blocking: under extreme backpressure transcript
// loss is tolerated.
func (a *Adapter) enqueueTranscript(ev Event) {
	a.mu.Lock()
	ended := a.ended
	a.mu.Unlock()
	if ended {
		return
	}

	select {
	case a.queue <- ev:
	default:
		a.met.EventsDropped.Inc()
		a.log.Warn().Str("text", ev.Text).Msg("event queue full, transcript dropped")
	}
}

// enqueueGuaranteed delivers error and close signals even when the queue is
// full, by evicting the oldest queued event to make room. It never blocks
// the provider callback goroutine.
func (a *Adapter) enqueueGuaranteed(ev Event) {
	for {
		select {
		case a.queue <- ev:
			return
		default:
		}
		select {
		case dropped := <-a.queue:
			a.met.EventsDropped.Inc()
			if dropped.Kind != EventTranscript {
				a.log.Error().
					Int("kind", int(dropped.Kind)).
					Msg("evicted non-transcript event under backpressure")
			}
		default:
		}
	}
}

// Message implements the provider transcript callback.
func (a *Adapter) Message(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}

	text := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if text == "" {
		return nil
	}

	final := mr.IsFinal || mr.SpeechFinal
	if final {
		a.met.TranscriptsFinal.Inc()
	} else {
		a.met.TranscriptsPartial.Inc()
	}

	a.enqueueTranscript(Event{Kind: EventTranscript, Text: text, IsFinalUtterance: final})
	return nil
}

// Error implements the provider error callback. One ErrorSignal is emitted;
// the session's audio phase ends, the process does not.
func (a *Adapter) Error(er *api.ErrorResponse) error {
	msg := er.Description
	if msg == "" {
		msg = er.ErrCode
	}
	a.log.Error().Str("code", er.ErrCode).Str("description", er.Description).Msg("provider error")

	a.mu.Lock()
	ended := a.ended
	a.mu.Unlock()
	if !ended {
		a.enqueueGuaranteed(Event{Kind: EventError, Message: msg})
	}
	return nil
}

// Close implements the provider close callback. Exactly one EndOfStream
// sentinel is emitted; later callbacks are ignored.
func (a *Adapter) Close(*api.CloseResponse) error {
	a.closed.Do(func() {
		a.mu.Lock()
		a.ended = true
		a.mu.Unlock()
		a.enqueueGuaranteed(Event{Kind: EventEndOfStream})
	})
	return nil
}

func (a *Adapter) Open(*api.OpenResponse) error {
	a.log.Debug().Msg("provider connection open")
	return nil
}

func (a *Adapter) Metadata(*api.MetadataResponse) error { return nil }

func (a *Adapter) SpeechStarted(*api.SpeechStartedResponse) error { return nil }

func (a *Adapter) UtteranceEnd(*api.UtteranceEndResponse) error { return nil }

func (a *Adapter) UnhandledEvent([]byte) error { return nil }
