// Package metrics provides Prometheus metrics for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_notes"

// Metrics holds all Prometheus metrics for the transcription service.
type Metrics struct {
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsFailed  prometheus.Counter
	SessionDuration prometheus.Histogram

	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter
	EventsDropped      prometheus.Counter

	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter

	LLMCalls   *prometheus.CounterVec
	LLMErrors  *prometheus.CounterVec
	LLMLatency *prometheus.HistogramVec

	LecturesPersisted prometheus.Counter
	PersistErrors     prometheus.Counter
	QuotaRejections   prometheus.Counter
}

// Default is the process-wide metrics instance.
var Default = New()

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of transcription sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active transcription sessions",
		}),
		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions that ended in a failure state",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of transcription sessions in seconds",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}),

		TranscriptsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of interim transcript events received",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final transcript events received",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_events_dropped_total",
			Help:      "Total number of transcript events dropped under backpressure",
		}),

		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received from clients",
		}),
		AudioFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received from clients",
		}),

		LLMCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Total number of LLM calls issued",
		}, []string{"kind"}),
		LLMErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_errors_total",
			Help:      "Total number of failed LLM calls",
		}, []string{"kind"}),
		LLMLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_latency_seconds",
			Help:      "LLM call latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}, []string{"kind"}),

		LecturesPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lectures_persisted_total",
			Help:      "Total number of lecture records written to storage",
		}),
		PersistErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Total number of lecture persistence failures",
		}),
		QuotaRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Total number of sessions rejected by plan limits",
		}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd(failed bool, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
	if failed {
		m.SessionsFailed.Inc()
	}
}

// RecordAudioReceived records one inbound audio frame.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordLLMCall records one LLM call outcome.
func (m *Metrics) RecordLLMCall(kind string, err error, latencySeconds float64) {
	m.LLMCalls.WithLabelValues(kind).Inc()
	m.LLMLatency.WithLabelValues(kind).Observe(latencySeconds)
	if err != nil {
		m.LLMErrors.WithLabelValues(kind).Inc()
	}
}
