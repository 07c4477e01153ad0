// Package server exposes the transcription websocket and the lecture REST
// API over one HTTP handler.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kt34/ai-notes/internal/auth"
	"github.com/kt34/ai-notes/internal/logging"
	"github.com/kt34/ai-notes/internal/session"
	"github.com/kt34/ai-notes/internal/storage"
)

type Server struct {
	verifier     auth.Verifier
	store        storage.Store
	orchestrator *session.Orchestrator
	log          zerolog.Logger
}

func New(verifier auth.Verifier, store storage.Store, orchestrator *session.Orchestrator) *Server {
	return &Server{
		verifier:     verifier,
		store:        store,
		orchestrator: orchestrator,
		log:          logging.WithComponent("server"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.registerWSRoute(mux)
	s.registerAPIRoutes(mux)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}
