package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) registerWSRoute(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/transcribe", func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		// Token validation happens inside Run so the client receives the
		// dedicated close code rather than an HTTP error.
		s.orchestrator.Run(r.Context(), conn, token)
	})
}
