package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kt34/ai-notes/internal/auth"
	"github.com/kt34/ai-notes/internal/storage"
)

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/lectures", func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authenticate(w, r)
		if !ok {
			return
		}

		lectures, err := s.store.ListLecturesByUser(r.Context(), user.ID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list lectures: %v", err))
			return
		}
		if lectures == nil {
			lectures = []storage.Lecture{}
		}
		writeJSON(w, http.StatusOK, lectures)
	})

	mux.HandleFunc("GET /api/lectures/{id}", func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authenticate(w, r)
		if !ok {
			return
		}

		lecture, err := s.store.GetLecture(r.Context(), r.PathValue("id"), user.ID)
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "lecture not found")
			return
		}
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get lecture: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, lecture)
	})

	mux.HandleFunc("DELETE /api/lectures/{id}", func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authenticate(w, r)
		if !ok {
			return
		}

		err := s.store.DeleteLecture(r.Context(), r.PathValue("id"), user.ID)
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "lecture not found")
			return
		}
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("delete lecture: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/usage", func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authenticate(w, r)
		if !ok {
			return
		}

		usage, err := s.store.GetUsage(r.Context(), user.ID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get usage: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, usage)
	})
}

// authenticate resolves the request's bearer token. On failure it writes
// the error response and returns ok=false.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (auth.User, bool) {
	user, err := s.verifier.Verify(r.Context(), bearerToken(r))
	if errors.Is(err, auth.ErrUnauthenticated) {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return auth.User{}, false
	}
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "authentication unavailable")
		return auth.User{}, false
	}
	return user, true
}

// bearerToken extracts the token from the Authorization header, falling
// back to the token query parameter for websocket clients that cannot set
// headers.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
