package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kt34/ai-notes/internal/auth"
	"github.com/kt34/ai-notes/internal/storage"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (auth.User, error) {
	if token != "good-token" {
		return auth.User{}, auth.ErrUnauthenticated
	}
	return auth.User{ID: "user-1", Email: "student@example.com"}, nil
}

type stubStore struct {
	lectures map[string]storage.Lecture
}

func newStubStore() *stubStore {
	return &stubStore{lectures: map[string]storage.Lecture{
		"lec-1": {
			ID:         "lec-1",
			UserID:     "user-1",
			CreatedAt:  time.Now(),
			Transcript: "a transcript",
			Summary:    "a summary",
		},
	}}
}

func (s *stubStore) InsertLecture(_ context.Context, lecture *storage.Lecture) (string, error) {
	s.lectures[lecture.ID] = *lecture
	return lecture.ID, nil
}

func (s *stubStore) ListLecturesByUser(_ context.Context, userID string) ([]storage.Lecture, error) {
	var out []storage.Lecture
	for _, lecture := range s.lectures {
		if lecture.UserID == userID {
			out = append(out, lecture)
		}
	}
	return out, nil
}

func (s *stubStore) GetLecture(_ context.Context, id, userID string) (storage.Lecture, error) {
	lecture, ok := s.lectures[id]
	if !ok || lecture.UserID != userID {
		return storage.Lecture{}, storage.ErrNotFound
	}
	return lecture, nil
}

func (s *stubStore) DeleteLecture(_ context.Context, id, userID string) error {
	lecture, ok := s.lectures[id]
	if !ok || lecture.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.lectures, id)
	return nil
}

func (s *stubStore) ConsumeSession(context.Context, string) error { return nil }

func (s *stubStore) GetUsage(context.Context, string) (storage.Usage, error) {
	return storage.Usage{SubscriptionStatus: "free", SessionsUsed: 3, SessionsLimit: 10}, nil
}

func (s *stubStore) Close() error { return nil }

func newTestServer() (*Server, *stubStore) {
	store := newStubStore()
	return New(stubVerifier{}, store, nil), store
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestListLectures(t *testing.T) {
	srv, _ := newTestServer()
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/lectures", "good-token")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var lectures []storage.Lecture
	if err := json.Unmarshal(rec.Body.Bytes(), &lectures); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(lectures) != 1 || lectures[0].ID != "lec-1" {
		t.Fatalf("unexpected lectures %#v", lectures)
	}
}

func TestListLecturesUnauthorized(t *testing.T) {
	srv, _ := newTestServer()
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/lectures", "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetLecture(t *testing.T) {
	srv, _ := newTestServer()

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/lectures/lec-1", "good-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var lecture storage.Lecture
	if err := json.Unmarshal(rec.Body.Bytes(), &lecture); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if lecture.Transcript != "a transcript" {
		t.Errorf("Transcript = %q", lecture.Transcript)
	}

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/lectures/missing", "good-token")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status for missing lecture = %d", rec.Code)
	}
}

func TestDeleteLecture(t *testing.T) {
	srv, store := newTestServer()

	rec := doRequest(t, srv.Handler(), http.MethodDelete, "/api/lectures/lec-1", "good-token")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(store.lectures) != 0 {
		t.Error("lecture not deleted")
	}

	rec = doRequest(t, srv.Handler(), http.MethodDelete, "/api/lectures/lec-1", "good-token")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status after delete = %d", rec.Code)
	}
}

func TestGetUsage(t *testing.T) {
	srv, _ := newTestServer()
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/usage", "good-token")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var usage storage.Usage
	if err := json.Unmarshal(rec.Body.Bytes(), &usage); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if usage.SessionsUsed != 3 || usage.SessionsLimit != 10 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer()
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestBearerTokenFromQuery(t *testing.T) {
	srv, _ := newTestServer()
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/usage?token=good-token", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
