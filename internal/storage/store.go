// Package storage persists lecture records and tracks per-user session
// quotas. Two backends are provided: an embedded SQLite store for
// single-node deployments and a Postgres store for hosted ones.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kt34/ai-notes/internal/summarize"
)

var (
	// ErrNotFound indicates the requested lecture does not exist or does
	// not belong to the requesting user.
	ErrNotFound = errors.New("lecture not found")

	// ErrQuotaExceeded indicates the user has used all sessions allowed by
	// their plan for the current period.
	ErrQuotaExceeded = errors.New("session quota exceeded")
)

// Lecture is one persisted transcription session.
type Lecture struct {
	ID         string                      `json:"id"`
	UserID     string                      `json:"user_id"`
	CreatedAt  time.Time                   `json:"created_at"`
	Transcript string                      `json:"transcript"`
	Summary    string                      `json:"summary"`
	Structured summarize.StructuredSummary `json:"structured"`
}

// Usage reports a user's plan and session consumption for the current
// monthly period.
type Usage struct {
	SubscriptionStatus string `json:"subscription_status"`
	SessionsUsed       int    `json:"sessions_used"`
	SessionsLimit      int    `json:"sessions_limit"`
}

// Store is the persistence interface consumed by the orchestrator and the
// HTTP API.
type Store interface {
	// InsertLecture writes a new lecture and returns its generated id.
	InsertLecture(ctx context.Context, lecture *Lecture) (string, error)

	// ListLecturesByUser returns the user's lectures, newest first.
	ListLecturesByUser(ctx context.Context, userID string) ([]Lecture, error)

	// GetLecture returns one lecture owned by the user, or ErrNotFound.
	GetLecture(ctx context.Context, id, userID string) (Lecture, error)

	// DeleteLecture removes one lecture owned by the user, or ErrNotFound.
	DeleteLecture(ctx context.Context, id, userID string) error

	// ConsumeSession atomically charges one session against the user's
	// plan for the current period, or returns ErrQuotaExceeded.
	ConsumeSession(ctx context.Context, userID string) error

	// GetUsage reports the user's plan and current-period consumption.
	GetUsage(ctx context.Context, userID string) (Usage, error)

	Close() error
}

// currentPeriod is the monthly quota bucket key.
func currentPeriod(now time.Time) string {
	return now.UTC().Format("2006-01")
}
