package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kt34/ai-notes/internal/summarize"
)

// PostgresStore persists lectures in Postgres. It targets a Supabase
// database but works against any reachable Postgres instance.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) init(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS lectures (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			transcript TEXT NOT NULL,
			summary TEXT NOT NULL,
			structured JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			full_name TEXT NOT NULL DEFAULT '',
			subscription_status TEXT NOT NULL DEFAULT 'free'
		)`,
		`CREATE TABLE IF NOT EXISTS plan_limits (
			plan TEXT PRIMARY KEY,
			max_sessions INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_usage (
			user_id UUID NOT NULL,
			period TEXT NOT NULL,
			sessions_used INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, period)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lectures_user_created ON lectures(user_id, created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init postgres schema: %w", err)
		}
	}

	for plan, limit := range defaultPlanLimits {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO plan_limits(plan, max_sessions) VALUES($1, $2) ON CONFLICT (plan) DO NOTHING`,
			plan, limit,
		); err != nil {
			return fmt.Errorf("seed plan limit %s: %w", plan, err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertLecture(ctx context.Context, lecture *Lecture) (string, error) {
	id := lecture.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := lecture.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	structured, err := json.Marshal(lecture.Structured)
	if err != nil {
		return "", fmt.Errorf("marshal structured summary: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO lectures(id, user_id, created_at, transcript, summary, structured)
		 VALUES($1, $2, $3, $4, $5, $6)`,
		id, lecture.UserID, createdAt.UTC(), lecture.Transcript, lecture.Summary, structured,
	)
	if err != nil {
		return "", fmt.Errorf("insert lecture for user %s: %w", lecture.UserID, err)
	}
	return id, nil
}

func (s *PostgresStore) ListLecturesByUser(ctx context.Context, userID string) ([]Lecture, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, created_at, transcript, summary, structured
		 FROM lectures
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query lectures for user %s: %w", userID, err)
	}
	defer rows.Close()

	lectures := make([]Lecture, 0, 16)
	for rows.Next() {
		lecture, err := scanPgLecture(rows)
		if err != nil {
			return nil, err
		}
		lectures = append(lectures, lecture)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lecture rows: %w", err)
	}
	return lectures, nil
}

func (s *PostgresStore) GetLecture(ctx context.Context, id, userID string) (Lecture, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, created_at, transcript, summary, structured
		 FROM lectures WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return Lecture{}, fmt.Errorf("query lecture %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Lecture{}, fmt.Errorf("query lecture %s: %w", id, err)
		}
		return Lecture{}, ErrNotFound
	}
	return scanPgLecture(rows)
}

func (s *PostgresStore) DeleteLecture(ctx context.Context, id, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM lectures WHERE id = $1 AND user_id = $2`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete lecture %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ConsumeSession(ctx context.Context, userID string) error {
	period := currentPeriod(time.Now())

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO user_usage(user_id, period, sessions_used) VALUES($1, $2, 0)
		 ON CONFLICT (user_id, period) DO NOTHING`,
		userID, period,
	); err != nil {
		return fmt.Errorf("ensure usage row for user %s: %w", userID, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE user_usage SET sessions_used = sessions_used + 1
		 WHERE user_id = $1 AND period = $2
		   AND sessions_used < (
			SELECT max_sessions FROM plan_limits WHERE plan = COALESCE(
				(SELECT subscription_status FROM profiles WHERE id = $1), 'free')
		 )`,
		userID, period,
	)
	if err != nil {
		return fmt.Errorf("consume session for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrQuotaExceeded
	}
	return nil
}

func (s *PostgresStore) GetUsage(ctx context.Context, userID string) (Usage, error) {
	var usage Usage
	err := s.pool.QueryRow(ctx,
		`SELECT
			COALESCE((SELECT subscription_status FROM profiles WHERE id = $1), 'free'),
			COALESCE((SELECT sessions_used FROM user_usage WHERE user_id = $1 AND period = $2), 0)`,
		userID, currentPeriod(time.Now()),
	).Scan(&usage.SubscriptionStatus, &usage.SessionsUsed)
	if err != nil {
		return Usage{}, fmt.Errorf("query usage for user %s: %w", userID, err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT max_sessions FROM plan_limits WHERE plan = $1`, usage.SubscriptionStatus,
	).Scan(&usage.SessionsLimit)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Usage{}, fmt.Errorf("query plan limit: %w", err)
	}
	return usage, nil
}

func scanPgLecture(rows pgx.Rows) (Lecture, error) {
	var lecture Lecture
	var structured []byte
	if err := rows.Scan(&lecture.ID, &lecture.UserID, &lecture.CreatedAt, &lecture.Transcript, &lecture.Summary, &structured); err != nil {
		return Lecture{}, fmt.Errorf("scan lecture: %w", err)
	}
	if err := json.Unmarshal(structured, &lecture.Structured); err != nil {
		lecture.Structured = summarize.StructuredSummary{}
	}
	return lecture, nil
}
