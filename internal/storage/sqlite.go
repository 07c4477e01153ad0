package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kt34/ai-notes/internal/summarize"
)

// defaultPlanLimits seeds plan_limits on first startup. The free tier
// mirrors the hosted product default; rows can be adjusted in place.
var defaultPlanLimits = map[string]int{
	"free":      10,
	"pro":       100,
	"unlimited": 1000000,
}

type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "ai-notes.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS lectures (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			transcript TEXT NOT NULL,
			summary TEXT NOT NULL,
			structured TEXT NOT NULL DEFAULT '{}'
		);
	`); err != nil {
		return fmt.Errorf("create lectures table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			full_name TEXT NOT NULL DEFAULT '',
			subscription_status TEXT NOT NULL DEFAULT 'free'
		);
	`); err != nil {
		return fmt.Errorf("create profiles table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS plan_limits (
			plan TEXT PRIMARY KEY,
			max_sessions INTEGER NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create plan_limits table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS user_usage (
			user_id TEXT NOT NULL,
			period TEXT NOT NULL,
			sessions_used INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, period)
		);
	`); err != nil {
		return fmt.Errorf("create user_usage table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_lectures_user_created ON lectures(user_id, created_at)"); err != nil {
		return fmt.Errorf("create lectures index: %w", err)
	}

	for plan, limit := range defaultPlanLimits {
		if _, err := s.db.Exec(
			`INSERT OR IGNORE INTO plan_limits(plan, max_sessions) VALUES(?, ?)`, plan, limit,
		); err != nil {
			return fmt.Errorf("seed plan limit %s: %w", plan, err)
		}
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location, used by the backup uploader.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) InsertLecture(ctx context.Context, lecture *Lecture) (string, error) {
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lectures(id, user_id, created_at, transcript, summary, structured) VALUES(?, ?, ?, ?, ?, ?)`,
		id,
		lecture.UserID,
		createdAt.UTC().Format(time.RFC3339Nano),
		lecture.Transcript,
		lecture.Summary,
		string(structured),
	)
	if err != nil {
		return "", fmt.Errorf("insert lecture for user %s: %w", lecture.UserID, err)
	}
	return id, nil
}

func (s *SQLiteStore) ListLecturesByUser(ctx context.Context, userID string) ([]Lecture, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, created_at, transcript, summary, structured
		 FROM lectures
		 WHERE user_id = ?
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query lectures for user %s: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	lectures := make([]Lecture, 0, 16)
	for rows.Next() {
		lecture, err := scanLecture(rows.Scan)
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

func (s *SQLiteStore) GetLecture(ctx context.Context, id, userID string) (Lecture, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, transcript, summary, structured
		 FROM lectures WHERE id = ? AND user_id = ?`,
		id, userID,
	)

	lecture, err := scanLecture(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Lecture{}, ErrNotFound
	}
	if err != nil {
		return Lecture{}, fmt.Errorf("query lecture %s: %w", id, err)
	}
	return lecture, nil
}

func (s *SQLiteStore) DeleteLecture(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM lectures WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete lecture %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete lecture rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeSession charges one session in a single conditional UPDATE so that
// concurrent sessions cannot both pass the limit check.
func (s *SQLiteStore) ConsumeSession(ctx context.Context, userID string) error {
	period := currentPeriod(time.Now())

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO user_usage(user_id, period, sessions_used) VALUES(?, ?, 0)
		 ON CONFLICT(user_id, period) DO NOTHING`,
		userID, period,
	); err != nil {
		return fmt.Errorf("ensure usage row for user %s: %w", userID, err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE user_usage SET sessions_used = sessions_used + 1
		 WHERE user_id = ? AND period = ?
		   AND sessions_used < (
			SELECT max_sessions FROM plan_limits WHERE plan = COALESCE(
				(SELECT subscription_status FROM profiles WHERE id = ?), 'free')
		 )`,
		userID, period, userID,
	)
	if err != nil {
		return fmt.Errorf("consume session for user %s: %w", userID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume session rows affected: %w", err)
	}
	if rows == 0 {
		return ErrQuotaExceeded
	}
	return nil
}

func (s *SQLiteStore) GetUsage(ctx context.Context, userID string) (Usage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT
			COALESCE((SELECT subscription_status FROM profiles WHERE id = ?), 'free'),
			COALESCE((SELECT sessions_used FROM user_usage WHERE user_id = ? AND period = ?), 0)`,
		userID, userID, currentPeriod(time.Now()),
	)

	var usage Usage
	if err := row.Scan(&usage.SubscriptionStatus, &usage.SessionsUsed); err != nil {
		return Usage{}, fmt.Errorf("query usage for user %s: %w", userID, err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT max_sessions FROM plan_limits WHERE plan = ?`, usage.SubscriptionStatus,
	).Scan(&usage.SessionsLimit); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Usage{}, fmt.Errorf("query plan limit: %w", err)
	}

	return usage, nil
}

// SetSubscription upserts a user's profile plan. Used by tests and admin
// tooling; the hosted backend manages profiles through Supabase directly.
func (s *SQLiteStore) SetSubscription(ctx context.Context, userID, email, plan string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles(id, email, subscription_status) VALUES(?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET subscription_status = excluded.subscription_status`,
		userID, email, plan,
	)
	if err != nil {
		return fmt.Errorf("set subscription for user %s: %w", userID, err)
	}
	return nil
}

func scanLecture(scan func(dest ...any) error) (Lecture, error) {
	var lecture Lecture
	var createdAt, structured string
	if err := scan(&lecture.ID, &lecture.UserID, &createdAt, &lecture.Transcript, &lecture.Summary, &structured); err != nil {
		return Lecture{}, err
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Lecture{}, fmt.Errorf("parse lecture %s created_at: %w", lecture.ID, err)
	}
	lecture.CreatedAt = parsed

	if err := json.Unmarshal([]byte(structured), &lecture.Structured); err != nil {
		lecture.Structured = summarize.StructuredSummary{}
	}
	return lecture, nil
}
