// Package store persists finished interviews and their feedback reports in
// Postgres. The engine runs fine without it; persistence is opt-in via the
// DSN.
package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/interview"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// InterviewRecord is one persisted interview.
type InterviewRecord struct {
	ID         string
	Round      interview.Round
	Role       interview.Role
	Topic      string
	Question   string
	StartedAt  time.Time
	EndedAt    *time.Time
	Transcript []interview.Turn
	Scores     interview.ScoreVector
	Feedback   []interview.FeedbackEvent
	TimeSpent  map[string]int
}

// Store is a Postgres-backed interview archive.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to Postgres and runs pending migrations.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("store: empty DSN")
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("store: set dialect: %w", err)
	}
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	s.logger.Debug("store migrations applied")
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CreateInterview inserts a new interview row at session start.
func (s *Store) CreateInterview(ctx context.Context, rec InterviewRecord) error {
	if rec.ID == "" {
		return errors.New("store: interview id is required")
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO interviews (id, round, role, topic, question, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, string(rec.Round), string(rec.Role), rec.Topic, rec.Question, rec.StartedAt)
	if err != nil {
		return fmt.Errorf("store: create interview: %w", err)
	}
	return nil
}

// FinishInterview records the end of a session together with its transcript,
// final scores, coaching feedback and per-phase timings.
func (s *Store) FinishInterview(ctx context.Context, rec InterviewRecord) error {
	transcript, err := json.Marshal(orEmptySlice(rec.Transcript))
	if err != nil {
		return fmt.Errorf("store: marshal transcript: %w", err)
	}
	scores, err := json.Marshal(rec.Scores)
	if err != nil {
		return fmt.Errorf("store: marshal scores: %w", err)
	}
	feedback, err := json.Marshal(orEmptySlice(rec.Feedback))
	if err != nil {
		return fmt.Errorf("store: marshal feedback: %w", err)
	}
	timeSpent, err := json.Marshal(rec.TimeSpent)
	if err != nil {
		return fmt.Errorf("store: marshal time spent: %w", err)
	}

	endedAt := time.Now().UTC()
	if rec.EndedAt != nil {
		endedAt = *rec.EndedAt
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE interviews
		SET ended_at = $2, transcript = $3, scores = $4, feedback = $5, time_spent = $6
		WHERE id = $1
	`, rec.ID, endedAt, transcript, scores, feedback, timeSpent)
	if err != nil {
		return fmt.Errorf("store: finish interview: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetInterview loads one interview by id.
func (s *Store) GetInterview(ctx context.Context, id string) (*InterviewRecord, error) {
	var (
		rec        InterviewRecord
		round      string
		role       string
		transcript []byte
		scores     []byte
		feedback   []byte
		timeSpent  []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, round, role, topic, question, started_at, ended_at,
		       transcript, scores, feedback, time_spent
		FROM interviews WHERE id = $1
	`, id).Scan(&rec.ID, &round, &role, &rec.Topic, &rec.Question,
		&rec.StartedAt, &rec.EndedAt, &transcript, &scores, &feedback, &timeSpent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get interview: %w", err)
	}

	rec.Round = interview.Round(round)
	rec.Role = interview.Role(role)
	if err := json.Unmarshal(transcript, &rec.Transcript); err != nil {
		return nil, fmt.Errorf("store: decode transcript: %w", err)
	}
	if err := json.Unmarshal(scores, &rec.Scores); err != nil {
		return nil, fmt.Errorf("store: decode scores: %w", err)
	}
	if err := json.Unmarshal(feedback, &rec.Feedback); err != nil {
		return nil, fmt.Errorf("store: decode feedback: %w", err)
	}
	if err := json.Unmarshal(timeSpent, &rec.TimeSpent); err != nil {
		return nil, fmt.Errorf("store: decode time spent: %w", err)
	}
	return &rec, nil
}

// ListRecent returns the most recently started interviews, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]InterviewRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, round, role, topic, question, started_at, ended_at
		FROM interviews ORDER BY started_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list interviews: %w", err)
	}
	defer rows.Close()

	var out []InterviewRecord
	for rows.Next() {
		var rec InterviewRecord
		var round, role string
		if err := rows.Scan(&rec.ID, &round, &role, &rec.Topic, &rec.Question, &rec.StartedAt, &rec.EndedAt); err != nil {
			return nil, fmt.Errorf("store: scan interview: %w", err)
		}
		rec.Round = interview.Round(round)
		rec.Role = interview.Role(role)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveReport stores the final feedback report for an interview, replacing
// any previous one.
func (s *Store) SaveReport(ctx context.Context, interviewID string, report *interview.FeedbackReport) error {
	if report == nil {
		return errors.New("store: nil report")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("store: marshal report: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO feedback_reports (interview_id, overall_score, summary, report)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (interview_id)
		DO UPDATE SET overall_score = $2, summary = $3, report = $4, created_at = now()
	`, interviewID, report.OverallScore, report.Summary, payload)
	if err != nil {
		return fmt.Errorf("store: save report: %w", err)
	}
	return nil
}

// GetReport loads the feedback report for an interview.
func (s *Store) GetReport(ctx context.Context, interviewID string) (*interview.FeedbackReport, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM feedback_reports WHERE interview_id = $1`, interviewID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get report: %w", err)
	}
	var report interview.FeedbackReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("store: decode report: %w", err)
	}
	return &report, nil
}

// orEmptySlice keeps JSONB columns as [] instead of null.
func orEmptySlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
