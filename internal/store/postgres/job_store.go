// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizforge/quizd/internal/quiz"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// JobStoreConfig controls the Postgres connection pool used for job rows.
type JobStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// JobStore writes job and attempt rows into Postgres.
type JobStore struct {
	pool     dbPool
	jobs     string
	attempts string
}

// NewJobStore creates a Postgres-backed JobStore using the provided config.
func NewJobStore(ctx context.Context, cfg JobStoreConfig) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewJobStoreWithPool(pool, cfg.Table)
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewJobStoreWithPool(pool dbPool, table string) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "quiz_jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &JobStore{
		pool:     pool,
		jobs:     table,
		attempts: table + "_attempts",
	}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob inserts a job row in queued status.
func (s *JobStore) CreateJob(ctx context.Context, job quiz.Job) error {
	params, err := json.Marshal(job.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	counters, err := json.Marshal(job.Counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, status, submitted_at, error_text, parameters, counters)
VALUES ($1,$2,$3,$4,$5,$6)`, s.jobs)
	if _, err := s.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.Submitted, job.ErrorText, params, counters,
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus updates the status, counters, and lifecycle timestamps of a job.
func (s *JobStore) UpdateJobStatus(
	ctx context.Context,
	jobID string,
	status quiz.JobStatus,
	errText string,
	counters quiz.ChainCounters,
) error {
	countersJSON, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}
	query := fmt.Sprintf(`
UPDATE %s SET
	status = $2,
	error_text = $3,
	counters = $4,
	started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN $5 ELSE started_at END,
	finished_at = CASE WHEN $2 IN ('succeeded','failed','canceled') THEN $5 ELSE finished_at END
WHERE id = $1`, s.jobs)
	tag, err := s.pool.Exec(ctx, query, jobID, string(status), errText, countersJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New("job not found")
	}
	return nil
}

// RecordAttempt appends an attempt row for a job.
func (s *JobStore) RecordAttempt(ctx context.Context, attempt quiz.AttemptRecord) error {
	if attempt.JobID == "" {
		return fmt.Errorf("attempt job id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	job_id, quiz_url, sequence, question, answer, correct,
	submitted_at, duration_ms, content_hash, blob_uri, error_text
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, s.attempts)
	if _, err := s.pool.Exec(ctx, query,
		attempt.JobID, attempt.QuizURL, attempt.Sequence, attempt.Question,
		attempt.Answer, attempt.Correct, attempt.SubmittedAt, attempt.DurationMs,
		attempt.ContentHash, attempt.BlobURI, attempt.ErrorText,
	); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// GetJob fetches a job row by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (quiz.Job, error) {
	query := fmt.Sprintf(`
SELECT id, status, submitted_at, started_at, finished_at, error_text, parameters, counters
FROM %s WHERE id = $1`, s.jobs)

	var (
		job          quiz.Job
		status       string
		params       []byte
		countersJSON []byte
	)
	row := s.pool.QueryRow(ctx, query, jobID)
	if err := row.Scan(
		&job.ID, &status, &job.Submitted, &job.Started, &job.Finished,
		&job.ErrorText, &params, &countersJSON,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return quiz.Job{}, errors.New("job not found")
		}
		return quiz.Job{}, fmt.Errorf("scan job: %w", err)
	}
	job.Status = quiz.JobStatus(status)
	if err := json.Unmarshal(params, &job.Parameters); err != nil {
		return quiz.Job{}, fmt.Errorf("unmarshal parameters: %w", err)
	}
	if err := json.Unmarshal(countersJSON, &job.Counters); err != nil {
		return quiz.Job{}, fmt.Errorf("unmarshal counters: %w", err)
	}
	return job, nil
}

// ListAttempts returns the attempt rows for a job ordered by sequence.
func (s *JobStore) ListAttempts(ctx context.Context, jobID string) ([]quiz.AttemptRecord, error) {
	query := fmt.Sprintf(`
SELECT job_id, quiz_url, sequence, question, answer, correct,
	submitted_at, duration_ms, content_hash, blob_uri, error_text
FROM %s WHERE job_id = $1 ORDER BY sequence`, s.attempts)

	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []quiz.AttemptRecord
	for rows.Next() {
		var rec quiz.AttemptRecord
		if err := rows.Scan(
			&rec.JobID, &rec.QuizURL, &rec.Sequence, &rec.Question, &rec.Answer,
			&rec.Correct, &rec.SubmittedAt, &rec.DurationMs, &rec.ContentHash,
			&rec.BlobURI, &rec.ErrorText,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}
