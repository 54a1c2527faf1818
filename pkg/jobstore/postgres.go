package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore persists jobs to Postgres for durable simulator deployments.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(conn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", conn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	s := &PostgresStore{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS analysis_jobs (
    id TEXT PRIMARY KEY,
    idempotency_key TEXT,
    payload_hash TEXT,
    payload JSONB,
    status TEXT NOT NULL,
    polls INT NOT NULL DEFAULT 0,
    result JSONB,
    error TEXT,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS analysis_jobs_idempotency_key
    ON analysis_jobs (idempotency_key) WHERE idempotency_key <> '';
`
	_, err := s.db.Exec(schema)
	return err
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, job Job) error {
	query := `INSERT INTO analysis_jobs (id, idempotency_key, payload_hash, payload, status, polls, result, error, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.IdempotencyKey,
		job.PayloadHash,
		nullableJSON(job.Payload),
		job.Status,
		job.Polls,
		nullableJSON(job.Result),
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Job, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, idempotency_key, payload_hash, payload, status, polls, result, error, created_at, updated_at
FROM analysis_jobs WHERE id=$1`, id))
}

func (s *PostgresStore) GetByKey(ctx context.Context, key string) (Job, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, idempotency_key, payload_hash, payload, status, polls, result, error, created_at, updated_at
FROM analysis_jobs WHERE idempotency_key=$1`, key))
}

func (s *PostgresStore) Update(ctx context.Context, job Job) error {
	query := `UPDATE analysis_jobs SET status=$1, polls=$2, result=$3, error=$4, updated_at=$5 WHERE id=$6`
	res, err := s.db.ExecContext(ctx, query,
		job.Status,
		job.Polls,
		nullableJSON(job.Result),
		job.Error,
		time.Now().UTC(),
		job.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (Job, error) {
	var job Job
	var payload, result sql.NullString
	var errMsg sql.NullString
	err := row.Scan(
		&job.ID,
		&job.IdempotencyKey,
		&job.PayloadHash,
		&payload,
		&job.Status,
		&job.Polls,
		&result,
		&errMsg,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	if payload.Valid {
		job.Payload = []byte(payload.String)
	}
	if result.Valid {
		job.Result = []byte(result.String)
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return job, nil
}

// nullableJSON maps empty raw messages to SQL NULL.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
