// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookscrape/catalog-crawler/internal/catalog"
)

// JobStoreConfig controls the Postgres connection pool used for job rows.
type JobStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// JobStore persists job records in the scraping_requests table, mirroring
// the audit trail the status endpoint reads from.
type JobStore struct {
	pool dbPool
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS scraping_requests (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	trigger_by_user TEXT
)`

// NewJobStore creates a Postgres-backed JobStore using the provided config.
func NewJobStore(ctx context.Context, cfg JobStoreConfig) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
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
	return &JobStore{pool: pool}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily for
// testing).
func NewJobStoreWithPool(pool dbPool) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool}, nil
}

// EnsureSchema creates the scraping_requests table when it does not exist.
func (s *JobStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure scraping_requests schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob inserts a new job row.
func (s *JobStore) CreateJob(ctx context.Context, job catalog.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO scraping_requests (id, status, message, created_at, updated_at, trigger_by_user)
VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID,
		string(job.Status),
		job.Message,
		job.CreatedAt,
		job.UpdatedAt,
		job.TriggeredBy,
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

// UpdateJobStatus transitions a non-terminal job, refreshing updated_at.
func (s *JobStore) UpdateJobStatus(ctx context.Context, jobID string, status catalog.JobStatus, message string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE scraping_requests
SET status = $2, message = $3, updated_at = now()
WHERE id = $1 AND status NOT IN ($4, $5)`,
		jobID,
		string(status),
		message,
		string(catalog.JobStatusDone),
		string(catalog.JobStatusError),
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is missing or already terminal.
		if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
			return getErr
		}
		return errors.New("job is already in a terminal state")
	}
	return nil
}

// GetJob fetches a job snapshot by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (catalog.Job, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, status, message, created_at, updated_at, trigger_by_user
FROM scraping_requests
WHERE id = $1`,
		jobID,
	)
	var (
		job    catalog.Job
		status string
	)
	err := row.Scan(&job.ID, &status, &job.Message, &job.CreatedAt, &job.UpdatedAt, &job.TriggeredBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Job{}, catalog.ErrJobNotFound
		}
		return catalog.Job{}, fmt.Errorf("select job %s: %w", jobID, err)
	}
	job.Status = catalog.JobStatus(status)
	return job, nil
}
