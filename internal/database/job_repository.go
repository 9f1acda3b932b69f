package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/gopost/internal/domain"
)

const jobSelectList = `id, content_id, kind, status, run_at, attempts,
			max_attempts, error_message, created_at, updated_at`

// JobRepository manages the durable background-job queue in PostgreSQL.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue inserts a pending job. An empty ID is assigned a UUID.
func (r *JobRepository) Enqueue(ctx context.Context, job *domain.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	query := `
		INSERT INTO content_jobs (
			id, content_id, kind, status, run_at, attempts,
			max_attempts, error_message, created_at, updated_at
		) VALUES (
			:id, :content_id, :kind, :status, :run_at, :attempts,
			:max_attempts, :error_message, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// FetchDue claims up to limit due jobs and flips them to running.
// Uses FOR UPDATE SKIP LOCKED for concurrent worker safety.
func (r *JobRepository) FetchDue(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `
		UPDATE content_jobs
		SET status = 'running', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM content_jobs
			WHERE status = 'pending'
			  AND run_at <= NOW()
			ORDER BY run_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobSelectList

	jobs := make([]domain.Job, 0, limit)
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("fetch due jobs: %w", err)
	}
	return jobs, nil
}

// execExpectOneRow runs an exec and returns domain.ErrNotFound when no row
// was affected.
func (r *JobRepository) execExpectOneRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkDone marks a job completed.
func (r *JobRepository) MarkDone(ctx context.Context, id string) error {
	query := `
		UPDATE content_jobs
		SET status = 'done', updated_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark job done: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt. While attempts remain the job goes
// back to pending with the given delay; once exhausted it lands in failed.
func (r *JobRepository) MarkFailed(ctx context.Context, id, errorMsg string, retryDelay time.Duration) error {
	query := `
		UPDATE content_jobs
		SET attempts = attempts + 1,
		    error_message = $2,
		    status = CASE WHEN attempts + 1 < max_attempts THEN 'pending' ELSE 'failed' END,
		    run_at = CASE WHEN attempts + 1 < max_attempts THEN NOW() + $3::interval ELSE run_at END,
		    updated_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, id, errorMsg, retryDelay.String()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

// Unclaim returns a claimed job to pending without spending an attempt,
// deferring it by the given delay. Used when the worker cannot take the
// content lease because another instance is driving the same content.
func (r *JobRepository) Unclaim(ctx context.Context, id string, delay time.Duration) error {
	query := `
		UPDATE content_jobs
		SET status = 'pending',
		    run_at = NOW() + $2::interval,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'running'`
	if err := r.execExpectOneRow(ctx, query, id, delay.String()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("unclaim job: %w", err)
	}
	return nil
}

// ResetStale returns crashed workers' running claims to pending.
func (r *JobRepository) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE content_jobs
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'running'
		  AND updated_at < NOW() - $1::interval`

	result, err := r.db.ExecContext(ctx, query, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("reset stale jobs: %w", err)
	}
	return result.RowsAffected()
}

// CleanupDone removes old completed jobs.
func (r *JobRepository) CleanupDone(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM content_jobs
		WHERE status = 'done'
		  AND updated_at < NOW() - $1::interval`

	result, err := r.db.ExecContext(ctx, query, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("cleanup done jobs: %w", err)
	}
	return result.RowsAffected()
}

// GetByID retrieves a single job.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	query := `SELECT ` + jobSelectList + ` FROM content_jobs WHERE id = $1`

	var job domain.Job
	err := r.db.GetContext(ctx, &job, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job by id: %w", err)
	}
	return &job, nil
}

// GetStats returns queue statistics.
func (r *JobRepository) GetStats(ctx context.Context) (*domain.QueueStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') as pending,
			COUNT(*) FILTER (WHERE status = 'running') as running,
			COUNT(*) FILTER (WHERE status = 'done') as done,
			COUNT(*) FILTER (WHERE status = 'failed') as failed,
			COALESCE(AVG(EXTRACT(EPOCH FROM (updated_at - run_at)))
				FILTER (WHERE status = 'done' AND updated_at > NOW() - INTERVAL '1 hour'), 0) as avg_lag_seconds
		FROM content_jobs`

	var stats domain.QueueStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Pending,
		&stats.Running,
		&stats.Done,
		&stats.Failed,
		&stats.AvgLagSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("get queue stats: %w", err)
	}
	return &stats, nil
}
