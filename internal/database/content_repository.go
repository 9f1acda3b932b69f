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

// contentSelectList is the column list for SELECT/RETURNING on contents
// (single source for schema changes).
const contentSelectList = `id, client_id, topic, content_type, notes, focus_location,
			caption, hashtags, cta, platform_captions, media_urls,
			platforms, platform_post_ids, error_message, retry_count,
			max_retries, rejection_reason, recycled_from,
			scheduled_at, published_at, status, version, created_at, updated_at`

// ContentRepository manages content rows in PostgreSQL.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a new repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Create inserts a new content row. An empty ID is assigned a UUID.
func (r *ContentRepository) Create(ctx context.Context, c *domain.Content) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	query := `
		INSERT INTO contents (
			id, client_id, topic, content_type, notes, focus_location,
			caption, hashtags, cta, platform_captions, media_urls,
			platforms, platform_post_ids, error_message, retry_count,
			max_retries, rejection_reason, recycled_from,
			scheduled_at, published_at, status, version, created_at, updated_at
		) VALUES (
			:id, :client_id, :topic, :content_type, :notes, :focus_location,
			:caption, :hashtags, :cta, :platform_captions, :media_urls,
			:platforms, :platform_post_ids, :error_message, :retry_count,
			:max_retries, :rejection_reason, :recycled_from,
			:scheduled_at, :published_at, :status, :version, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("create content: %w", err)
	}
	return nil
}

// GetByID retrieves one content item.
func (r *ContentRepository) GetByID(ctx context.Context, id string) (*domain.Content, error) {
	query := `SELECT ` + contentSelectList + ` FROM contents WHERE id = $1`

	var c domain.Content
	err := r.db.GetContext(ctx, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content by id: %w", err)
	}
	return &c, nil
}

// Update persists a content item guarded by its optimistic version. The row
// is only written when the stored version still matches c.Version; on success
// c.Version is advanced. A version mismatch returns domain.ErrStaleState so
// the caller reloads and re-decides instead of clobbering a racing driver.
func (r *ContentRepository) Update(ctx context.Context, c *domain.Content) error {
	query := `
		UPDATE contents
		SET topic = :topic,
		    notes = :notes,
		    caption = :caption,
		    hashtags = :hashtags,
		    cta = :cta,
		    platform_captions = :platform_captions,
		    media_urls = :media_urls,
		    platform_post_ids = :platform_post_ids,
		    error_message = :error_message,
		    retry_count = :retry_count,
		    rejection_reason = :rejection_reason,
		    scheduled_at = :scheduled_at,
		    published_at = :published_at,
		    status = :status,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = :id AND version = :version`

	result, err := r.db.NamedExecContext(ctx, query, c)
	if err != nil {
		return fmt.Errorf("update content: %w", err)
	}

	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return r.classifyMissedUpdate(ctx, c.ID)
	}

	c.Version++
	return nil
}

// classifyMissedUpdate distinguishes a lost version race from a missing row.
func (r *ContentRepository) classifyMissedUpdate(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM contents WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check content exists: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrStaleState
}

// ListByClient returns a client's content, newest first, optionally filtered
// by status. An empty status returns everything.
func (r *ContentRepository) ListByClient(ctx context.Context, clientID string, status domain.ContentStatus, limit int) ([]domain.Content, error) {
	query := `SELECT ` + contentSelectList + `
		FROM contents
		WHERE client_id = $1
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3`

	items := make([]domain.Content, 0, limit)
	if err := r.db.SelectContext(ctx, &items, query, clientID, string(status), limit); err != nil {
		return nil, fmt.Errorf("list content by client: %w", err)
	}
	return items, nil
}

// ListByStatus returns content in a given status across all clients.
func (r *ContentRepository) ListByStatus(ctx context.Context, status domain.ContentStatus, limit int) ([]domain.Content, error) {
	query := `SELECT ` + contentSelectList + `
		FROM contents
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`

	items := make([]domain.Content, 0, limit)
	if err := r.db.SelectContext(ctx, &items, query, string(status), limit); err != nil {
		return nil, fmt.Errorf("list content by status: %w", err)
	}
	return items, nil
}

// ListRecyclable returns published content eligible for recycling: past the
// cooldown window, published cleanly, owned by an active client, and not
// already used as the source of a derived draft.
func (r *ContentRepository) ListRecyclable(ctx context.Context, cooldown time.Duration, limit int) ([]domain.Content, error) {
	query := `SELECT ` + prefixColumns("c.", contentSelectList) + `
		FROM contents c
		JOIN clients cl ON cl.id = c.client_id
		WHERE c.status = 'published'
		  AND c.published_at < NOW() - $1::interval
		  AND c.error_message IS NULL
		  AND cl.is_active
		  AND NOT EXISTS (
			SELECT 1 FROM contents d WHERE d.recycled_from = c.id
		  )
		ORDER BY c.published_at ASC
		LIMIT $2`

	items := make([]domain.Content, 0, limit)
	if err := r.db.SelectContext(ctx, &items, query, cooldown.String(), limit); err != nil {
		return nil, fmt.Errorf("list recyclable content: %w", err)
	}
	return items, nil
}

// PromoteDueScheduled flips scheduled content whose scheduled time has
// passed to published. The platform scheduler owns the actual posting;
// this sweep just settles our bookkeeping.
func (r *ContentRepository) PromoteDueScheduled(ctx context.Context) (int64, error) {
	query := `
		UPDATE contents
		SET status = 'published',
		    version = version + 1,
		    updated_at = NOW()
		WHERE status = 'scheduled'
		  AND scheduled_at <= NOW()`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("promote due scheduled: %w", err)
	}
	return result.RowsAffected()
}

// GetStats returns content counts by lifecycle status.
func (r *ContentRepository) GetStats(ctx context.Context) (*domain.ContentStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'draft') as draft,
			COUNT(*) FILTER (WHERE status = 'pending_approval') as pending_approval,
			COUNT(*) FILTER (WHERE status = 'approved') as approved,
			COUNT(*) FILTER (WHERE status = 'rejected') as rejected,
			COUNT(*) FILTER (WHERE status = 'retrying') as retrying,
			COUNT(*) FILTER (WHERE status = 'scheduled') as scheduled,
			COUNT(*) FILTER (WHERE status = 'published') as published,
			COUNT(*) FILTER (WHERE status = 'failed') as failed
		FROM contents`

	var stats domain.ContentStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Draft,
		&stats.PendingApproval,
		&stats.Approved,
		&stats.Rejected,
		&stats.Retrying,
		&stats.Scheduled,
		&stats.Published,
		&stats.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("get content stats: %w", err)
	}
	return &stats, nil
}
