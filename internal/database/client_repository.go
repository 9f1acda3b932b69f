package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/gopost/internal/domain"
)

const clientSelectList = `id, business_name, industry, website_url, city, state,
			service_area, monthly_post_limit, posts_this_month, auto_post,
			brand_voice, tone_preference, platforms_enabled, account_refs,
			owner_email, is_active, created_at, updated_at`

// ClientRepository manages client accounts and their posting quotas.
type ClientRepository struct {
	db *sqlx.DB
}

// NewClientRepository creates a new repository.
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// GetByID retrieves a client.
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	query := `SELECT ` + clientSelectList + ` FROM clients WHERE id = $1`

	var c domain.Client
	err := r.db.GetContext(ctx, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client by id: %w", err)
	}
	return &c, nil
}

// TryReserveQuota atomically claims one post slot from the client's monthly
// allowance. The conditional UPDATE is the serialization point: concurrent
// submissions for the same client race on the row lock and at most
// limit - used of them win. On denial the usage numbers are loaded so the
// caller gets a *domain.QuotaError (or ErrNotFound / ErrClientInactive).
func (r *ClientRepository) TryReserveQuota(ctx context.Context, clientID string) error {
	query := `
		UPDATE clients
		SET posts_this_month = posts_this_month + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND is_active
		  AND posts_this_month < monthly_post_limit`

	result, err := r.db.ExecContext(ctx, query, clientID)
	if err != nil {
		return fmt.Errorf("reserve quota: %w", err)
	}

	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 1 {
		return nil
	}

	return r.classifyQuotaDenial(ctx, clientID)
}

func (r *ClientRepository) classifyQuotaDenial(ctx context.Context, clientID string) error {
	var (
		isActive bool
		used     int
		limit    int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT is_active, posts_this_month, monthly_post_limit FROM clients WHERE id = $1`,
		clientID).Scan(&isActive, &used, &limit)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("classify quota denial: %w", err)
	}
	if !isActive {
		return domain.ErrClientInactive
	}
	return &domain.QuotaError{ClientID: clientID, Used: used, Limit: limit}
}

// ReleaseQuota returns one reserved slot, used when a submission fails after
// the reservation but before a draft exists. Never drops below zero.
func (r *ClientRepository) ReleaseQuota(ctx context.Context, clientID string) error {
	query := `
		UPDATE clients
		SET posts_this_month = GREATEST(posts_this_month - 1, 0),
		    updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, clientID); err != nil {
		return fmt.Errorf("release quota: %w", err)
	}
	return nil
}

// ResetMonthlyCounters zeroes posts_this_month for every client. Run at the
// start of each month.
func (r *ClientRepository) ResetMonthlyCounters(ctx context.Context) (int64, error) {
	query := `
		UPDATE clients
		SET posts_this_month = 0,
		    updated_at = NOW()
		WHERE posts_this_month > 0`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("reset monthly counters: %w", err)
	}
	return result.RowsAffected()
}

// ListActive returns all active clients.
func (r *ClientRepository) ListActive(ctx context.Context) ([]domain.Client, error) {
	query := `SELECT ` + clientSelectList + `
		FROM clients
		WHERE is_active
		ORDER BY business_name ASC`

	var clients []domain.Client
	if err := r.db.SelectContext(ctx, &clients, query); err != nil {
		return nil, fmt.Errorf("list active clients: %w", err)
	}
	return clients, nil
}
