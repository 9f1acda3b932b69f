package database_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jonesrussell/gopost/internal/database"
	"github.com/jonesrussell/gopost/internal/domain"
)

func TestClientRepository_TryReserveQuota(t *testing.T) {
	ctx := context.Background()
	clientID := "client-1"

	testCases := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		check     func(t *testing.T, err error)
	}{
		{
			name: "slot available, reservation wins",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE clients").
					WithArgs(clientID).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Errorf("TryReserveQuota() error = %v, want nil", err)
				}
			},
		},
		{
			name: "quota exhausted returns QuotaError with usage",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE clients").
					WithArgs(clientID).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT is_active").
					WithArgs(clientID).
					WillReturnRows(sqlmock.NewRows([]string{"is_active", "posts_this_month", "monthly_post_limit"}).
						AddRow(true, 8, 8))
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, domain.ErrQuotaExceeded) {
					t.Fatalf("TryReserveQuota() error = %v, want ErrQuotaExceeded", err)
				}
				var quotaErr *domain.QuotaError
				if !errors.As(err, &quotaErr) {
					t.Fatal("TryReserveQuota() error is not a *QuotaError")
				}
				if quotaErr.Used != 8 || quotaErr.Limit != 8 {
					t.Errorf("QuotaError = %d/%d, want 8/8", quotaErr.Used, quotaErr.Limit)
				}
			},
		},
		{
			name: "inactive client returns ErrClientInactive",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE clients").
					WithArgs(clientID).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT is_active").
					WithArgs(clientID).
					WillReturnRows(sqlmock.NewRows([]string{"is_active", "posts_this_month", "monthly_post_limit"}).
						AddRow(false, 2, 8))
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, domain.ErrClientInactive) {
					t.Errorf("TryReserveQuota() error = %v, want ErrClientInactive", err)
				}
			},
		},
		{
			name: "unknown client returns ErrNotFound",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE clients").
					WithArgs(clientID).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT is_active").
					WithArgs(clientID).
					WillReturnError(sql.ErrNoRows)
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, domain.ErrNotFound) {
					t.Errorf("TryReserveQuota() error = %v, want ErrNotFound", err)
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := database.NewClientRepository(db)
			tc.setupMock(mock)

			tc.check(t, repo.TryReserveQuota(ctx, clientID))

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestClientRepository_ReleaseQuota(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewClientRepository(db)

	mock.ExpectExec("UPDATE clients").
		WithArgs("client-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ReleaseQuota(context.Background(), "client-1"); err != nil {
		t.Errorf("ReleaseQuota() error = %v", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestClientRepository_ResetMonthlyCounters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewClientRepository(db)

	mock.ExpectExec("UPDATE clients").
		WillReturnResult(sqlmock.NewResult(0, 42))

	reset, err := repo.ResetMonthlyCounters(context.Background())
	if err != nil {
		t.Fatalf("ResetMonthlyCounters() error = %v", err)
	}
	if reset != 42 {
		t.Errorf("ResetMonthlyCounters() = %d, want 42", reset)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestClientRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewClientRepository(db)

	mock.ExpectQuery("SELECT").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}
