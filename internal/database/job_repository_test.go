package database_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jonesrussell/gopost/internal/database"
	"github.com/jonesrussell/gopost/internal/domain"
)

var jobColumns = []string{
	"id", "content_id", "kind", "status", "run_at", "attempts",
	"max_attempts", "error_message", "created_at", "updated_at",
}

func TestJobRepository_Enqueue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	job := domain.NewJob("content-1", domain.JobGenerate, time.Now())

	mock.ExpectExec("INSERT INTO content_jobs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Enqueue(context.Background(), job); err != nil {
		t.Errorf("Enqueue() error = %v", err)
	}
	if job.ID == "" {
		t.Error("Enqueue() did not assign an ID")
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestJobRepository_FetchDue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows(jobColumns).
		AddRow("job-1", "content-1", "generate", "running", now, 0, 3, nil, now, now).
		AddRow("job-2", "content-2", "publish", "running", now, 1, 3, nil, now, now)

	mock.ExpectQuery("UPDATE content_jobs").
		WithArgs(10).
		WillReturnRows(rows)

	jobs, err := repo.FetchDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchDue() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("FetchDue() returned %d jobs, want 2", len(jobs))
	}
	if jobs[0].Kind != domain.JobGenerate {
		t.Errorf("jobs[0].Kind = %q, want generate", jobs[0].Kind)
	}
	if jobs[1].Kind != domain.JobPublish {
		t.Errorf("jobs[1].Kind = %q, want publish", jobs[1].Kind)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestJobRepository_MarkDone(t *testing.T) {
	testCases := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   bool
	}{
		{
			name: "successfully marks job done",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE content_jobs").
					WithArgs("job-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantErr: false,
		},
		{
			name: "missing job returns error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE content_jobs").
					WithArgs("job-1").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: true,
		},
		{
			name: "database error returns error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE content_jobs").
					WithArgs("job-1").
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := database.NewJobRepository(db)
			tc.setupMock(mock)

			callErr := repo.MarkDone(context.Background(), "job-1")
			if (callErr != nil) != tc.wantErr {
				t.Errorf("MarkDone() error = %v, wantErr %v", callErr, tc.wantErr)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestJobRepository_MarkFailed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)
	retryDelay := 15 * time.Second

	mock.ExpectExec("UPDATE content_jobs").
		WithArgs("job-1", "generator timeout", retryDelay.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkFailed(context.Background(), "job-1", "generator timeout", retryDelay); err != nil {
		t.Errorf("MarkFailed() error = %v", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestJobRepository_Unclaim(t *testing.T) {
	testCases := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   bool
	}{
		{
			name: "returns running job to pending",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE content_jobs").
					WithArgs("job-1", (10 * time.Second).String()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantErr: false,
		},
		{
			name: "job no longer running returns error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE content_jobs").
					WithArgs("job-1", (10 * time.Second).String()).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := database.NewJobRepository(db)
			tc.setupMock(mock)

			callErr := repo.Unclaim(context.Background(), "job-1", 10*time.Second)
			if (callErr != nil) != tc.wantErr {
				t.Errorf("Unclaim() error = %v, wantErr %v", callErr, tc.wantErr)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestJobRepository_ResetStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)
	olderThan := 5 * time.Minute

	mock.ExpectExec("UPDATE content_jobs").
		WithArgs(olderThan.String()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	reset, err := repo.ResetStale(context.Background(), olderThan)
	if err != nil {
		t.Fatalf("ResetStale() error = %v", err)
	}
	if reset != 3 {
		t.Errorf("ResetStale() = %d, want 3", reset)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestJobRepository_GetStats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	rows := sqlmock.NewRows([]string{"pending", "running", "done", "failed", "avg_lag_seconds"}).
		AddRow(4, 1, 200, 2, 1.2)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	stats, err := repo.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.Pending != 4 || stats.Failed != 2 {
		t.Errorf("GetStats() = %+v, want pending 4, failed 2", stats)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestJob_HasAttemptsLeft(t *testing.T) {
	job := domain.NewJob("content-1", domain.JobPublish, time.Now())
	if !job.HasAttemptsLeft() {
		t.Error("new job should have attempts left")
	}
	job.Attempts = job.MaxAttempts
	if job.HasAttemptsLeft() {
		t.Error("exhausted job should have no attempts left")
	}
}
