package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/bookscrape/catalog-crawler/internal/catalog"
)

func testJob() catalog.Job {
	now := time.Unix(1700000000, 0).UTC()
	return catalog.Job{
		ID:          "6f8de1c0-0000-4000-8000-000000000001",
		Status:      catalog.JobStatusPending,
		Message:     "Scraping queued for execution.",
		CreatedAt:   now,
		UpdatedAt:   now,
		TriggeredBy: "api-user",
	}
}

func TestJobStore_CreateJobInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock)
	require.NoError(t, err)

	job := testJob()
	mock.ExpectExec("INSERT INTO scraping_requests").
		WithArgs(job.ID, string(job.Status), job.Message, job.CreatedAt, job.UpdatedAt, job.TriggeredBy).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_UpdateJobStatus(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE scraping_requests").
		WithArgs("job-1", string(catalog.JobStatusRunning), "Scraping in progress.",
			string(catalog.JobStatusDone), string(catalog.JobStatusError)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.UpdateJobStatus(context.Background(), "job-1", catalog.JobStatusRunning, "Scraping in progress.")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_UpdateMissingJobReturnsNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE scraping_requests").
		WithArgs("missing", string(catalog.JobStatusRunning), "msg",
			string(catalog.JobStatusDone), string(catalog.JobStatusError)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT id, status, message, created_at, updated_at, trigger_by_user").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	err = store.UpdateJobStatus(context.Background(), "missing", catalog.JobStatusRunning, "msg")
	require.ErrorIs(t, err, catalog.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_GetJobScansRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock)
	require.NoError(t, err)

	job := testJob()
	rows := pgxmock.NewRows([]string{"id", "status", "message", "created_at", "updated_at", "trigger_by_user"}).
		AddRow(job.ID, string(job.Status), job.Message, job.CreatedAt, job.UpdatedAt, job.TriggeredBy)
	mock.ExpectQuery("SELECT id, status, message, created_at, updated_at, trigger_by_user").
		WithArgs(job.ID).
		WillReturnRows(rows)

	got, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, job, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_GetMissingJobReturnsNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, status, message, created_at, updated_at, trigger_by_user").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, catalog.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_EnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS scraping_requests").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
