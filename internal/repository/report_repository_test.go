package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
)

func TestReportRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec("INSERT INTO report_jobs").
		WithArgs(sqlmock.AnyArg(), "evaluations", sqlmock.AnyArg(), "QUEUED", 0, nil, "user-1", sqlmock.AnyArg(), nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ReportJob{
		Type:      models.ReportTypeEvaluations,
		Params:    models.ReportJobParams{CourseID: "c1", Format: "csv"},
		CreatedBy: "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)

	rows := sqlmock.NewRows(reportColumns).
		AddRow(job.ID, "evaluations", []byte(`{"course_id":"c1","format":"csv"}`), "QUEUED", 0, nil, "user-1", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM report_jobs WHERE id = $1")).WithArgs(job.ID).WillReturnRows(rows)

	fetched, err := repo.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "c1", fetched.Params.CourseID)
	assert.Equal(t, models.ReportStatusQueued, fetched.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	status := models.ReportStatusFinished
	progress := 100
	path := "evaluations/job.csv"
	// SetMap sorts columns alphabetically.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET finished_at = $1, progress = $2, result_path = $3, status = $4 WHERE id = $5")).
		WithArgs(now, progress, path, status, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "job-1", ReportJobUpdate{Status: &status, Progress: &progress, ResultPath: &path, FinishedAt: &now}))
	require.NoError(t, repo.Update(context.Background(), "job-1", ReportJobUpdate{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementListForAudiences(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM announcements WHERE (published_at <= $1 AND (expires_at IS NULL OR expires_at > $2) AND audience = ANY($3)) ORDER BY is_pinned DESC")).
		WillReturnRows(sqlmock.NewRows(announcementColumns).
			AddRow("a1", "Exam week", "<p>Good luck</p>", "STUDENTS", "HIGH", true, now, nil, "u1", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.AnnouncementFilter{
		Audiences: models.AudiencesFor(models.RoleStudent),
		Now:       now,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsPinned)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
