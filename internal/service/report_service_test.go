package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/dto"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/repository"
	appErrors "github.com/Abdulhakimkamal/otpas-hu-api/pkg/errors"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/grading"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/jobs"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/storage"
)

type memoryReportStore struct {
	mu   sync.Mutex
	jobs map[string]*models.ReportJob
	seq  int
}

func newMemoryReportStore() *memoryReportStore {
	return &memoryReportStore{jobs: map[string]*models.ReportJob{}}
}

func (m *memoryReportStore) Create(_ context.Context, job *models.ReportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	job.ID = fmt.Sprintf("job-%d", m.seq)
	job.CreatedAt = time.Now().UTC()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memoryReportStore) FindByID(_ context.Context, id string) (*models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *job
	return &cp, nil
}

func (m *memoryReportStore) Update(_ context.Context, id string, u repository.ReportJobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.Progress != nil {
		job.Progress = *u.Progress
	}
	if u.ResultPath != nil {
		p := *u.ResultPath
		job.ResultPath = &p
	}
	if u.ErrorMessage != nil {
		msg := *u.ErrorMessage
		job.ErrorMessage = &msg
	}
	if u.FinishedAt != nil {
		at := *u.FinishedAt
		job.FinishedAt = &at
	}
	return nil
}

func (m *memoryReportStore) ListByStatus(_ context.Context, status models.ReportStatus, _ int) ([]models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReportJob
	for _, j := range m.jobs {
		if j.Status == status {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (m *memoryReportStore) ListFinishedBefore(_ context.Context, cutoff time.Time, _ int) ([]models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReportJob
	for _, j := range m.jobs {
		if j.Status == models.ReportStatusFinished && j.ResultPath != nil && j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (m *memoryReportStore) ClearResult(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id].ResultPath = nil
	return nil
}

type recordingDispatcher struct {
	jobs []jobs.Job
}

func (d *recordingDispatcher) Enqueue(job jobs.Job) error {
	d.jobs = append(d.jobs, job)
	return nil
}

type staticGroups []dto.EvaluationGroup

func (s staticGroups) Grouped(context.Context, models.EvaluationFilter) ([]dto.EvaluationGroup, error) {
	return s, nil
}

type reportFixture struct {
	svc        *ReportService
	worker     *ReportWorker
	store      *memoryReportStore
	dispatcher *recordingDispatcher
	disk       *storage.Disk
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	inst := instructorID
	courses := &mockCourseRepo{courses: map[string]*models.Course{
		evalCourseID: {ID: evalCourseID, Code: "CS101", Title: "Intro", InstructorID: &inst},
	}}
	total := 88.0
	breakdown := grading.Breakdown{MidExam: 28, FinalExam: 40, Project: 15, Quiz: 5}
	groups := staticGroups{
		{Key: "Abebe Kebede|CS101", StudentName: "Abebe Kebede", CourseCode: "CS101", CumulativeTotal: &total, Breakdown: &breakdown, Grade: "B"},
		{Key: "Sara Tesfaye|CS101", StudentName: "Sara Tesfaye", CourseCode: "CS101"},
	}
	disk, err := storage.NewDisk(t.TempDir())
	require.NoError(t, err)
	store := newMemoryReportStore()
	dispatcher := &recordingDispatcher{}
	signer := storage.NewSigner("test-secret", time.Hour)
	svc := NewReportService(store, courses, dispatcher, disk, signer, nil, zap.NewNop(), ReportServiceConfig{ResultTTL: time.Hour, DownloadPrefix: "/api/v1/export/"})
	worker := NewReportWorker(store, courses, groups, disk, NewMetricsService(), 1, zap.NewNop())
	return &reportFixture{svc: svc, worker: worker, store: store, dispatcher: dispatcher, disk: disk}
}

func TestReportCreateJob(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	resp, err := f.svc.CreateJob(ctx, Actor{ID: instructorID, Role: models.RoleInstructor}, models.EvaluationReportRequest{CourseID: evalCourseID, Format: "CSV"})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, f.dispatcher.jobs, 1)
	assert.Equal(t, resp.ID, f.dispatcher.jobs[0].ID)
	assert.Equal(t, "csv", f.store.jobs[resp.ID].Params.Format)

	_, err = f.svc.CreateJob(ctx, Actor{ID: otherInstructor, Role: models.RoleInstructor}, models.EvaluationReportRequest{CourseID: evalCourseID})
	assert.Equal(t, appErrors.ErrNotCourseOwner.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreateJob(ctx, Actor{ID: instructorID, Role: models.RoleInstructor}, models.EvaluationReportRequest{CourseID: evalCourseID, Format: "xls"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportWorkerWritesCSVMatchingGroups(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	actor := Actor{ID: instructorID, Role: models.RoleInstructor}

	resp, err := f.svc.CreateJob(ctx, actor, models.EvaluationReportRequest{CourseID: evalCourseID, Format: "csv"})
	require.NoError(t, err)
	require.NoError(t, f.worker.Handle(ctx, f.dispatcher.jobs[0]))

	status, err := f.svc.GetStatus(ctx, actor, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.DownloadURL)
	require.True(t, strings.HasPrefix(*status.DownloadURL, "/api/v1/export/"))

	token := strings.TrimPrefix(*status.DownloadURL, "/api/v1/export/")
	download, err := f.svc.ResolveDownload(ctx, token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "text/csv", download.ContentType)
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))

	raw, err := io.ReadAll(download.File)
	require.NoError(t, err)
	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 3)
	assert.Equal(t, gradeSheetHeaders, rows[0])
	assert.Equal(t, []string{"Abebe Kebede", "CS101", "28.0", "40.0", "15.0", "5.0", "88.0", "B"}, rows[1])
	assert.Equal(t, []string{"Sara Tesfaye", "CS101", "0.0", "0.0", "0.0", "0.0", "0.0", "-"}, rows[2])

	_, err = f.svc.GetStatus(ctx, Actor{ID: otherInstructor, Role: models.RoleInstructor}, resp.ID)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportWorkerRetriesThenFails(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	job := &models.ReportJob{Type: models.ReportTypeEvaluations, Params: models.ReportJobParams{CourseID: "missing", Format: "pdf"}, Status: models.ReportStatusQueued}
	require.NoError(t, f.store.Create(ctx, job))

	require.Error(t, f.worker.Handle(ctx, jobs.Job{ID: job.ID, Attempt: 0}))
	assert.Equal(t, models.ReportStatusQueued, f.store.jobs[job.ID].Status)

	require.Error(t, f.worker.Handle(ctx, jobs.Job{ID: job.ID, Attempt: 1}))
	assert.Equal(t, models.ReportStatusFailed, f.store.jobs[job.ID].Status)
	require.NotNil(t, f.store.jobs[job.ID].ErrorMessage)
}

func TestReportDownloadRejectsTamperedToken(t *testing.T) {
	f := newReportFixture(t)
	_, err := f.svc.ResolveDownload(context.Background(), "job-1.123.abc.def")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportCleanupExpired(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	require.NoError(t, f.disk.Write("evaluations/old.csv", []byte("x")))
	old := time.Now().Add(-2 * time.Hour)
	rel := "evaluations/old.csv"
	f.store.jobs["old"] = &models.ReportJob{ID: "old", Status: models.ReportStatusFinished, ResultPath: &rel, FinishedAt: &old}

	assert.Equal(t, 1, f.svc.CleanupExpired(ctx))
	assert.Nil(t, f.store.jobs["old"].ResultPath)
	_, err := f.disk.Open(rel)
	assert.Error(t, err)
}

func TestReportWorkerIgnoresSettledJob(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	path := "evaluations/done.csv"
	job := &models.ReportJob{Type: models.ReportTypeEvaluations, Params: models.ReportJobParams{CourseID: evalCourseID, Format: "csv"}, Status: models.ReportStatusFinished, Progress: 100, ResultPath: &path}
	require.NoError(t, f.store.Create(ctx, job))

	require.NoError(t, f.worker.Handle(ctx, jobs.Job{ID: job.ID}))
	stored := f.store.jobs[job.ID]
	assert.Equal(t, models.ReportStatusFinished, stored.Status)
	assert.Equal(t, path, *stored.ResultPath)
}
