package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/dto"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/repository"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/export"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/grading"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/jobs"
)

type groupedSource interface {
	Grouped(ctx context.Context, filter models.EvaluationFilter) ([]dto.EvaluationGroup, error)
}

// Grade sheet columns.
var gradeSheetHeaders = []string{"Student", "Course", "Mid Exam (30)", "Final Exam (50)", "Project (15)", "Quiz (5)", "Total (100)", "Grade"}

var gradeFill = map[string][3]int{
	"A": {209, 250, 229},
	"B": {219, 234, 254},
	"C": {254, 249, 195},
	"D": {255, 237, 213},
	"F": {254, 226, 226},
}

// BuildGradeSheet lays out one row per grouped (student, course) pair.
func BuildGradeSheet(course *models.Course, groups []dto.EvaluationGroup) export.Dataset {
	data := export.Dataset{
		Title:   fmt.Sprintf("%s %s: evaluation report", course.Code, course.Title),
		Headers: gradeSheetHeaders,
		Rows:    make([]map[string]string, 0, len(groups)),
	}
	for _, g := range groups {
		var b grading.Breakdown
		if g.Breakdown != nil {
			b = *g.Breakdown
		}
		total := grading.ScorePlaceholder
		if g.CumulativeTotal != nil {
			total = grading.FormatScore(*g.CumulativeTotal)
		}
		grade := g.Grade
		if grade == "" {
			grade = "-"
		}
		data.Rows = append(data.Rows, map[string]string{
			"Student":         g.StudentName,
			"Course":          g.CourseCode,
			"Mid Exam (30)":   grading.FormatScore(b.MidExam),
			"Final Exam (50)": grading.FormatScore(b.FinalExam),
			"Project (15)":    grading.FormatScore(b.Project),
			"Quiz (5)":        grading.FormatScore(b.Quiz),
			"Total (100)":     total,
			"Grade":           grade,
		})
	}
	data.Footer = []string{
		fmt.Sprintf("Students: %d", len(groups)),
		"Generated " + time.Now().UTC().Format(time.RFC1123),
	}
	return data
}

func renderer(format export.Format) export.Renderer {
	if format != export.FormatPDF {
		return export.For(format)
	}
	pdf := export.NewPDFExporter()
	pdf.Shade = func(header, value string) (int, int, int, bool) {
		if header != "Grade" {
			return 0, 0, 0, false
		}
		rgb, ok := gradeFill[value]
		return rgb[0], rgb[1], rgb[2], ok
	}
	return pdf
}

// ReportWorker renders queued report jobs to files.
type ReportWorker struct {
	repo       reportJobStore
	courses    courseLookup
	source     groupedSource
	files      fileStore
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

func NewReportWorker(repo reportJobStore, courses courseLookup, source groupedSource, files fileStore, metrics *MetricsService, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ReportWorker{
		repo:       repo,
		courses:    courses,
		source:     source,
		files:      files,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job. Returned errors are retried by the queue.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.FindByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Status.Terminal() {
		w.logger.Debug("report job already settled", zap.String("job_id", job.ID), zap.String("status", string(record.Status)))
		return nil
	}
	if err := w.progress(ctx, job.ID, models.ReportStatusProcessing, 10); err != nil {
		return err
	}

	rel, err := w.generate(ctx, record)
	if err != nil {
		w.fail(ctx, job, err)
		return err
	}

	finished := models.ReportStatusFinished
	progress := 100
	now := time.Now().UTC()
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.ReportJobUpdate{
		Status:       &finished,
		Progress:     &progress,
		ResultPath:   &rel,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job finished", "job_id", job.ID, "error", err)
		return err
	}
	w.metrics.ReportJobFinished(models.ReportStatusFinished)
	w.logger.Info("report generated", zap.String("job_id", job.ID), zap.String("path", rel))
	return nil
}

func (w *ReportWorker) generate(ctx context.Context, job *models.ReportJob) (string, error) {
	format, err := export.ParseFormat(job.Params.Format)
	if err != nil {
		return "", err
	}
	course, err := w.courses.FindByID(ctx, job.Params.CourseID)
	if err != nil {
		return "", fmt.Errorf("load course %s: %w", job.Params.CourseID, err)
	}
	groups, err := w.source.Grouped(ctx, models.EvaluationFilter{CourseID: course.ID})
	if err != nil {
		return "", fmt.Errorf("load evaluations: %w", err)
	}
	if err := w.progress(ctx, job.ID, models.ReportStatusProcessing, 50); err != nil {
		return "", err
	}

	payload, err := renderer(format).Render(BuildGradeSheet(course, groups))
	if err != nil {
		return "", fmt.Errorf("render %s: %w", format, err)
	}
	rel := fmt.Sprintf("evaluations/%s_%s%s", course.Code, job.ID, format.Extension())
	if err := w.files.Write(rel, payload); err != nil {
		return "", err
	}
	return rel, nil
}

func (w *ReportWorker) progress(ctx context.Context, id string, status models.ReportStatus, pct int) error {
	return w.repo.Update(ctx, id, repository.ReportJobUpdate{Status: &status, Progress: &pct})
}

func (w *ReportWorker) fail(ctx context.Context, job jobs.Job, cause error) {
	msg := cause.Error()
	update := repository.ReportJobUpdate{ErrorMessage: &msg}
	if job.Attempt >= w.maxRetries {
		failed := models.ReportStatusFailed
		progress := 100
		now := time.Now().UTC()
		update.Status, update.Progress, update.FinishedAt = &failed, &progress, &now
		w.metrics.ReportJobFinished(models.ReportStatusFailed)
	} else {
		queued := models.ReportStatusQueued
		reset := 0
		update.Status, update.Progress = &queued, &reset
	}
	if err := w.repo.Update(ctx, job.ID, update); err != nil {
		w.logger.Sugar().Warnw("failed to record job failure", "job_id", job.ID, "error", err)
	}
}
