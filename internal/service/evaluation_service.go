package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/dto"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/repository"
	appErrors "github.com/Abdulhakimkamal/otpas-hu-api/pkg/errors"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/events"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/grading"
)

const (
	evaluationCachePattern = "evaluations:*"
	evaluationCacheTTL     = 2 * time.Minute
)

type evaluationRepository interface {
	List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationRecord, error)
	FindByID(ctx context.Context, id int64) (*models.EvaluationRecord, error)
	Create(ctx context.Context, rec *models.EvaluationRecord, snapshot repository.SnapshotFunc) error
	Delete(ctx context.Context, id int64, snapshot repository.SnapshotFunc) error
}

type courseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// EvaluationSubmitted is published after a score is stored.
type EvaluationSubmitted struct {
	EvaluationID    int64                  `json:"evaluation_id"`
	StudentID       string                 `json:"student_id"`
	CourseID        string                 `json:"course_id"`
	EvaluationType  grading.EvaluationType `json:"evaluation_type"`
	CumulativeTotal *grading.Score         `json:"cumulative_total,omitempty"`
	Grade           string                 `json:"grade"`
}

// EvaluationService records component scores and serves the grouped grade views.
type EvaluationService struct {
	repo      evaluationRepository
	courses   courseLookup
	users     userFinder
	cache     *CacheService
	publisher events.Publisher
	metrics   *MetricsService
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// EvaluationServiceDeps bundles the optional collaborators.
type EvaluationServiceDeps struct {
	Cache     *CacheService
	Publisher events.Publisher
	Metrics   *MetricsService
	Audit     auditRecorder
}

func NewEvaluationService(repo evaluationRepository, courses courseLookup, users userFinder, validate *validator.Validate, logger *zap.Logger, deps EvaluationServiceDeps) *EvaluationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &EvaluationService{
		repo:      repo,
		courses:   courses,
		users:     users,
		cache:     deps.Cache,
		publisher: publisher,
		metrics:   deps.Metrics,
		audit:     deps.Audit,
		validator: validate,
		logger:    logger,
	}
}

// ComputeSnapshot builds the running breakdown from the latest raw score of
// each component. Scores are already on their component scale.
func ComputeSnapshot(latest map[grading.EvaluationType]float64) models.EvaluationSnapshot {
	var b grading.Breakdown
	for t, v := range latest {
		limit, ok := grading.ComponentMax(t)
		if !ok {
			continue
		}
		if v > limit {
			v = limit
		}
		if v < 0 {
			v = 0
		}
		b.Set(t, grading.Round2(v))
	}
	total := b.Total()
	return models.EvaluationSnapshot{Breakdown: b, Total: total, Grade: string(grading.CalculateGrade(total))}
}

// Submit stores one component score and refreshes the pair's cumulative snapshot.
func (s *EvaluationService) Submit(ctx context.Context, actor Actor, req models.SubmitEvaluationRequest) (*models.EvaluationRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid evaluation payload")
	}
	limit, ok := grading.ComponentMax(req.EvaluationType)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownComponent, fmt.Sprintf("unknown evaluation type %q", req.EvaluationType))
	}
	score := req.Score.Float64()
	if score < 0 || score > limit {
		return nil, appErrors.Clone(appErrors.ErrScoreOutOfRange, fmt.Sprintf("%s score must be between 0 and %s", req.EvaluationType.Label(), strconv.FormatFloat(limit, 'f', -1, 64)))
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	if actor.Role != models.RoleAdmin && (course.InstructorID == nil || *course.InstructorID != actor.ID) {
		return nil, appErrors.ErrNotCourseOwner
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	if student.Role != models.RoleStudent || !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "evaluations can only be recorded for active students")
	}

	instructorID := actor.ID
	if course.InstructorID != nil {
		instructorID = *course.InstructorID
	}
	rec := &models.EvaluationRecord{
		StudentID:      student.ID,
		CourseID:       course.ID,
		InstructorID:   instructorID,
		StudentName:    student.FullName,
		CourseCode:     course.Code,
		CourseTitle:    course.Title,
		EvaluationType: req.EvaluationType,
		Score:          grading.Score(grading.Round2(score)),
		Comments:       req.Comments,
	}
	if err := s.repo.Create(ctx, rec, ComputeSnapshot); err != nil {
		return nil, appErrors.Internal(err, "failed to save evaluation")
	}

	s.metrics.EvaluationSubmitted(string(rec.EvaluationType))
	s.afterWrite(ctx, events.SubjectEvaluationSubmitted, EvaluationSubmitted{
		EvaluationID:    rec.ID,
		StudentID:       rec.StudentID,
		CourseID:        rec.CourseID,
		EvaluationType:  rec.EvaluationType,
		CumulativeTotal: rec.CumulativeTotal,
		Grade:           rec.Grade,
	})
	writeAudit(ctx, s.audit, s.logger, actor.Meta(), "evaluations", models.AuditActionEvaluationSubmit, strconv.FormatInt(rec.ID, 10), req)

	s.logger.Info("evaluation submitted",
		zap.Int64("evaluation_id", rec.ID),
		zap.String("course", rec.CourseCode),
		zap.String("type", string(rec.EvaluationType)),
		zap.String("grade", rec.Grade),
	)
	return rec, nil
}

// List returns raw records newest first.
func (s *EvaluationService) List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationRecord, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list evaluations")
	}
	return records, nil
}

// Grouped returns the deduplicated (student, course) view for filter.
func (s *EvaluationService) Grouped(ctx context.Context, filter models.EvaluationFilter) ([]dto.EvaluationGroup, error) {
	groups, _, err := s.GroupedView(ctx, filter)
	return groups, err
}

// GroupedView is Grouped that also reports whether the cache served it.
func (s *EvaluationService) GroupedView(ctx context.Context, filter models.EvaluationFilter) ([]dto.EvaluationGroup, bool, error) {
	return readThrough(ctx, s.cache, groupedCacheKey(filter), evaluationCacheTTL, func(ctx context.Context) ([]dto.EvaluationGroup, error) {
		records, err := s.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		set, stats := AggregateEvaluations(SortByRecency(records))
		if stats.Suppressed() > 0 {
			s.logger.Debug("duplicate evaluations suppressed",
				zap.Int("input", stats.Input),
				zap.Int("by_id", stats.DuplicateIDs),
				zap.Int("by_content", stats.DuplicateContent),
			)
			s.metrics.DuplicatesSuppressed(stats.DuplicateIDs, stats.DuplicateContent)
		}
		groups := make([]dto.EvaluationGroup, 0, set.Len())
		for _, g := range set.Groups() {
			groups = append(groups, decorateGroup(g))
		}
		return groups, nil
	})
}

// StudentSummary is the grouped view restricted to one student.
func (s *EvaluationService) StudentSummary(ctx context.Context, studentID string) (*dto.StudentSummary, error) {
	groups, err := s.Grouped(ctx, models.EvaluationFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	return &dto.StudentSummary{StudentID: studentID, Groups: groups}, nil
}

// Delete removes an evaluation and recomputes the pair's snapshot on what remains.
func (s *EvaluationService) Delete(ctx context.Context, actor Actor, id int64) error {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return appErrors.Internal(err, "failed to load evaluation")
	}
	if actor.Role != models.RoleAdmin && rec.InstructorID != actor.ID {
		return appErrors.ErrNotCourseOwner
	}
	if err := s.repo.Delete(ctx, id, ComputeSnapshot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return appErrors.Internal(err, "failed to delete evaluation")
	}

	s.afterWrite(ctx, events.SubjectEvaluationDeleted, map[string]interface{}{
		"evaluation_id": id,
		"student_id":    rec.StudentID,
		"course_id":     rec.CourseID,
	})
	writeAudit(ctx, s.audit, s.logger, actor.Meta(), "evaluations", models.AuditActionEvaluationDelete, strconv.FormatInt(id, 10), map[string]interface{}{
		"evaluation_type": rec.EvaluationType,
		"score":           rec.Score,
	})
	return nil
}

// GradingScale describes component maxima and the band table.
func (s *EvaluationService) GradingScale() dto.GradingScale {
	components := make(map[string]float64, len(grading.EvaluationTypes))
	for _, t := range grading.EvaluationTypes {
		limit, _ := grading.ComponentMax(t)
		components[string(t)] = limit
	}
	return dto.GradingScale{Bands: grading.Bands(), Components: components, TotalMax: grading.TotalMax}
}

func (s *EvaluationService) afterWrite(ctx context.Context, subject string, payload interface{}) {
	_ = s.cache.Invalidate(ctx, evaluationCachePattern)
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		s.logger.Warn("publish evaluation event failed", zap.String("subject", subject), zap.Error(err))
	}
}

func decorateGroup(g *StudentCourseGroup) dto.EvaluationGroup {
	out := dto.EvaluationGroup{
		Key:         g.Key,
		StudentName: g.StudentName,
		CourseCode:  g.CourseCode,
		CourseTitle: g.CourseTitle,
		Breakdown:   g.Breakdown,
		Evaluations: g.AllEvaluations,
	}
	if out.Evaluations == nil {
		out.Evaluations = []models.EvaluationRecord{}
	}
	if latest := g.Latest(); latest != nil {
		l := *latest
		out.LatestEvaluation = &l
	}
	if g.CumulativeTotal != nil {
		total := g.CumulativeTotal.Float64()
		info := grading.Info(total)
		out.CumulativeTotal = &total
		out.CumulativeFormatted = grading.FormatScore(total)
		out.Grade = string(info.Grade)
		out.GradeInfo = &info
		out.GradeBgColor = grading.BgColor(out.Grade)
	}
	return out
}

func groupedCacheKey(filter models.EvaluationFilter) string {
	return fmt.Sprintf("evaluations:grouped:i=%s:s=%s:c=%s:t=%s",
		filter.InstructorID, filter.StudentID, filter.CourseID, filter.EvaluationType)
}
