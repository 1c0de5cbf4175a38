package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/dto"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/middleware"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/service"
	appErrors "github.com/Abdulhakimkamal/otpas-hu-api/pkg/errors"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/grading"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/response"
)

type evaluationService interface {
	Submit(ctx context.Context, actor service.Actor, req models.SubmitEvaluationRequest) (*models.EvaluationRecord, error)
	List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationRecord, error)
	GroupedView(ctx context.Context, filter models.EvaluationFilter) ([]dto.EvaluationGroup, bool, error)
	StudentSummary(ctx context.Context, studentID string) (*dto.StudentSummary, error)
	Delete(ctx context.Context, actor service.Actor, id int64) error
	GradingScale() dto.GradingScale
}

// EvaluationHandler serves instructor and student evaluation endpoints.
type EvaluationHandler struct {
	service evaluationService
}

func NewEvaluationHandler(svc evaluationService) *EvaluationHandler {
	return &EvaluationHandler{service: svc}
}

// filterFor scopes instructors to their own submissions.
func filterFor(c *gin.Context, actor service.Actor) models.EvaluationFilter {
	filter := models.EvaluationFilter{
		StudentID:      c.Query("student_id"),
		CourseID:       c.Query("course_id"),
		EvaluationType: grading.EvaluationType(c.Query("evaluation_type")),
	}
	if actor.Role == models.RoleInstructor {
		filter.InstructorID = actor.ID
	} else {
		filter.InstructorID = c.Query("instructor_id")
	}
	return filter
}

// Submit godoc
// @Summary Submit evaluation
// @Description Record one component score and recompute the cumulative grade
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param payload body models.SubmitEvaluationRequest true "Evaluation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /instructor/evaluations [post]
func (h *EvaluationHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.SubmitEvaluationRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := h.service.Submit(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rec)
}

// List godoc
// @Summary List evaluations
// @Tags Evaluations
// @Produce json
// @Param course_id query string false "Course filter"
// @Param student_id query string false "Student filter"
// @Param evaluation_type query string false "Component filter"
// @Success 200 {object} response.Envelope
// @Router /instructor/evaluations [get]
func (h *EvaluationHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	records, err := h.service.List(c.Request.Context(), filterFor(c, actor))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}

// Grouped godoc
// @Summary Grouped evaluations
// @Description Deduplicated evaluations grouped by student and course with grade info
// @Tags Evaluations
// @Produce json
// @Param course_id query string false "Course filter"
// @Param student_id query string false "Student filter"
// @Success 200 {object} response.Envelope
// @Router /instructor/evaluations/grouped [get]
func (h *EvaluationHandler) Grouped(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	groups, hit, err := h.service.GroupedView(c.Request.Context(), filterFor(c, actor))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, groups, nil, middleware.ResponseMeta(c))
}

// Delete godoc
// @Summary Delete evaluation
// @Tags Evaluations
// @Param id path int true "Evaluation ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /instructor/evaluations/{id} [delete]
func (h *EvaluationHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid evaluation id"))
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Mine godoc
// @Summary My evaluations
// @Description The authenticated student's grouped evaluations
// @Tags Evaluations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student/evaluations [get]
func (h *EvaluationHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.service.StudentSummary(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// Bands godoc
// @Summary Grading scale
// @Description Grade bands and component maxima
// @Tags Grading
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grading/bands [get]
func (h *EvaluationHandler) Bands(c *gin.Context) {
	response.OK(c, h.service.GradingScale())
}
