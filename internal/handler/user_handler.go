package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/service"
	appErrors "github.com/Abdulhakimkamal/otpas-hu-api/pkg/errors"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/response"
)

type userService interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, req models.CreateUserRequest, meta service.RequestMeta) (*models.User, error)
	Update(ctx context.Context, id string, req models.UpdateUserRequest, meta service.RequestMeta) (*models.User, error)
	Delete(ctx context.Context, id string, meta service.RequestMeta) error
}

// UserHandler exposes account administration.
type UserHandler struct {
	users userService
}

func NewUserHandler(users userService) *UserHandler {
	return &UserHandler{users: users}
}

type userQuery struct {
	Page         int    `form:"page"`
	PageSize     int    `form:"page_size"`
	Role         string `form:"role" binding:"omitempty,oneof=ADMIN DEPARTMENT_HEAD INSTRUCTOR STUDENT"`
	DepartmentID string `form:"department_id"`
	Active       *bool  `form:"active"`
	Search       string `form:"search"`
	SortBy       string `form:"sort_by" binding:"omitempty,oneof=email full_name created_at updated_at"`
	SortOrder    string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

func (q userQuery) filter() models.UserFilter {
	f := models.UserFilter{
		Active:    q.Active,
		Search:    q.Search,
		Page:      q.Page,
		PageSize:  q.PageSize,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
	if q.Role != "" {
		role := models.UserRole(q.Role)
		f.Role = &role
	}
	if q.DepartmentID != "" {
		f.DepartmentID = &q.DepartmentID
	}
	return f
}

// List godoc
// @Summary Search accounts
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page, 1-based"
// @Param page_size query int false "Rows per page"
// @Param role query string false "ADMIN, DEPARTMENT_HEAD, INSTRUCTOR or STUDENT"
// @Param department_id query string false "Department"
// @Param active query bool false "Only active or inactive accounts"
// @Param search query string false "Matches email or full name"
// @Param sort_by query string false "email, full_name, created_at or updated_at"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var q userQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid user query"))
		return
	}
	users, page, err := h.users.List(c.Request.Context(), q.filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, page)
}

// Get godoc
// @Summary Account detail
// @Description Admins may read any account; everyone else only their own.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// Create godoc
// @Summary Open an account
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateUserRequest true "Account"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var body models.CreateUserRequest
	if !bindJSON(c, &body) {
		return
	}
	user, err := h.users.Create(c.Request.Context(), body, actor.Meta())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Update godoc
// @Summary Change an account
// @Description Omitted fields are left untouched.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account id"
// @Param payload body models.UpdateUserRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var body models.UpdateUserRequest
	if !bindJSON(c, &body) {
		return
	}
	user, err := h.users.Update(c.Request.Context(), c.Param("id"), body, actor.Meta())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// Delete godoc
// @Summary Deactivate an account
// @Tags Users
// @Security BearerAuth
// @Param id path string true "Account id"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), c.Param("id"), actor.Meta()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
