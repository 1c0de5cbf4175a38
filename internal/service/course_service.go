package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	appErrors "github.com/Abdulhakimkamal/otpas-hu-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, c *models.Course) error
	Update(ctx context.Context, c *models.Course) error
	Delete(ctx context.Context, id string) error
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CourseService manages the course catalog and instructor assignment.
type CourseService struct {
	repo        courseRepository
	departments departmentLookup
	users       userFinder
	validator   *validator.Validate
	logger      *zap.Logger
}

func NewCourseService(repo courseRepository, departments departmentLookup, users userFinder, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{repo: repo, departments: departments, users: users, validator: validate, logger: logger}
}

func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list courses")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	return c, nil
}

func (s *CourseService) Create(ctx context.Context, req models.CourseRequest) (*models.Course, error) {
	c := &models.Course{}
	if err := s.apply(ctx, c, req, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, appErrors.Internal(err, "failed to create course")
	}
	return c, nil
}

func (s *CourseService) Update(ctx context.Context, id string, req models.CourseRequest) (*models.Course, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, c, req, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, appErrors.Internal(err, "failed to update course")
	}
	return c, nil
}

func (s *CourseService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Internal(err, "failed to delete course")
	}
	return nil
}

func (s *CourseService) apply(ctx context.Context, c *models.Course, req models.CourseRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid course payload")
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check course code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	}
	if _, err := s.departments.FindByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "department does not exist")
		}
		return appErrors.Internal(err, "failed to load department")
	}
	if req.InstructorID != nil {
		u, err := s.users.FindByID(ctx, *req.InstructorID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "instructor does not exist")
			}
			return appErrors.Internal(err, "failed to load instructor")
		}
		if u.Role != models.RoleInstructor && u.Role != models.RoleDepartmentHead {
			return appErrors.Clone(appErrors.ErrValidation, "assigned user cannot teach courses")
		}
	}

	c.Code = code
	c.Title = strings.TrimSpace(req.Title)
	c.CreditHours = req.CreditHours
	c.DepartmentID = req.DepartmentID
	c.InstructorID = req.InstructorID
	return nil
}
