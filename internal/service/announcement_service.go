package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	appErrors "github.com/Abdulhakimkamal/otpas-hu-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	FindByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

// AnnouncementService handles announcement workflows.
type AnnouncementService struct {
	repo      announcementRepository
	policy    *bluemonday.Policy
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{
		repo:      repo,
		policy:    bluemonday.UGCPolicy(),
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns announcements visible to role.
func (s *AnnouncementService) List(ctx context.Context, role models.UserRole, page, pageSize int) ([]models.Announcement, *models.Pagination, error) {
	filter := models.AnnouncementFilter{
		Audiences: models.AudiencesFor(role),
		Now:       s.now(),
		Page:      page,
		PageSize:  pageSize,
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list announcements")
	}
	return rows, paginate(page, pageSize, total), nil
}

// Create sanitises content and stores the announcement.
func (s *AnnouncementService) Create(ctx context.Context, actor Actor, req models.CreateAnnouncementRequest) (*models.Announcement, error) {
	if !actor.Role.IsStaff() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid announcement payload")
	}
	now := s.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expires_at must be in the future")
	}
	content := strings.TrimSpace(s.policy.Sanitize(req.Content))
	if content == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content is empty after sanitising")
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	announcement := &models.Announcement{
		Title:       strings.TrimSpace(s.policy.Sanitize(req.Title)),
		Content:     content,
		Audience:    req.Audience,
		Priority:    priority,
		IsPinned:    req.IsPinned,
		PublishedAt: now,
		ExpiresAt:   req.ExpiresAt,
		CreatedBy:   actor.ID,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Internal(err, "failed to create announcement")
	}
	s.logger.Info("announcement published", zap.String("id", announcement.ID), zap.String("audience", string(announcement.Audience)))
	return announcement, nil
}

// Delete removes an announcement. Only its author or an admin may do so.
func (s *AnnouncementService) Delete(ctx context.Context, actor Actor, id string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Internal(err, "failed to load announcement")
	}
	if actor.Role != models.RoleAdmin && existing.CreatedBy != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the author can delete this announcement")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete announcement")
	}
	return nil
}
