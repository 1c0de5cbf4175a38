package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
)

var announcementColumns = []string{"id", "title", "content", "audience", "priority", "is_pinned", "published_at", "expires_at", "created_by", "created_at", "updated_at"}

// priorityRank orders HIGH before NORMAL before LOW.
const priorityRank = "CASE priority WHEN 'HIGH' THEN 3 WHEN 'NORMAL' THEN 2 ELSE 1 END DESC"

// AnnouncementRepository provides persistence for announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// List returns published, unexpired announcements for the given audiences:
// pinned first, then by priority, then newest.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	audiences := make([]string, 0, len(filter.Audiences))
	for _, a := range filter.Audiences {
		audiences = append(audiences, string(a))
	}
	where := sq.And{
		sq.LtOrEq{"published_at": now},
		sq.Or{sq.Eq{"expires_at": nil}, sq.Gt{"expires_at": now}},
		sq.Expr("audience = ANY(?)", pq.Array(audiences)),
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query, args, err := psql.Select(announcementColumns...).From("announcements").Where(where).
		OrderBy("is_pinned DESC", priorityRank, "published_at DESC").
		Limit(limit).Offset(offset).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list announcements: %w", err)
	}
	var items []models.Announcement
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}

	query, args, err = psql.Select("COUNT(*)").From("announcements").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count announcements: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}
	return items, total, nil
}

func (r *AnnouncementRepository) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	query, args, err := psql.Select(announcementColumns...).From("announcements").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find announcement: %w", err)
	}
	var a models.Announcement
	if err := r.db.GetContext(ctx, &a, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find announcement: %w", err)
	}
	return &a, nil
}

func (r *AnnouncementRepository) Create(ctx context.Context, a *models.Announcement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.PublishedAt.IsZero() {
		a.PublishedAt = now
	}
	a.CreatedAt, a.UpdatedAt = now, now
	const query = `INSERT INTO announcements (id, title, content, audience, priority, is_pinned, published_at, expires_at, created_by, created_at, updated_at)
VALUES (:id, :title, :content, :audience, :priority, :is_pinned, :published_at, :expires_at, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM announcements WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	return nil
}
