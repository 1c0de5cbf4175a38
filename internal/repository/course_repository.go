package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
)

var courseColumns = []string{"id", "code", "title", "credit_hours", "department_id", "instructor_id", "created_at", "updated_at"}

// CourseRepository persists the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	where := sq.And{}
	if filter.DepartmentID != "" {
		where = append(where, sq.Eq{"department_id": filter.DepartmentID})
	}
	if filter.InstructorID != "" {
		where = append(where, sq.Eq{"instructor_id": filter.InstructorID})
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + s + "%"
		where = append(where, sq.Or{sq.ILike{"code": pattern}, sq.ILike{"title": pattern}})
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	list := psql.Select(courseColumns...).From("courses").OrderBy("code ASC").Limit(limit).Offset(offset)
	count := psql.Select("COUNT(*)").From("courses")
	if len(where) > 0 {
		list = list.Where(where)
		count = count.Where(where)
	}

	query, args, err := list.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list courses: %w", err)
	}
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	query, args, err = count.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count courses: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query, args, err := psql.Select(courseColumns...).From("courses").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find course: %w", err)
	}
	var c models.Course
	if err := r.db.GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &c, nil
}

func (r *CourseRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM courses WHERE UPPER(code) = UPPER($1) AND id::text <> $2)`
	if err := r.db.GetContext(ctx, &exists, query, code, excludeID); err != nil {
		return false, fmt.Errorf("check course code: %w", err)
	}
	return exists, nil
}

func (r *CourseRepository) Create(ctx context.Context, c *models.Course) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	const query = `INSERT INTO courses (id, code, title, credit_hours, department_id, instructor_id, created_at, updated_at)
VALUES (:id, :code, :title, :credit_hours, :department_id, :instructor_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

func (r *CourseRepository) Update(ctx context.Context, c *models.Course) error {
	c.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET code = :code, title = :title, credit_hours = :credit_hours, department_id = :department_id,
instructor_id = :instructor_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
