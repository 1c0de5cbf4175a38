package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
)

const departmentColumns = "id, code, name, head_user_id, created_at, updated_at"

// DepartmentRepository persists departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	var out []models.Department
	if err := r.db.SelectContext(ctx, &out, "SELECT "+departmentColumns+" FROM departments ORDER BY code"); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return out, nil
}

func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.Department, error) {
	var d models.Department
	if err := r.db.GetContext(ctx, &d, "SELECT "+departmentColumns+" FROM departments WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find department: %w", err)
	}
	return &d, nil
}

// ExistsByCode reports whether another department already uses code.
func (r *DepartmentRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM departments WHERE UPPER(code) = UPPER($1) AND id::text <> $2)`
	if err := r.db.GetContext(ctx, &exists, query, code, excludeID); err != nil {
		return false, fmt.Errorf("check department code: %w", err)
	}
	return exists, nil
}

func (r *DepartmentRepository) Create(ctx context.Context, d *models.Department) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	const query = `INSERT INTO departments (id, code, name, head_user_id, created_at, updated_at) VALUES (:id, :code, :name, :head_user_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, d); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

func (r *DepartmentRepository) Update(ctx context.Context, d *models.Department) error {
	d.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET code = :code, name = :name, head_user_id = :head_user_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, d); err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	return nil
}

func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
