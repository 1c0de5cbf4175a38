package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/grading"
)

var evaluationColumns = []string{
	"e.id", "e.student_id", "e.course_id", "e.instructor_id",
	"u.full_name AS student_name", "c.code AS course_code", "c.title AS course_title",
	"e.evaluation_type", "e.score", "e.grade", "e.comments", "e.cumulative_total", "e.breakdown", "e.created_at",
}

// SnapshotFunc derives the running total from the latest score of each component.
type SnapshotFunc func(latest map[grading.EvaluationType]float64) models.EvaluationSnapshot

// EvaluationRepository persists evaluation score events.
type EvaluationRepository struct {
	db *sqlx.DB
}

func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

func (r *EvaluationRepository) selectBase() sq.SelectBuilder {
	return psql.Select(evaluationColumns...).
		From("evaluations e").
		Join("users u ON u.id = e.student_id").
		Join("courses c ON c.id = e.course_id")
}

// List returns evaluations newest first.
func (r *EvaluationRepository) List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationRecord, error) {
	q := r.selectBase().OrderBy("e.created_at DESC", "e.id DESC")
	if filter.InstructorID != "" {
		q = q.Where(sq.Eq{"e.instructor_id": filter.InstructorID})
	}
	if filter.StudentID != "" {
		q = q.Where(sq.Eq{"e.student_id": filter.StudentID})
	}
	if filter.CourseID != "" {
		q = q.Where(sq.Eq{"e.course_id": filter.CourseID})
	}
	if filter.EvaluationType != "" {
		q = q.Where(sq.Eq{"e.evaluation_type": filter.EvaluationType})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list evaluations: %w", err)
	}
	records := make([]models.EvaluationRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return records, nil
}

func (r *EvaluationRepository) FindByID(ctx context.Context, id int64) (*models.EvaluationRecord, error) {
	query, args, err := r.selectBase().Where(sq.Eq{"e.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find evaluation: %w", err)
	}
	var rec models.EvaluationRecord
	if err := r.db.GetContext(ctx, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find evaluation: %w", err)
	}
	return &rec, nil
}

// Create inserts rec and writes the recomputed snapshot onto it, in one transaction.
// Submissions for the same (student, course) pair are serialised with an advisory lock.
func (r *EvaluationRepository) Create(ctx context.Context, rec *models.EvaluationRecord, snapshot SnapshotFunc) error {
	return r.inTx(ctx, "create evaluation", func(tx *sqlx.Tx) error {
		if err := lockPair(ctx, tx, rec.StudentID, rec.CourseID); err != nil {
			return err
		}
		const insert = `INSERT INTO evaluations (student_id, course_id, instructor_id, evaluation_type, score, grade, comments, created_at)
VALUES ($1, $2, $3, $4, $5, '', $6, $7) RETURNING id, created_at`
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		row := tx.QueryRowxContext(ctx, insert, rec.StudentID, rec.CourseID, rec.InstructorID, rec.EvaluationType, rec.Score, rec.Comments, rec.CreatedAt)
		if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
			return fmt.Errorf("insert evaluation: %w", err)
		}
		snap, err := r.applySnapshot(ctx, tx, rec.ID, rec.StudentID, rec.CourseID, snapshot)
		if err != nil {
			return err
		}
		total := grading.Score(snap.Total)
		breakdown := snap.Breakdown
		rec.CumulativeTotal = &total
		rec.Breakdown = &breakdown
		rec.Grade = snap.Grade
		return nil
	})
}

// Delete removes the evaluation and moves the recomputed snapshot onto the
// newest remaining row of the pair, if any.
func (r *EvaluationRepository) Delete(ctx context.Context, id int64, snapshot SnapshotFunc) error {
	return r.inTx(ctx, "delete evaluation", func(tx *sqlx.Tx) error {
		var pair struct {
			StudentID string `db:"student_id"`
			CourseID  string `db:"course_id"`
		}
		if err := tx.GetContext(ctx, &pair, `SELECT student_id, course_id FROM evaluations WHERE id = $1 FOR UPDATE`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("find evaluation: %w", err)
		}
		if err := lockPair(ctx, tx, pair.StudentID, pair.CourseID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM evaluations WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete evaluation: %w", err)
		}
		var latestID int64
		const latest = `SELECT id FROM evaluations WHERE student_id = $1 AND course_id = $2 ORDER BY created_at DESC, id DESC LIMIT 1`
		if err := tx.GetContext(ctx, &latestID, latest, pair.StudentID, pair.CourseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("find latest evaluation: %w", err)
		}
		_, err := r.applySnapshot(ctx, tx, latestID, pair.StudentID, pair.CourseID, snapshot)
		return err
	})
}

func (r *EvaluationRepository) applySnapshot(ctx context.Context, tx *sqlx.Tx, id int64, studentID, courseID string, snapshot SnapshotFunc) (models.EvaluationSnapshot, error) {
	const latest = `SELECT DISTINCT ON (evaluation_type) evaluation_type, score FROM evaluations
WHERE student_id = $1 AND course_id = $2 ORDER BY evaluation_type, created_at DESC, id DESC`
	rows, err := tx.QueryxContext(ctx, latest, studentID, courseID)
	if err != nil {
		return models.EvaluationSnapshot{}, fmt.Errorf("latest component scores: %w", err)
	}
	scores := make(map[grading.EvaluationType]float64, len(grading.EvaluationTypes))
	for rows.Next() {
		var (
			typ   grading.EvaluationType
			score grading.Score
		)
		if err := rows.Scan(&typ, &score); err != nil {
			rows.Close() //nolint:errcheck
			return models.EvaluationSnapshot{}, fmt.Errorf("scan component score: %w", err)
		}
		scores[typ] = score.Float64()
	}
	if err := rows.Err(); err != nil {
		rows.Close() //nolint:errcheck
		return models.EvaluationSnapshot{}, fmt.Errorf("iterate component scores: %w", err)
	}
	if err := rows.Close(); err != nil {
		return models.EvaluationSnapshot{}, fmt.Errorf("close component scores: %w", err)
	}

	snap := snapshot(scores)
	const update = `UPDATE evaluations SET cumulative_total = $2, breakdown = $3, grade = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, id, snap.Total, snap.Breakdown, snap.Grade); err != nil {
		return models.EvaluationSnapshot{}, fmt.Errorf("update evaluation snapshot: %w", err)
	}
	return snap, nil
}

func lockPair(ctx context.Context, tx *sqlx.Tx, studentID, courseID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, studentID+"|"+courseID); err != nil {
		return fmt.Errorf("lock evaluation pair: %w", err)
	}
	return nil
}

func (r *EvaluationRepository) inTx(ctx context.Context, label string, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", label, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", label, err)
	}
	return nil
}
