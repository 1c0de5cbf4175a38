package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/grading"
)

var evaluationRowColumns = []string{"id", "student_id", "course_id", "instructor_id", "student_name", "course_code", "course_title",
	"evaluation_type", "score", "grade", "comments", "cumulative_total", "breakdown", "created_at"}

func sumSnapshot(latest map[grading.EvaluationType]float64) models.EvaluationSnapshot {
	var b grading.Breakdown
	for typ, v := range latest {
		b.Set(typ, v)
	}
	return models.EvaluationSnapshot{Breakdown: b, Total: b.Total(), Grade: string(grading.CalculateGrade(b.Total()))}
}

func TestEvaluationListScansNumericText(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(evaluationRowColumns).
		AddRow(2, "s1", "c1", "i1", "Abebe", "CS101", "Intro", "quiz", []byte("4.50"), "C", nil, []byte("72.00"), []byte(`{"mid_exam":20,"final_exam":40,"project":10,"quiz":2}`), now).
		AddRow(1, "s1", "c1", "i1", "Abebe", "CS101", "Intro", "mid_exam", "20", "", nil, nil, nil, now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM evaluations e JOIN users u ON u.id = e.student_id JOIN courses c ON c.id = e.course_id WHERE e.instructor_id = $1 AND e.course_id = $2 ORDER BY e.created_at DESC, e.id DESC")).
		WithArgs("i1", "c1").
		WillReturnRows(rows)

	records, err := repo.List(context.Background(), models.EvaluationFilter{InstructorID: "i1", CourseID: "c1"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 4.5, records[0].Score.Float64())
	require.NotNil(t, records[0].CumulativeTotal)
	assert.Equal(t, 72.0, records[0].CumulativeTotal.Float64())
	assert.Equal(t, 20.0, records[0].Breakdown.MidExam)
	assert.Nil(t, records[1].CumulativeTotal)
	assert.Nil(t, records[1].Breakdown)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationCreateRecomputesSnapshot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).WithArgs("s1|c1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO evaluations").
		WithArgs("s1", "c1", "i1", "quiz", 4.0, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(9, now))
	mock.ExpectQuery("SELECT DISTINCT ON \\(evaluation_type\\)").
		WithArgs("s1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"evaluation_type", "score"}).
			AddRow("final_exam", []byte("45")).
			AddRow("mid_exam", []byte("27.5")).
			AddRow("quiz", []byte("4")))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE evaluations SET cumulative_total = $2, breakdown = $3, grade = $4 WHERE id = $1")).
		WithArgs(int64(9), 76.5, sqlmock.AnyArg(), "C").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := &models.EvaluationRecord{StudentID: "s1", CourseID: "c1", InstructorID: "i1", EvaluationType: grading.Quiz, Score: 4}
	require.NoError(t, repo.Create(context.Background(), rec, sumSnapshot))
	assert.Equal(t, int64(9), rec.ID)
	assert.Equal(t, 76.5, rec.CumulativeTotal.Float64())
	assert.Equal(t, grading.Breakdown{MidExam: 27.5, FinalExam: 45, Quiz: 4}, *rec.Breakdown)
	assert.Equal(t, "C", rec.Grade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationCreateRollsBackOnInterruptedScores(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("s1|c1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO evaluations").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(9, time.Now().UTC()))
	mock.ExpectQuery("SELECT DISTINCT ON \\(evaluation_type\\)").
		WithArgs("s1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"evaluation_type", "score"}).
			AddRow("final_exam", []byte("45")).
			AddRow("mid_exam", []byte("27.5")).
			AddRow("quiz", []byte("4")).
			RowError(1, sql.ErrConnDone))
	mock.ExpectRollback()

	rec := &models.EvaluationRecord{StudentID: "s1", CourseID: "c1", InstructorID: "i1", EvaluationType: grading.Quiz, Score: 4}
	err := repo.Create(context.Background(), rec, sumSnapshot)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Nil(t, rec.CumulativeTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationCreateRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO evaluations").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.EvaluationRecord{StudentID: "s1", CourseID: "c1"}, sumSnapshot)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationDeleteLastRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id, course_id FROM evaluations WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "course_id"}).AddRow("s1", "c1"))
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("s1|c1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM evaluations WHERE id = $1")).WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id FROM evaluations").WithArgs("s1", "c1").WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), 3, sumSnapshot))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationDeleteLocksBeforeRemoving(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id, course_id FROM evaluations WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "course_id"}).AddRow("s1", "c1"))
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("s1|c1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM evaluations WHERE id = $1")).WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id FROM evaluations").WithArgs("s1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectQuery("SELECT DISTINCT ON \\(evaluation_type\\)").
		WithArgs("s1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"evaluation_type", "score"}).AddRow("mid_exam", []byte("20")))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE evaluations SET cumulative_total = $2, breakdown = $3, grade = $4 WHERE id = $1")).
		WithArgs(int64(2), 20.0, sqlmock.AnyArg(), "F").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), 4, sumSnapshot))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(5)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 5, sumSnapshot)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
