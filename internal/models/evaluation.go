package models

import (
	"time"

	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/grading"
)

// EvaluationRecord is one instructor-submitted score for one component of a
// student's course. Name and course columns are joined in on read.
type EvaluationRecord struct {
	ID              int64                  `db:"id" json:"id"`
	StudentID       string                 `db:"student_id" json:"student_id"`
	CourseID        string                 `db:"course_id" json:"course_id"`
	InstructorID    string                 `db:"instructor_id" json:"instructor_id"`
	StudentName     string                 `db:"student_name" json:"student_name"`
	CourseCode      string                 `db:"course_code" json:"course_code"`
	CourseTitle     string                 `db:"course_title" json:"course_title"`
	EvaluationType  grading.EvaluationType `db:"evaluation_type" json:"evaluation_type"`
	Score           grading.Score          `db:"score" json:"score"`
	Grade           string                 `db:"grade" json:"grade"`
	Comments        *string                `db:"comments" json:"comments,omitempty"`
	CumulativeTotal *grading.Score         `db:"cumulative_total" json:"cumulative_total,omitempty"`
	Breakdown       *grading.Breakdown     `db:"breakdown" json:"breakdown,omitempty"`
	CreatedAt       time.Time              `db:"created_at" json:"created_at"`
}

// GroupKey identifies the (student, course) pair the record belongs to.
func (r EvaluationRecord) GroupKey() string {
	return r.StudentName + "|" + r.CourseCode
}

// EvaluationFilter narrows evaluation listings.
type EvaluationFilter struct {
	InstructorID   string
	StudentID      string
	CourseID       string
	EvaluationType grading.EvaluationType
}

// SubmitEvaluationRequest is posted by instructors for a single component score.
type SubmitEvaluationRequest struct {
	StudentID      string                 `json:"student_id" validate:"required,uuid"`
	CourseID       string                 `json:"course_id" validate:"required,uuid"`
	EvaluationType grading.EvaluationType `json:"evaluation_type" validate:"required,oneof=mid_exam final_exam project quiz"`
	Score          *grading.Score         `json:"score" validate:"required,gte=0"`
	Comments       *string                `json:"comments" validate:"omitempty,max=1000"`
}

// EvaluationSnapshot is the running total written onto the latest row of a (student, course) pair.
type EvaluationSnapshot struct {
	Breakdown grading.Breakdown
	Total     float64
	Grade     string
}
