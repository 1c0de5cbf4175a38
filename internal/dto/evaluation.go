package dto

import (
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/grading"
)

// EvaluationGroup is the grouped view of one student's evaluations in one course.
type EvaluationGroup struct {
	Key                 string                    `json:"key"`
	StudentName         string                    `json:"student_name"`
	CourseCode          string                    `json:"course_code"`
	CourseTitle         string                    `json:"course_title"`
	CumulativeTotal     *float64                  `json:"cumulative_total,omitempty"`
	CumulativeFormatted string                    `json:"cumulative_total_formatted,omitempty"`
	Breakdown           *grading.Breakdown        `json:"breakdown,omitempty"`
	Grade               string                    `json:"grade,omitempty"`
	GradeInfo           *grading.GradeInfo        `json:"grade_info,omitempty"`
	GradeBgColor        string                    `json:"grade_bg_color,omitempty"`
	LatestEvaluation    *models.EvaluationRecord  `json:"latest_evaluation,omitempty"`
	Evaluations         []models.EvaluationRecord `json:"all_evaluations"`
}

// StudentSummary is the student's own grouped view across courses.
type StudentSummary struct {
	StudentID string            `json:"student_id"`
	Groups    []EvaluationGroup `json:"groups"`
}

// GradingScale describes component maxima alongside the band table.
type GradingScale struct {
	Bands      []grading.Band     `json:"bands"`
	Components map[string]float64 `json:"components"`
	TotalMax   float64            `json:"total_max"`
}
