package grading

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// EvaluationType identifies a weighted grading component.
type EvaluationType string

const (
	MidExam   EvaluationType = "mid_exam"
	FinalExam EvaluationType = "final_exam"
	Project   EvaluationType = "project"
	Quiz      EvaluationType = "quiz"
)

// Maximum contribution of each component to the cumulative total.
const (
	MidExamMax   = 30.0
	FinalExamMax = 50.0
	ProjectMax   = 15.0
	QuizMax      = 5.0
	TotalMax     = MidExamMax + FinalExamMax + ProjectMax + QuizMax
)

// EvaluationTypes lists the components in display order.
var EvaluationTypes = []EvaluationType{MidExam, FinalExam, Project, Quiz}

// ComponentMax returns the maximum contribution of t.
func ComponentMax(t EvaluationType) (float64, bool) {
	switch t {
	case MidExam:
		return MidExamMax, true
	case FinalExam:
		return FinalExamMax, true
	case Project:
		return ProjectMax, true
	case Quiz:
		return QuizMax, true
	default:
		return 0, false
	}
}

// Valid reports whether t is a known component.
func (t EvaluationType) Valid() bool {
	_, ok := ComponentMax(t)
	return ok
}

// Label is the human readable component name.
func (t EvaluationType) Label() string {
	switch t {
	case MidExam:
		return "Mid Exam"
	case FinalExam:
		return "Final Exam"
	case Project:
		return "Project"
	case Quiz:
		return "Quiz"
	default:
		return string(t)
	}
}

// Breakdown holds per-component contributions, each already on its component max.
type Breakdown struct {
	MidExam   float64 `json:"mid_exam"`
	FinalExam float64 `json:"final_exam"`
	Project   float64 `json:"project"`
	Quiz      float64 `json:"quiz"`
}

// Total sums the component contributions.
func (b Breakdown) Total() float64 {
	return Round2(b.MidExam + b.FinalExam + b.Project + b.Quiz)
}

// Get returns the contribution recorded for t.
func (b Breakdown) Get(t EvaluationType) float64 {
	switch t {
	case MidExam:
		return b.MidExam
	case FinalExam:
		return b.FinalExam
	case Project:
		return b.Project
	case Quiz:
		return b.Quiz
	}
	return 0
}

// Set records the contribution for t, ignoring unknown components.
func (b *Breakdown) Set(t EvaluationType, v float64) {
	switch t {
	case MidExam:
		b.MidExam = v
	case FinalExam:
		b.FinalExam = v
	case Project:
		b.Project = v
	case Quiz:
		b.Quiz = v
	}
}

// Scan implements sql.Scanner for JSONB columns.
func (b *Breakdown) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("grading: cannot scan %T into Breakdown", src)
	}
	return json.Unmarshal(raw, b)
}

// Value implements driver.Valuer.
func (b Breakdown) Value() (driver.Value, error) {
	return json.Marshal(b)
}
