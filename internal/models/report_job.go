package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportType names what a report job renders.
type ReportType string

const ReportTypeEvaluations ReportType = "evaluations"

// ReportStatus is a report job's lifecycle state. Jobs move
// QUEUED -> PROCESSING -> FINISHED | FAILED and a failed attempt may return to QUEUED.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// Terminal is true once the job will not run again.
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusFinished || s == ReportStatusFailed
}

// ReportJob is a row of report_jobs.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultPath   *string         `db:"result_path" json:"-"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// Downloadable reports whether a finished file is on record.
func (j *ReportJob) Downloadable() bool {
	return j.Status == ReportStatusFinished && j.ResultPath != nil && *j.ResultPath != ""
}

// ReportJobParams lives in a JSONB column.
type ReportJobParams struct {
	CourseID string `json:"course_id"`
	Format   string `json:"format"`
}

var _ driver.Valuer = ReportJobParams{}

func (p ReportJobParams) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *ReportJobParams) Scan(src interface{}) error {
	*p = ReportJobParams{}
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("report params: cannot scan %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return fmt.Errorf("report params: %w", err)
	}
	return nil
}

// EvaluationReportRequest asks for a grade sheet of one course.
type EvaluationReportRequest struct {
	CourseID string `json:"course_id" validate:"required,uuid"`
	Format   string `json:"format" validate:"omitempty,oneof=csv pdf CSV PDF"`
}
