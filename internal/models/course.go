package models

import "time"

// Course is a catalog entry taught by at most one instructor.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Title        string    `db:"title" json:"title"`
	CreditHours  int       `db:"credit_hours" json:"credit_hours"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	InstructorID *string   `db:"instructor_id" json:"instructor_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	DepartmentID string
	InstructorID string
	Search       string
	Page         int
	PageSize     int
}

// CourseRequest is used for both create and update.
type CourseRequest struct {
	Code         string  `json:"code" validate:"required,max=16"`
	Title        string  `json:"title" validate:"required,max=160"`
	CreditHours  int     `json:"credit_hours" validate:"required,min=1,max=12"`
	DepartmentID string  `json:"department_id" validate:"required,uuid"`
	InstructorID *string `json:"instructor_id" validate:"omitempty,uuid"`
}
