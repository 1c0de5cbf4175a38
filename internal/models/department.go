package models

import "time"

// Department groups courses and staff under an academic unit.
type Department struct {
	ID         string    `db:"id" json:"id"`
	Code       string    `db:"code" json:"code"`
	Name       string    `db:"name" json:"name"`
	HeadUserID *string   `db:"head_user_id" json:"head_user_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentRequest is used for both create and update.
type DepartmentRequest struct {
	Code       string  `json:"code" validate:"required,max=16"`
	Name       string  `json:"name" validate:"required,max=120"`
	HeadUserID *string `json:"head_user_id" validate:"omitempty,uuid"`
}
