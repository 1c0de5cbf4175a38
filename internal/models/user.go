package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin          UserRole = "ADMIN"
	RoleDepartmentHead UserRole = "DEPARTMENT_HEAD"
	RoleInstructor     UserRole = "INSTRUCTOR"
	RoleStudent        UserRole = "STUDENT"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleDepartmentHead, RoleInstructor, RoleStudent:
		return true
	}
	return false
}

// IsStaff is true for every role allowed to author content.
func (r UserRole) IsStaff() bool {
	return r == RoleAdmin || r == RoleDepartmentHead || r == RoleInstructor
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role         *UserRole
	DepartmentID *string
	Active       *bool
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// CreateUserRequest is the admin payload for new accounts.
type CreateUserRequest struct {
	Email        string   `json:"email" validate:"required,email"`
	Password     string   `json:"password" validate:"required,min=8"`
	FullName     string   `json:"full_name" validate:"required,max=120"`
	Role         UserRole `json:"role" validate:"required,oneof=ADMIN DEPARTMENT_HEAD INSTRUCTOR STUDENT"`
	DepartmentID *string  `json:"department_id" validate:"omitempty,uuid"`
}

// UpdateUserRequest carries optional field changes.
type UpdateUserRequest struct {
	FullName     *string   `json:"full_name" validate:"omitempty,max=120"`
	Role         *UserRole `json:"role" validate:"omitempty,oneof=ADMIN DEPARTMENT_HEAD INSTRUCTOR STUDENT"`
	DepartmentID *string   `json:"department_id" validate:"omitempty,uuid"`
	Active       *bool     `json:"active"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
