package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleStudent UserRole = "STUDENT"
)

// User represents an account stored in the users table. RemainingClasses
// is the seat quota: the number of enrollments the user may still hold.
type User struct {
	ID               string    `db:"id" json:"id"`
	Login            string    `db:"login" json:"login"`
	PasswordHash     string    `db:"password_hash" json:"-"`
	Role             UserRole  `db:"role" json:"role"`
	RemainingClasses int       `db:"remaining_classes" json:"remaining_classes"`
	Active           bool      `db:"active" json:"active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
