package models

import "time"

// TeachingStaff represents an instructor belonging to a department.
type TeachingStaff struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	DepartmentID   string    `db:"department_id" json:"department_id"`
	Specialization string    `db:"specialization" json:"specialization"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// StaffFilter captures filtering options for listing teaching staff.
type StaffFilter struct {
	DepartmentID string
	Search       string
	Page         int
	PageSize     int
}
