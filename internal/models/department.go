package models

import "time"

// Department represents an academic department.
type Department struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Chair     string    `db:"chair" json:"chair"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentDependencies counts records that block department deletion.
type DepartmentDependencies struct {
	StaffCount  int `db:"staff_count" json:"staff_count"`
	CourseCount int `db:"course_count" json:"course_count"`
}

// Empty reports whether the department has no dependent records.
func (d DepartmentDependencies) Empty() bool {
	return d.StaffCount == 0 && d.CourseCount == 0
}
