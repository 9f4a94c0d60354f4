package models

import "time"

// Course represents a taught course, optionally bound to a staff member
// and optionally scheduled at a (day, time) slot.
type Course struct {
	ID                string    `db:"id" json:"id"`
	Code              string    `db:"code" json:"code"`
	Name              string    `db:"name" json:"name"`
	Credits           int       `db:"credits" json:"credits"`
	DepartmentID      string    `db:"department_id" json:"department_id"`
	TeachingStaffID   *string   `db:"teaching_staff_id" json:"teaching_staff_id,omitempty"`
	ScheduleDay       *string   `db:"schedule_day" json:"schedule_day,omitempty"`
	ScheduleTime      *string   `db:"schedule_time" json:"schedule_time,omitempty"`
	Room              *string   `db:"room" json:"room,omitempty"`
	Capacity          int       `db:"capacity" json:"capacity"`
	CurrentEnrollment int       `db:"current_enrollment" json:"current_enrollment"`
	Semester          *string   `db:"semester" json:"semester,omitempty"`
	Version           int64     `db:"version" json:"version"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Scheduled reports whether the course has a complete (day, time) slot.
// A course missing either component never participates in conflicts.
func (c *Course) Scheduled() bool {
	return c.ScheduleDay != nil && *c.ScheduleDay != "" &&
		c.ScheduleTime != nil && *c.ScheduleTime != ""
}

// CourseFilter captures filtering options for listing courses.
type CourseFilter struct {
	DepartmentID    string
	TeachingStaffID string
	Unassigned      bool
	Semester        string
	Page            int
	PageSize        int
}

// SlotQuery selects courses occupying a staff member's (day, time) slot,
// optionally excluding one course.
type SlotQuery struct {
	TeachingStaffID string
	Day             string
	TimeSlot        string
	ExcludeCourseID string
}

// SlotConflict identifies a course colliding with a prospective binding.
type SlotConflict struct {
	CourseID   string `json:"course_id"`
	CourseCode string `json:"course_code"`
	CourseName string `json:"course_name"`
	Day        string `json:"day"`
	TimeSlot   string `json:"time_slot"`
}

// SlotConflictError is returned when a binding would double-book a staff
// member at the same slot.
type SlotConflictError struct {
	Message   string         `json:"message"`
	Conflicts []SlotConflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *SlotConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
