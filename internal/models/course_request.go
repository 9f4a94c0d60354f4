package models

import "time"

// RequestStatus enumerates the course request state machine.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// Terminal reports whether the status admits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// CourseRequest is a staff member's proposal to take over an unassigned
// course. DepartmentID and StaffName are snapshots taken at submission
// and do not track later edits to the staff record.
type CourseRequest struct {
	ID              string        `db:"id" json:"id"`
	CourseID        string        `db:"course_id" json:"course_id"`
	TeachingStaffID string        `db:"teaching_staff_id" json:"teaching_staff_id"`
	DepartmentID    string        `db:"department_id" json:"department_id"`
	StaffName       string        `db:"staff_name" json:"staff_name"`
	Note            *string       `db:"note" json:"note,omitempty"`
	Status          RequestStatus `db:"status" json:"status"`
	DecisionNote    *string       `db:"decision_note" json:"decision_note,omitempty"`
	DecidedBy       *string       `db:"decided_by" json:"decided_by,omitempty"`
	RequestedAt     time.Time     `db:"requested_at" json:"requested_at"`
	DecidedAt       *time.Time    `db:"decided_at" json:"decided_at,omitempty"`
}

// RequestFilter captures filtering options for listing course requests.
type RequestFilter struct {
	CourseID        string
	TeachingStaffID string
	DepartmentID    string
	Status          RequestStatus
}
