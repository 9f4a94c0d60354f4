package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-dept-api/internal/models"
)

const requestColumns = `id, course_id, teaching_staff_id, department_id, staff_name, note, status, decision_note, decided_by, requested_at, decided_at`

// RequestRepository persists course requests and owns the transactional
// approve commit that binds the course and flips the request together.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs a RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, request *models.CourseRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.RequestStatusPending
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO course_requests (id, course_id, teaching_staff_id, department_id, staff_name, note, status, decision_note, decided_by, requested_at, decided_at)
		VALUES (:id, :course_id, :teaching_staff_id, :department_id, :staff_name, :note, :status, :decision_note, :decided_by, :requested_at, :decided_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create course request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.CourseRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM course_requests WHERE id = $1", requestColumns)
	var request models.CourseRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter, newest first.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.CourseRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM course_requests WHERE 1=1", requestColumns)
	var args []interface{}

	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		query += fmt.Sprintf(" AND course_id = $%d", len(args))
	}
	if filter.TeachingStaffID != "" {
		args = append(args, filter.TeachingStaffID)
		query += fmt.Sprintf(" AND teaching_staff_id = $%d", len(args))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		query += fmt.Sprintf(" AND department_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY requested_at DESC"

	var requests []models.CourseRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list course requests: %w", err)
	}
	return requests, nil
}

// ExistsPending checks for an open request on the (course, staff) pair.
func (r *RequestRepository) ExistsPending(ctx context.Context, courseID, staffID string) (bool, error) {
	const query = `SELECT 1 FROM course_requests WHERE course_id = $1 AND teaching_staff_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, courseID, staffID, models.RequestStatusPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending course request: %w", err)
	}
	return true, nil
}

// CountPendingByCourse counts open requests referencing the course.
func (r *RequestRepository) CountPendingByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM course_requests WHERE course_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID, models.RequestStatusPending); err != nil {
		return 0, fmt.Errorf("count pending course requests: %w", err)
	}
	return count, nil
}

// Reject flips a pending request to rejected. ErrRequestNotPending
// signals the request already left the pending state.
func (r *RequestRepository) Reject(ctx context.Context, requestID string, note *string, decidedBy *string) error {
	const query = `UPDATE course_requests SET status = $2, decision_note = $3, decided_by = $4, decided_at = $5 WHERE id = $1 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, requestID, models.RequestStatusRejected, note, decidedBy, time.Now().UTC(), models.RequestStatusPending)
	if err != nil {
		return fmt.Errorf("reject course request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rejected request rows: %w", err)
	}
	if affected == 0 {
		return ErrRequestNotPending
	}
	return nil
}

// ApproveParams carries the two-row approve commit.
type ApproveParams struct {
	RequestID       string
	CourseID        string
	TeachingStaffID string
	Day             string
	TimeSlot        string
	Note            *string
	DecidedBy       *string
}

// Approve commits the approval as one transaction: the course is bound
// only while still unassigned (and, for slotted courses, only while the
// staff member's slot is free), and the request flips only while still
// pending. Either guard failing rolls the whole unit back.
func (r *RequestRepository) Approve(ctx context.Context, p ApproveParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approve tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	bind := `UPDATE courses SET teaching_staff_id = $2, version = version + 1, updated_at = $3 WHERE id = $1 AND teaching_staff_id IS NULL`
	bindArgs := []interface{}{p.CourseID, p.TeachingStaffID, now}
	if p.Day != "" && p.TimeSlot != "" {
		bindArgs = append(bindArgs, p.Day, p.TimeSlot)
		bind += fmt.Sprintf(` AND NOT EXISTS (SELECT 1 FROM courses c2 WHERE c2.teaching_staff_id = $2 AND c2.schedule_day = $%d AND c2.schedule_time = $%d AND c2.id <> $1)`, len(bindArgs)-1, len(bindArgs))
	}
	result, err := tx.ExecContext(ctx, bind, bindArgs...)
	if err != nil {
		return fmt.Errorf("bind course in approve tx: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check bound course rows: %w", err)
	}
	if affected == 0 {
		err = ErrCourseOccupied
		return err
	}

	const flip = `UPDATE course_requests SET status = $2, decision_note = $3, decided_by = $4, decided_at = $5 WHERE id = $1 AND status = $6`
	result, err = tx.ExecContext(ctx, flip, p.RequestID, models.RequestStatusApproved, p.Note, p.DecidedBy, now, models.RequestStatusPending)
	if err != nil {
		return fmt.Errorf("flip request in approve tx: %w", err)
	}
	affected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check flipped request rows: %w", err)
	}
	if affected == 0 {
		err = ErrRequestNotPending
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit approve tx: %w", err)
	}
	return nil
}
