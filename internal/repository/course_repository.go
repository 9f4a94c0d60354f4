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

const courseColumns = `id, code, name, credits, department_id, teaching_staff_id, schedule_day, schedule_time, room, capacity, current_enrollment, semester, version, created_at, updated_at`

// CourseRepository manages persistence for courses, including the
// version-guarded writes the assignment paths depend on.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching filters along with total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := "FROM courses WHERE 1=1"
	var args []interface{}

	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		base += fmt.Sprintf(" AND department_id = $%d", len(args))
	}
	if filter.TeachingStaffID != "" {
		args = append(args, filter.TeachingStaffID)
		base += fmt.Sprintf(" AND teaching_staff_id = $%d", len(args))
	}
	if filter.Unassigned {
		base += " AND teaching_staff_id IS NULL"
	}
	if filter.Semester != "" {
		args = append(args, filter.Semester)
		base += fmt.Sprintf(" AND semester = $%d", len(args))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY code ASC LIMIT %d OFFSET %d", courseColumns, base, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	return courses, total, nil
}

// ListByDepartment returns every course of the department. Listing
// endpoints page; roster export reads the full set.
func (r *CourseRepository) ListByDepartment(ctx context.Context, departmentID string) ([]models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE department_id = $1 ORDER BY code ASC", courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, departmentID); err != nil {
		return nil, fmt.Errorf("list department courses: %w", err)
	}
	return courses, nil
}

// ListUnassignedByDepartment returns every unassigned course of the
// department, unpaginated so the arbitration listing is complete.
func (r *CourseRepository) ListUnassignedByDepartment(ctx context.Context, departmentID string) ([]models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE department_id = $1 AND teaching_staff_id IS NULL ORDER BY code ASC", courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, departmentID); err != nil {
		return nil, fmt.Errorf("list unassigned courses: %w", err)
	}
	return courses, nil
}

// FindByID fetches a course by ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE id = $1", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListByStaff returns all courses bound to the staff member.
func (r *CourseRepository) ListByStaff(ctx context.Context, staffID string) ([]models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE teaching_staff_id = $1 ORDER BY code ASC", courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, staffID); err != nil {
		return nil, fmt.Errorf("list courses by staff: %w", err)
	}
	return courses, nil
}

// FindBySlot returns courses occupying the given staff member's
// (day, time) slot, excluding one course when requested. This is the
// occupancy query behind every conflict decision.
func (r *CourseRepository) FindBySlot(ctx context.Context, q models.SlotQuery) ([]models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE teaching_staff_id = $1 AND schedule_day = $2 AND schedule_time = $3", courseColumns)
	args := []interface{}{q.TeachingStaffID, q.Day, q.TimeSlot}
	if q.ExcludeCourseID != "" {
		args = append(args, q.ExcludeCourseID)
		query += fmt.Sprintf(" AND id <> $%d", len(args))
	}
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("find courses by slot: %w", err)
	}
	return courses, nil
}

// Create inserts a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	course.Version = 1

	const query = `INSERT INTO courses (id, code, name, credits, department_id, teaching_staff_id, schedule_day, schedule_time, room, capacity, current_enrollment, semester, version, created_at, updated_at)
		VALUES (:id, :code, :name, :credits, :department_id, :teaching_staff_id, :schedule_day, :schedule_time, :room, :capacity, :current_enrollment, :semester, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update rewrites a course row guarded by the version read earlier.
// ErrStaleCourse signals the row changed underneath the caller.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET code = :code, name = :name, credits = :credits, department_id = :department_id,
		teaching_staff_id = :teaching_staff_id, schedule_day = :schedule_day, schedule_time = :schedule_time,
		room = :room, capacity = :capacity, current_enrollment = :current_enrollment, semester = :semester,
		version = version + 1, updated_at = :updated_at
		WHERE id = :id AND version = :version`
	result, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated course rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleCourse
	}
	course.Version++
	return nil
}

// AssignStaffParams carries the conditional bind of a staff member to a
// course. Day and TimeSlot, when set, arm an occupancy guard so the
// write cannot commit past a competing same-slot binding.
type AssignStaffParams struct {
	CourseID        string
	TeachingStaffID string
	Day             string
	TimeSlot        string
	ExpectedVersion int64
}

// AssignStaff binds the staff member if the course row is unchanged since
// it was read and, for slotted courses, no same-staff same-slot course
// exists. Zero rows affected yields ErrStaleCourse.
func (r *CourseRepository) AssignStaff(ctx context.Context, p AssignStaffParams) error {
	query := `UPDATE courses SET teaching_staff_id = $2, version = version + 1, updated_at = $3 WHERE id = $1 AND version = $4`
	args := []interface{}{p.CourseID, p.TeachingStaffID, time.Now().UTC(), p.ExpectedVersion}
	if p.Day != "" && p.TimeSlot != "" {
		args = append(args, p.Day, p.TimeSlot)
		query += fmt.Sprintf(` AND NOT EXISTS (SELECT 1 FROM courses c2 WHERE c2.teaching_staff_id = $2 AND c2.schedule_day = $%d AND c2.schedule_time = $%d AND c2.id <> $1)`, len(args)-1, len(args))
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("assign course staff: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check assigned course rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleCourse
	}
	return nil
}

// Unassign clears the course's staff binding unconditionally.
func (r *CourseRepository) Unassign(ctx context.Context, courseID string) error {
	const query = `UPDATE courses SET teaching_staff_id = NULL, version = version + 1, updated_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, courseID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("unassign course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check unassigned course rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a course permanently.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted course rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
