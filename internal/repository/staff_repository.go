package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-dept-api/internal/models"
)

// StaffRepository manages persistence for teaching staff.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository constructs a StaffRepository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// List returns staff matching filters along with total count.
func (r *StaffRepository) List(ctx context.Context, filter models.StaffFilter) ([]models.TeachingStaff, int, error) {
	base := "FROM teaching_staff WHERE 1=1"
	var args []interface{}

	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		base += fmt.Sprintf(" AND department_id = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		base += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args), len(args))
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

	query := fmt.Sprintf("SELECT id, name, email, department_id, specialization, created_at, updated_at %s ORDER BY name ASC LIMIT %d OFFSET %d", base, size, offset)
	var staff []models.TeachingStaff
	if err := r.db.SelectContext(ctx, &staff, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teaching staff: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count teaching staff: %w", err)
	}

	return staff, total, nil
}

// ListByDepartment returns every staff member of the department,
// unpaginated for internal callers resolving bindings by name.
func (r *StaffRepository) ListByDepartment(ctx context.Context, departmentID string) ([]models.TeachingStaff, error) {
	const query = `SELECT id, name, email, department_id, specialization, created_at, updated_at FROM teaching_staff WHERE department_id = $1 ORDER BY name ASC`
	var staff []models.TeachingStaff
	if err := r.db.SelectContext(ctx, &staff, query, departmentID); err != nil {
		return nil, fmt.Errorf("list department staff: %w", err)
	}
	return staff, nil
}

// FindByID fetches a staff member by ID.
func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.TeachingStaff, error) {
	const query = `SELECT id, name, email, department_id, specialization, created_at, updated_at FROM teaching_staff WHERE id = $1`
	var staff models.TeachingStaff
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		return nil, err
	}
	return &staff, nil
}

// Create inserts a new staff record.
func (r *StaffRepository) Create(ctx context.Context, staff *models.TeachingStaff) error {
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = now
	}
	staff.UpdatedAt = now

	const query = `INSERT INTO teaching_staff (id, name, email, department_id, specialization, created_at, updated_at)
		VALUES (:id, :name, :email, :department_id, :specialization, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, staff); err != nil {
		return fmt.Errorf("create teaching staff: %w", err)
	}
	return nil
}

// Update modifies an existing staff record.
func (r *StaffRepository) Update(ctx context.Context, staff *models.TeachingStaff) error {
	staff.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teaching_staff SET name = :name, email = :email, department_id = :department_id, specialization = :specialization, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, staff); err != nil {
		return fmt.Errorf("update teaching staff: %w", err)
	}
	return nil
}

// CountAssignedCourses returns how many courses are bound to the staff member.
func (r *StaffRepository) CountAssignedCourses(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM courses WHERE teaching_staff_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count assigned courses: %w", err)
	}
	return count, nil
}

// Delete removes a staff member permanently.
func (r *StaffRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM teaching_staff WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete teaching staff: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted staff rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
