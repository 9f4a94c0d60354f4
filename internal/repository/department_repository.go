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

// DepartmentRepository manages persistence for departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs a DepartmentRepository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// List returns departments matching the optional search along with total count.
func (r *DepartmentRepository) List(ctx context.Context, search string, page, pageSize int) ([]models.Department, int, error) {
	base := "FROM departments WHERE 1=1"
	var args []interface{}

	if search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		base += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR LOWER(chair) LIKE $%d)", len(args), len(args))
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf("SELECT id, name, chair, created_at, updated_at %s ORDER BY name ASC LIMIT %d OFFSET %d", base, pageSize, offset)
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list departments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count departments: %w", err)
	}

	return departments, total, nil
}

// FindByID fetches a department by ID.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.Department, error) {
	const query = `SELECT id, name, chair, created_at, updated_at FROM departments WHERE id = $1`
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, id); err != nil {
		return nil, err
	}
	return &department, nil
}

// Create inserts a new department record.
func (r *DepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if department.CreatedAt.IsZero() {
		department.CreatedAt = now
	}
	department.UpdatedAt = now

	const query = `INSERT INTO departments (id, name, chair, created_at, updated_at)
		VALUES (:id, :name, :chair, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update modifies an existing department record.
func (r *DepartmentRepository) Update(ctx context.Context, department *models.Department) error {
	department.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET name = :name, chair = :chair, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	return nil
}

// Dependencies counts staff and courses still referencing the department.
func (r *DepartmentRepository) Dependencies(ctx context.Context, id string) (models.DepartmentDependencies, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM teaching_staff WHERE department_id = $1) AS staff_count,
		(SELECT COUNT(*) FROM courses WHERE department_id = $1) AS course_count`
	var deps models.DepartmentDependencies
	if err := r.db.GetContext(ctx, &deps, query, id); err != nil {
		return deps, fmt.Errorf("count department dependencies: %w", err)
	}
	return deps, nil
}

// Delete removes a department permanently.
func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted department rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
