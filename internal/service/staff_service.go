package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-dept-api/internal/models"
	appErrors "github.com/noah-isme/uni-dept-api/pkg/errors"
)

type staffStore interface {
	List(ctx context.Context, filter models.StaffFilter) ([]models.TeachingStaff, int, error)
	FindByID(ctx context.Context, id string) (*models.TeachingStaff, error)
	Create(ctx context.Context, staff *models.TeachingStaff) error
	Update(ctx context.Context, staff *models.TeachingStaff) error
	CountAssignedCourses(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}

// CreateStaffRequest describes the staff creation payload.
type CreateStaffRequest struct {
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	DepartmentID   string `json:"department_id" validate:"required"`
	Specialization string `json:"specialization" validate:"required"`
}

// UpdateStaffRequest describes a partial staff update.
type UpdateStaffRequest struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	DepartmentID   *string `json:"department_id"`
	Specialization *string `json:"specialization"`
}

// StaffService handles teaching staff CRUD with referential guards.
type StaffService struct {
	staff       staffStore
	departments departmentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStaffService creates a service instance.
func NewStaffService(staff staffStore, departments departmentReader, validate *validator.Validate, logger *zap.Logger) *StaffService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{staff: staff, departments: departments, validator: validate, logger: logger}
}

// List returns staff with pagination metadata.
func (s *StaffService) List(ctx context.Context, filter models.StaffFilter) ([]models.TeachingStaff, *models.Pagination, error) {
	staff, total, err := s.staff.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teaching staff")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return staff, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get fetches a single staff member.
func (s *StaffService) Get(ctx context.Context, id string) (*models.TeachingStaff, error) {
	staff, err := s.staff.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff member")
	}
	return staff, nil
}

// Create stores a new staff member after resolving the department.
func (s *StaffService) Create(ctx context.Context, req CreateStaffRequest) (*models.TeachingStaff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	if _, err := s.departments.FindByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	staff := &models.TeachingStaff{
		Name:           req.Name,
		Email:          req.Email,
		DepartmentID:   req.DepartmentID,
		Specialization: req.Specialization,
	}
	if err := s.staff.Create(ctx, staff); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staff member")
	}
	return staff, nil
}

// Update applies a partial update. Moving a staff member to another
// department is refused while courses are still bound to them, since
// those bindings would cross departments.
func (s *StaffService) Update(ctx context.Context, id string, req UpdateStaffRequest) (*models.TeachingStaff, error) {
	if req.Name == nil && req.Email == nil && req.DepartmentID == nil && req.Specialization == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}
	staff, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.DepartmentID != nil && *req.DepartmentID != staff.DepartmentID {
		if _, err := s.departments.FindByID(ctx, *req.DepartmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
		}
		assigned, err := s.staff.CountAssignedCourses(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assigned courses")
		}
		if assigned > 0 {
			return nil, appErrors.Clone(appErrors.ErrDependencyExists, "staff member still has assigned courses in the current department")
		}
		staff.DepartmentID = *req.DepartmentID
	}
	if req.Name != nil {
		staff.Name = *req.Name
	}
	if req.Email != nil {
		staff.Email = *req.Email
	}
	if req.Specialization != nil {
		staff.Specialization = *req.Specialization
	}
	if err := s.staff.Update(ctx, staff); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update staff member")
	}
	return staff, nil
}

// Delete removes a staff member once no courses reference them.
func (s *StaffService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	assigned, err := s.staff.CountAssignedCourses(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assigned courses")
	}
	if assigned > 0 {
		return appErrors.Clone(appErrors.ErrDependencyExists, "staff member still has assigned courses")
	}
	if err := s.staff.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete staff member")
	}
	return nil
}
