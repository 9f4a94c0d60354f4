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

type departmentStore interface {
	List(ctx context.Context, search string, page, pageSize int) ([]models.Department, int, error)
	FindByID(ctx context.Context, id string) (*models.Department, error)
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
	Dependencies(ctx context.Context, id string) (models.DepartmentDependencies, error)
	Delete(ctx context.Context, id string) error
}

// CreateDepartmentRequest describes the department creation payload.
type CreateDepartmentRequest struct {
	Name  string `json:"name" validate:"required"`
	Chair string `json:"chair" validate:"required"`
}

// UpdateDepartmentRequest describes a partial department update.
type UpdateDepartmentRequest struct {
	Name  *string `json:"name"`
	Chair *string `json:"chair"`
}

// DepartmentService handles department CRUD with dependency guards.
type DepartmentService struct {
	departments departmentStore
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewDepartmentService creates a service instance.
func NewDepartmentService(departments departmentStore, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{departments: departments, validator: validate, logger: logger}
}

// List returns departments with pagination metadata.
func (s *DepartmentService) List(ctx context.Context, search string, page, pageSize int) ([]models.Department, *models.Pagination, error) {
	departments, total, err := s.departments.List(ctx, search, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return departments, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get fetches a single department.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.Department, error) {
	department, err := s.departments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return department, nil
}

// Create stores a new department.
func (s *DepartmentService) Create(ctx context.Context, req CreateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	department := &models.Department{Name: req.Name, Chair: req.Chair}
	if err := s.departments.Create(ctx, department); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return department, nil
}

// Update applies a partial update to a department.
func (s *DepartmentService) Update(ctx context.Context, id string, req UpdateDepartmentRequest) (*models.Department, error) {
	if req.Name == nil && req.Chair == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}
	department, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		department.Name = *req.Name
	}
	if req.Chair != nil {
		department.Chair = *req.Chair
	}
	if err := s.departments.Update(ctx, department); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	return department, nil
}

// Delete removes a department once nothing references it. Deletion is
// always caller-initiated; nothing cascades.
func (s *DepartmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	deps, err := s.departments.Dependencies(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department dependencies")
	}
	if !deps.Empty() {
		return appErrors.Clone(appErrors.ErrDependencyExists, "department still has teaching staff or courses")
	}
	if err := s.departments.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete department")
	}
	return nil
}
