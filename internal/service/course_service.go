package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-dept-api/internal/models"
	"github.com/noah-isme/uni-dept-api/internal/repository"
	appErrors "github.com/noah-isme/uni-dept-api/pkg/errors"
)

type courseAdminStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type pendingRequestCounter interface {
	CountPendingByCourse(ctx context.Context, courseID string) (int, error)
}

// CreateCourseRequest describes the course creation payload.
type CreateCourseRequest struct {
	Code            string `json:"code" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Credits         int    `json:"credits" validate:"required,gt=0"`
	DepartmentID    string `json:"department_id" validate:"required"`
	TeachingStaffID string `json:"teaching_staff_id"`
	ScheduleDay     string `json:"schedule_day"`
	ScheduleTime    string `json:"schedule_time"`
	Room            string `json:"room"`
	Capacity        int    `json:"capacity"`
	Semester        string `json:"semester"`
}

// UpdateCourseRequest describes a partial course update.
type UpdateCourseRequest struct {
	Code            *string `json:"code"`
	Name            *string `json:"name"`
	Credits         *int    `json:"credits"`
	DepartmentID    *string `json:"department_id"`
	TeachingStaffID *string `json:"teaching_staff_id"`
	ScheduleDay     *string `json:"schedule_day"`
	ScheduleTime    *string `json:"schedule_time"`
	Room            *string `json:"room"`
	Capacity        *int    `json:"capacity"`
	Semester        *string `json:"semester"`
}

func (r UpdateCourseRequest) empty() bool {
	return r.Code == nil && r.Name == nil && r.Credits == nil && r.DepartmentID == nil &&
		r.TeachingStaffID == nil && r.ScheduleDay == nil && r.ScheduleTime == nil &&
		r.Room == nil && r.Capacity == nil && r.Semester == nil
}

// CourseService handles course CRUD. Any create or update that results
// in a staff binding plus a schedule slot runs through the same conflict
// resolver as the assignment paths, so CRUD edits cannot sneak past the
// non-overlap invariant.
type CourseService struct {
	courses     courseAdminStore
	staff       staffReader
	departments departmentReader
	requests    pendingRequestCounter
	resolver    *ConflictResolver
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService creates a service instance.
func NewCourseService(
	courses courseAdminStore,
	staff staffReader,
	departments departmentReader,
	requests pendingRequestCounter,
	resolver *ConflictResolver,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		courses:     courses,
		staff:       staff,
		departments: departments,
		requests:    requests,
		resolver:    resolver,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get fetches a single course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create stores a new course after resolving references and, when the
// payload already carries a staff binding and slot, checking conflicts.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.departments.FindByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}

	course := &models.Course{
		Code:            req.Code,
		Name:            req.Name,
		Credits:         req.Credits,
		DepartmentID:    req.DepartmentID,
		TeachingStaffID: optionalString(req.TeachingStaffID),
		ScheduleDay:     optionalString(req.ScheduleDay),
		ScheduleTime:    optionalString(req.ScheduleTime),
		Room:            optionalString(req.Room),
		Capacity:        req.Capacity,
		Semester:        optionalString(req.Semester),
	}
	if course.Capacity <= 0 {
		course.Capacity = 30
	}

	if course.TeachingStaffID != nil {
		staff, err := s.staff.FindByID(ctx, *course.TeachingStaffID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff member")
		}
		if staff.DepartmentID != course.DepartmentID {
			return nil, appErrors.Clone(appErrors.ErrDepartmentMismatch, "")
		}
		if err := s.checkSlot(ctx, course, ""); err != nil {
			return nil, err
		}
	}

	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidateUnassigned(ctx, course.DepartmentID)
	return course, nil
}

// Update applies a partial update, re-validating references and the
// non-overlap invariant whenever the staff binding, slot, or department
// changes.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if req.empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previousDepartment := course.DepartmentID

	if req.DepartmentID != nil && *req.DepartmentID != course.DepartmentID {
		if _, err := s.departments.FindByID(ctx, *req.DepartmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
		}
		course.DepartmentID = *req.DepartmentID
	}
	if req.Code != nil {
		course.Code = *req.Code
	}
	if req.Name != nil {
		course.Name = *req.Name
	}
	if req.Credits != nil {
		course.Credits = *req.Credits
	}
	if req.TeachingStaffID != nil {
		course.TeachingStaffID = optionalString(*req.TeachingStaffID)
	}
	if req.ScheduleDay != nil {
		course.ScheduleDay = optionalString(*req.ScheduleDay)
	}
	if req.ScheduleTime != nil {
		course.ScheduleTime = optionalString(*req.ScheduleTime)
	}
	if req.Room != nil {
		course.Room = optionalString(*req.Room)
	}
	if req.Capacity != nil {
		course.Capacity = *req.Capacity
	}
	if req.Semester != nil {
		course.Semester = optionalString(*req.Semester)
	}

	if course.TeachingStaffID != nil {
		staff, err := s.staff.FindByID(ctx, *course.TeachingStaffID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff member")
		}
		if staff.DepartmentID != course.DepartmentID {
			return nil, appErrors.Clone(appErrors.ErrDepartmentMismatch, "")
		}
		if err := s.checkSlot(ctx, course, course.ID); err != nil {
			return nil, err
		}
	}

	if err := s.courses.Update(ctx, course); err != nil {
		if errors.Is(err, repository.ErrStaleCourse) {
			return nil, appErrors.Clone(appErrors.ErrContention, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidateUnassigned(ctx, previousDepartment)
	if course.DepartmentID != previousDepartment {
		s.invalidateUnassigned(ctx, course.DepartmentID)
	}
	return course, nil
}

// Delete removes a course once no pending requests reference it.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	course, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	pending, err := s.requests.CountPendingByCourse(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending requests")
	}
	if pending > 0 {
		return appErrors.Clone(appErrors.ErrDependencyExists, "course still has pending requests")
	}
	if err := s.courses.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateUnassigned(ctx, course.DepartmentID)
	return nil
}

func (s *CourseService) checkSlot(ctx context.Context, course *models.Course, excludeCourseID string) error {
	if !course.Scheduled() || course.TeachingStaffID == nil {
		return nil
	}
	day := *course.ScheduleDay
	timeSlot := *course.ScheduleTime
	conflicts, err := s.resolver.FindConflicts(ctx, *course.TeachingStaffID, day, timeSlot, excludeCourseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
	}
	if len(conflicts) > 0 {
		return slotConflictError(day, timeSlot, conflicts)
	}
	return nil
}

func (s *CourseService) invalidateUnassigned(ctx context.Context, departmentID string) {
	if err := s.cache.Invalidate(ctx, unassignedCacheKeyPrefix+departmentID); err != nil {
		s.logger.Warn("failed to invalidate unassigned course cache",
			zap.String("department_id", departmentID), zap.Error(err))
	}
}
