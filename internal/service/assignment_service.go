package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-dept-api/internal/models"
	"github.com/noah-isme/uni-dept-api/internal/repository"
	appErrors "github.com/noah-isme/uni-dept-api/pkg/errors"
)

type courseBinder interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListUnassignedByDepartment(ctx context.Context, departmentID string) ([]models.Course, error)
	ListByStaff(ctx context.Context, staffID string) ([]models.Course, error)
	AssignStaff(ctx context.Context, p repository.AssignStaffParams) error
	Unassign(ctx context.Context, courseID string) error
}

type staffReader interface {
	FindByID(ctx context.Context, id string) (*models.TeachingStaff, error)
}

type departmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

const unassignedCacheKeyPrefix = "courses:unassigned:"

// AssignmentService binds teaching staff directly to courses, enforcing
// department membership and schedule non-overlap. The conflict check and
// the write run as one optimistic unit: the guarded update refuses stale
// rows and the whole sequence re-executes from a fresh read.
type AssignmentService struct {
	courses     courseBinder
	staff       staffReader
	departments departmentReader
	resolver    *ConflictResolver
	cache       *CacheService
	metrics     *MetricsService
	maxAttempts int
	logger      *zap.Logger
}

// NewAssignmentService creates a service instance.
func NewAssignmentService(
	courses courseBinder,
	staff staffReader,
	departments departmentReader,
	resolver *ConflictResolver,
	cache *CacheService,
	metrics *MetricsService,
	maxAttempts int,
	logger *zap.Logger,
) *AssignmentService {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		courses:     courses,
		staff:       staff,
		departments: departments,
		resolver:    resolver,
		cache:       cache,
		metrics:     metrics,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Assign binds the staff member to the course. Re-assigning the same
// staff member is permitted and idempotent: the conflict query excludes
// the course itself.
func (s *AssignmentService) Assign(ctx context.Context, courseID, staffID string) (*models.Course, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		course, err := s.courses.FindByID(ctx, courseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		staff, err := s.staff.FindByID(ctx, staffID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff member")
		}
		if staff.DepartmentID != course.DepartmentID {
			return nil, appErrors.Clone(appErrors.ErrDepartmentMismatch, "")
		}

		var day, timeSlot string
		if course.Scheduled() {
			day = *course.ScheduleDay
			timeSlot = *course.ScheduleTime
		}
		conflicts, err := s.resolver.FindConflicts(ctx, staffID, day, timeSlot, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
		}
		if len(conflicts) > 0 {
			s.metrics.RecordSlotConflict()
			s.metrics.RecordAssignment("conflict")
			return nil, slotConflictError(day, timeSlot, conflicts)
		}

		err = s.courses.AssignStaff(ctx, repository.AssignStaffParams{
			CourseID:        courseID,
			TeachingStaffID: staffID,
			Day:             day,
			TimeSlot:        timeSlot,
			ExpectedVersion: course.Version,
		})
		if errors.Is(err, repository.ErrStaleCourse) {
			s.logger.Debug("assignment write lost the race, retrying",
				zap.String("course_id", courseID), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign course")
		}

		s.invalidateUnassigned(ctx, course.DepartmentID)
		s.metrics.RecordAssignment("assigned")
		return s.reload(ctx, courseID)
	}
	s.metrics.RecordAssignment("contention")
	return nil, appErrors.Clone(appErrors.ErrContention, "")
}

// Unassign clears the course's staff binding. Removal never needs a
// conflict check.
func (s *AssignmentService) Unassign(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if err := s.courses.Unassign(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unassign course")
	}
	s.invalidateUnassigned(ctx, course.DepartmentID)
	s.metrics.RecordAssignment("unassigned")
	return s.reload(ctx, courseID)
}

// ListUnassigned returns the department's unassigned courses, served from
// cache when warm.
func (s *AssignmentService) ListUnassigned(ctx context.Context, departmentID string) ([]models.Course, error) {
	if _, err := s.departments.FindByID(ctx, departmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}

	key := unassignedCacheKeyPrefix + departmentID
	var cached []models.Course
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	courses, err := s.courses.ListUnassignedByDepartment(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unassigned courses")
	}
	_ = s.cache.Set(ctx, key, courses, 0)
	return courses, nil
}

// ListByStaff returns all courses bound to the staff member.
func (s *AssignmentService) ListByStaff(ctx context.Context, staffID string) ([]models.Course, error) {
	if _, err := s.staff.FindByID(ctx, staffID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff member")
	}
	courses, err := s.courses.ListByStaff(ctx, staffID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list staff courses")
	}
	return courses, nil
}

func (s *AssignmentService) reload(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload course")
	}
	return course, nil
}

func (s *AssignmentService) invalidateUnassigned(ctx context.Context, departmentID string) {
	if err := s.cache.Invalidate(ctx, unassignedCacheKeyPrefix+departmentID); err != nil {
		s.logger.Warn("failed to invalidate unassigned course cache",
			zap.String("department_id", departmentID), zap.Error(err))
	}
}
