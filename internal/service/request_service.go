package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-dept-api/internal/models"
	"github.com/noah-isme/uni-dept-api/internal/repository"
	appErrors "github.com/noah-isme/uni-dept-api/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, request *models.CourseRequest) error
	GetByID(ctx context.Context, id string) (*models.CourseRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.CourseRequest, error)
	ExistsPending(ctx context.Context, courseID, staffID string) (bool, error)
	Reject(ctx context.Context, requestID string, note *string, decidedBy *string) error
	Approve(ctx context.Context, p repository.ApproveParams) error
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// SubmitRequestPayload describes a staff member's course proposal.
type SubmitRequestPayload struct {
	CourseID        string `json:"course_id" validate:"required"`
	TeachingStaffID string `json:"teaching_staff_id" validate:"required"`
	Note            string `json:"note"`
}

// DecideRequestPayload carries a chair/secretary decision.
type DecideRequestPayload struct {
	Status models.RequestStatus `json:"status" validate:"required"`
	Note   string               `json:"note"`
}

// DecisionResult bundles the decided request with the course it bound.
type DecisionResult struct {
	Request *models.CourseRequest `json:"request"`
	Course  *models.Course        `json:"course,omitempty"`
}

// CourseRequestService governs the request state machine: pending
// requests are approved or rejected exactly once, and every approval
// re-validates the assignment invariants against current state rather
// than trusting submission-time checks.
type CourseRequestService struct {
	requests    requestStore
	courses     courseReader
	staff       staffReader
	resolver    *ConflictResolver
	cache       *CacheService
	metrics     *MetricsService
	maxAttempts int
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseRequestService creates a service instance.
func NewCourseRequestService(
	requests requestStore,
	courses courseReader,
	staff staffReader,
	resolver *ConflictResolver,
	cache *CacheService,
	metrics *MetricsService,
	maxAttempts int,
	validate *validator.Validate,
	logger *zap.Logger,
) *CourseRequestService {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseRequestService{
		requests:    requests,
		courses:     courses,
		staff:       staff,
		resolver:    resolver,
		cache:       cache,
		metrics:     metrics,
		maxAttempts: maxAttempts,
		validator:   validate,
		logger:      logger,
	}
}

// Submit records a pending request for an unassigned course. Department
// and requester name are snapshotted from the staff record at this
// instant; later staff edits do not rewrite request history.
func (s *CourseRequestService) Submit(ctx context.Context, payload SubmitRequestPayload) (*models.CourseRequest, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course request payload")
	}

	course, err := s.courses.FindByID(ctx, payload.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	staff, err := s.staff.FindByID(ctx, payload.TeachingStaffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff member")
	}
	if staff.DepartmentID != course.DepartmentID {
		return nil, appErrors.Clone(appErrors.ErrDepartmentMismatch, "")
	}
	if course.TeachingStaffID != nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyAssigned, "")
	}

	exists, err := s.requests.ExistsPending(ctx, payload.CourseID, payload.TeachingStaffID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "")
	}

	request := &models.CourseRequest{
		CourseID:        payload.CourseID,
		TeachingStaffID: payload.TeachingStaffID,
		DepartmentID:    staff.DepartmentID,
		StaffName:       staff.Name,
		Note:            optionalString(payload.Note),
		Status:          models.RequestStatusPending,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course request")
	}
	return request, nil
}

// Decide resolves a pending request. Rejection is a pure status flip;
// approval re-validates against the current course state and commits the
// status flip and course binding as one unit, so a request can never be
// approved while the course stays unbound.
func (s *CourseRequestService) Decide(ctx context.Context, requestID string, payload DecideRequestPayload, actor *models.IdentityClaims) (*DecisionResult, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course request")
	}
	if request.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "")
	}

	note := optionalString(payload.Note)
	var decidedBy *string
	if actor != nil && actor.UserID != "" {
		decidedBy = &actor.UserID
	}

	switch payload.Status {
	case models.RequestStatusRejected:
		return s.reject(ctx, request, note, decidedBy)
	case models.RequestStatusApproved:
		return s.approve(ctx, request, note, decidedBy)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be APPROVED or REJECTED")
	}
}

// Get returns a request by identifier.
func (s *CourseRequestService) Get(ctx context.Context, id string) (*models.CourseRequest, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course request")
	}
	return request, nil
}

// List returns requests matching the filter.
func (s *CourseRequestService) List(ctx context.Context, filter models.RequestFilter) ([]models.CourseRequest, error) {
	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course requests")
	}
	return requests, nil
}

func (s *CourseRequestService) reject(ctx context.Context, request *models.CourseRequest, note, decidedBy *string) (*DecisionResult, error) {
	if err := s.requests.Reject(ctx, request.ID, note, decidedBy); err != nil {
		if errors.Is(err, repository.ErrRequestNotPending) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject course request")
	}
	now := time.Now().UTC()
	request.Status = models.RequestStatusRejected
	request.DecisionNote = note
	request.DecidedBy = decidedBy
	request.DecidedAt = &now
	s.metrics.RecordDecision("rejected")
	return &DecisionResult{Request: request}, nil
}

func (s *CourseRequestService) approve(ctx context.Context, request *models.CourseRequest, note, decidedBy *string) (*DecisionResult, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		course, err := s.courses.FindByID(ctx, request.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if course.TeachingStaffID != nil {
			s.metrics.RecordDecision("lost_race")
			return nil, appErrors.Clone(appErrors.ErrAlreadyAssigned, "")
		}

		var day, timeSlot string
		if course.Scheduled() {
			day = *course.ScheduleDay
			timeSlot = *course.ScheduleTime
		}
		// The course is unbound here, so nothing is excluded from the
		// occupancy query.
		conflicts, err := s.resolver.FindConflicts(ctx, request.TeachingStaffID, day, timeSlot, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
		}
		if len(conflicts) > 0 {
			s.metrics.RecordSlotConflict()
			s.metrics.RecordDecision("conflict")
			return nil, slotConflictError(day, timeSlot, conflicts)
		}

		err = s.requests.Approve(ctx, repository.ApproveParams{
			RequestID:       request.ID,
			CourseID:        request.CourseID,
			TeachingStaffID: request.TeachingStaffID,
			Day:             day,
			TimeSlot:        timeSlot,
			Note:            note,
			DecidedBy:       decidedBy,
		})
		if errors.Is(err, repository.ErrRequestNotPending) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "")
		}
		if errors.Is(err, repository.ErrCourseOccupied) {
			// The guarded bind refused: another writer got there first.
			// Re-read to tell AlreadyAssigned from ScheduleConflict from
			// plain contention.
			s.logger.Debug("approve commit refused, reclassifying",
				zap.String("request_id", request.ID), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve course request")
		}

		s.invalidateUnassigned(ctx, course.DepartmentID)
		s.metrics.RecordDecision("approved")

		now := time.Now().UTC()
		request.Status = models.RequestStatusApproved
		request.DecisionNote = note
		request.DecidedBy = decidedBy
		request.DecidedAt = &now

		bound, err := s.courses.FindByID(ctx, request.CourseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload course")
		}
		return &DecisionResult{Request: request, Course: bound}, nil
	}
	s.metrics.RecordDecision("contention")
	return nil, appErrors.Clone(appErrors.ErrContention, "")
}

func (s *CourseRequestService) invalidateUnassigned(ctx context.Context, departmentID string) {
	if err := s.cache.Invalidate(ctx, unassignedCacheKeyPrefix+departmentID); err != nil {
		s.logger.Warn("failed to invalidate unassigned course cache",
			zap.String("department_id", departmentID), zap.Error(err))
	}
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := strings.TrimSpace(value)
	return &v
}
