package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-dept-api/internal/models"
	"github.com/noah-isme/uni-dept-api/internal/repository"
	appErrors "github.com/noah-isme/uni-dept-api/pkg/errors"
)

type requestStoreStub struct {
	requests     map[string]*models.CourseRequest
	courses      *courseStoreStub
	occupiedOnce bool
	rivalStaffID string
	nextID       int
}

func newRequestStoreStub(courses *courseStoreStub) *requestStoreStub {
	return &requestStoreStub{requests: make(map[string]*models.CourseRequest), courses: courses}
}

func (s *requestStoreStub) Create(ctx context.Context, request *models.CourseRequest) error {
	if request.ID == "" {
		s.nextID++
		request.ID = "req-" + string(rune('0'+s.nextID))
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	copy := *request
	s.requests[request.ID] = &copy
	return nil
}

func (s *requestStoreStub) GetByID(ctx context.Context, id string) (*models.CourseRequest, error) {
	request, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *request
	return &copy, nil
}

func (s *requestStoreStub) List(ctx context.Context, filter models.RequestFilter) ([]models.CourseRequest, error) {
	var result []models.CourseRequest
	for _, request := range s.requests {
		if filter.Status != "" && request.Status != filter.Status {
			continue
		}
		if filter.CourseID != "" && request.CourseID != filter.CourseID {
			continue
		}
		result = append(result, *request)
	}
	return result, nil
}

func (s *requestStoreStub) ExistsPending(ctx context.Context, courseID, staffID string) (bool, error) {
	for _, request := range s.requests {
		if request.CourseID == courseID && request.TeachingStaffID == staffID && request.Status == models.RequestStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *requestStoreStub) Reject(ctx context.Context, requestID string, note *string, decidedBy *string) error {
	request, ok := s.requests[requestID]
	if !ok || request.Status != models.RequestStatusPending {
		return repository.ErrRequestNotPending
	}
	now := time.Now().UTC()
	request.Status = models.RequestStatusRejected
	request.DecisionNote = note
	request.DecidedBy = decidedBy
	request.DecidedAt = &now
	return nil
}

func (s *requestStoreStub) Approve(ctx context.Context, p repository.ApproveParams) error {
	course, ok := s.courses.courses[p.CourseID]
	if !ok {
		return repository.ErrCourseOccupied
	}
	if s.occupiedOnce {
		// A competing approval committed between the caller's read and
		// this write.
		s.occupiedOnce = false
		rival := s.rivalStaffID
		course.TeachingStaffID = &rival
		course.Version++
		return repository.ErrCourseOccupied
	}
	if course.TeachingStaffID != nil {
		return repository.ErrCourseOccupied
	}
	request, ok := s.requests[p.RequestID]
	if !ok || request.Status != models.RequestStatusPending {
		return repository.ErrRequestNotPending
	}
	staffID := p.TeachingStaffID
	course.TeachingStaffID = &staffID
	course.Version++
	now := time.Now().UTC()
	request.Status = models.RequestStatusApproved
	request.DecisionNote = p.Note
	request.DecidedBy = p.DecidedBy
	request.DecidedAt = &now
	return nil
}

func newRequestServiceForTest(requests *requestStoreStub, courses *courseStoreStub, staff *staffStoreStub) *CourseRequestService {
	resolver := NewConflictResolver(courses)
	return NewCourseRequestService(requests, courses, staff, resolver, nil, nil, 3, nil, nil)
}

func TestCourseRequestServiceSubmitSnapshotsStaff(t *testing.T) {
	courses := newCourseStoreStub(unassignedCourse("course-1", "CS101", "dept-1"))
	staff := newStaffStoreStub(staffMember("staff-1", "Dr. Ada", "dept-1"))
	requests := newRequestStoreStub(courses)
	svc := newRequestServiceForTest(requests, courses, staff)

	request, err := svc.Submit(context.Background(), SubmitRequestPayload{
		CourseID:        "course-1",
		TeachingStaffID: "staff-1",
		Note:            "I taught this last year",
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPending, request.Status)
	require.Equal(t, "dept-1", request.DepartmentID)
	require.Equal(t, "Dr. Ada", request.StaffName)
	require.NotNil(t, request.Note)
}

func TestCourseRequestServiceSubmitRejectsDuplicates(t *testing.T) {
	courses := newCourseStoreStub(unassignedCourse("course-1", "CS101", "dept-1"))
	staff := newStaffStoreStub(staffMember("staff-1", "Dr. Ada", "dept-1"))
	requests := newRequestStoreStub(courses)
	svc := newRequestServiceForTest(requests, courses, staff)

	_, err := svc.Submit(context.Background(), SubmitRequestPayload{CourseID: "course-1", TeachingStaffID: "staff-1"})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), SubmitRequestPayload{CourseID: "course-1", TeachingStaffID: "staff-1"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrDuplicateRequest.Code, appErrors.FromError(err).Code)
}

func TestCourseRequestServiceSubmitAssignedCourse(t *testing.T) {
	courses := newCourseStoreStub(slottedCourse("course-1", "CS101", "staff-2", "Monday", "08:00-10:00"))
	staff := newStaffStoreStub(staffMember("staff-1", "Dr. Ada", "dept-1"))
	requests := newRequestStoreStub(courses)
	svc := newRequestServiceForTest(requests, courses, staff)

	_, err := svc.Submit(context.Background(), SubmitRequestPayload{CourseID: "course-1", TeachingStaffID: "staff-1"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrAlreadyAssigned.Code, appErrors.FromError(err).Code)
}

func TestCourseRequestServiceSubmitDepartmentMismatch(t *testing.T) {
	courses := newCourseStoreStub(unassignedCourse("course-1", "CS101", "dept-1"))
	staff := newStaffStoreStub(staffMember("staff-9", "Dr. Alan", "dept-2"))
	requests := newRequestStoreStub(courses)
	svc := newRequestServiceForTest(requests, courses, staff)

	_, err := svc.Submit(context.Background(), SubmitRequestPayload{CourseID: "course-1", TeachingStaffID: "staff-9"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrDepartmentMismatch.Code, appErrors.FromError(err).Code)
}

func TestCourseRequestServiceApproveBindsCourse(t *testing.T) {
	courses := newCourseStoreStub(unassignedCourse("course-1", "CS101", "dept-1"))
	staff := newStaffStoreStub(staffMember("staff-1", "Dr. Ada", "dept-1"))
	requests := newRequestStoreStub(courses)
	svc := newRequestServiceForTest(requests, courses, staff)

	request, err := svc.Submit(context.Background(), SubmitRequestPayload{CourseID: "course-1", TeachingStaffID: "staff-1"})
	require.NoError(t, err)

	actor := &models.IdentityClaims{UserID: "chair-1"}
	result, err := svc.Decide(context.Background(), request.ID, DecideRequestPayload{Status: models.RequestStatusApproved, Note: "welcome"}, actor)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, result.Request.Status)
	require.NotNil(t, result.Request.DecidedBy)
	require.Equal(t, "chair-1", *result.Request.DecidedBy)
	require.NotNil(t, result.Course)
	require.Equal(t, "staff-1", *result.Course.TeachingStaffID)
}

func TestCourseRequestServiceRejectLeavesCourseFree(t *testing.T) {
	courses := newCourseStoreStub(unassignedCourse("course-1", "CS101", "dept-1"))
	staff := newStaffStoreStub(staffMember("staff-1", "Dr. Ada", "dept-1"))
	requests := newRequestStoreStub(courses)
	svc := newRequestServiceForTest(requests, courses, staff)

	request, err := svc.Submit(context.Background(), SubmitRequestPayload{CourseID: "course-1", TeachingStaffID: "staff-1"})
	require.NoError(t, err)

	result, err := svc.Decide(context.Background(), request.ID, DecideRequestPayload{Status: models.RequestStatusRejected, Note: "overloaded"}, nil)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusRejected, result.Request.Status)
	require.Nil(t, result.Course)

	course, err := courses.FindByID(context.Background(), "course-1")
	require.NoError(t, err)
	require.Nil(t, course.TeachingStaffID)

	// Rejection frees the pair for a fresh request.
	_, err = svc.Submit(context.Background(), SubmitRequestPayload{CourseID: "course-1", TeachingStaffID: "staff-1"})
	require.NoError(t, err)
}

func TestCourseRequestServiceDecideTwice(t *testing.T) {
	courses := newCourseStoreStub(unassignedCourse("course-1", "CS101", "dept-1"))
	staff := newStaffStoreStub(staffMember("staff-1", "Dr. Ada", "dept-1"))
	requests := newRequestStoreStub(courses)
	svc := newRequestServiceForTest(requests, courses, staff)

	request, err := svc.Submit(context.Background(), SubmitRequestPayload{CourseID: "course-1", TeachingStaffID: "staff-1"})
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), request.ID, DecideRequestPayload{Status: models.RequestStatusApproved}, nil)
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), request.ID, DecideRequestPayload{Status: models.RequestStatusRejected}, nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestCourseRequestServiceDecideInvalidStatus(t *testing.T) {
	courses := newCourseStoreStub(unassignedCourse("course-1", "CS101", "dept-1"))
	staff := newStaffStoreStub(staffMember("staff-1", "Dr. Ada", "dept-1"))
	requests := newRequestStoreStub(courses)
	svc := newRequestServiceForTest(requests, courses, staff)

	request, err := svc.Submit(context.Background(), SubmitRequestPayload{CourseID: "course-1", TeachingStaffID: "staff-1"})
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), request.ID, DecideRequestPayload{Status: "MAYBE"}, nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseRequestServiceApproveAfterCompetingApproval(t *testing.T) {
	courses := newCourseStoreStub(unassignedCourse("course-1", "CS101", "dept-1"))
	staff := newStaffStoreStub(
		staffMember("staff-1", "Dr. Ada", "dept-1"),
		staffMember("staff-2", "Dr. Barbara", "dept-1"),
	)
	requests := newRequestStoreStub(courses)
	svc := newRequestServiceForTest(requests, courses, staff)

	request, err := svc.Submit(context.Background(), SubmitRequestPayload{CourseID: "course-1", TeachingStaffID: "staff-1"})
	require.NoError(t, err)

	// The committed bind refuses because a rival approval landed first;
	// the retry re-reads and reports the course as taken.
	requests.occupiedOnce = true
	requests.rivalStaffID = "staff-2"

	_, err = svc.Decide(context.Background(), request.ID, DecideRequestPayload{Status: models.RequestStatusApproved}, nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrAlreadyAssigned.Code, appErrors.FromError(err).Code)

	course, err := courses.FindByID(context.Background(), "course-1")
	require.NoError(t, err)
	require.Equal(t, "staff-2", *course.TeachingStaffID)

	stored, err := requests.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPending, stored.Status)
}

func TestCourseRequestServiceApproveScheduleConflict(t *testing.T) {
	taught := slottedCourse("course-1", "CS101", "staff-1", "Monday", "08:00-10:00")
	target := unassignedCourse("course-2", "CS202", "dept-1")
	target.ScheduleDay = strPtr("Monday")
	target.ScheduleTime = strPtr("08:00-10:00")

	courses := newCourseStoreStub(taught, target)
	staff := newStaffStoreStub(staffMember("staff-1", "Dr. Ada", "dept-1"))
	requests := newRequestStoreStub(courses)
	svc := newRequestServiceForTest(requests, courses, staff)

	request, err := svc.Submit(context.Background(), SubmitRequestPayload{CourseID: "course-2", TeachingStaffID: "staff-1"})
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), request.ID, DecideRequestPayload{Status: models.RequestStatusApproved}, nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrScheduleConflict.Code, appErrors.FromError(err).Code)

	var detail *models.SlotConflictError
	require.True(t, errors.As(err, &detail))
	require.Equal(t, "course-1", detail.Conflicts[0].CourseID)
}
