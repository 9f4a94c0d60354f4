package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-dept-api/internal/middleware"
	"github.com/noah-isme/uni-dept-api/internal/models"
	"github.com/noah-isme/uni-dept-api/internal/repository"
	"github.com/noah-isme/uni-dept-api/internal/service"
)

type requestRepoStub struct {
	requests map[string]*models.CourseRequest
	courses  *courseRepoStub
	nextID   int
}

func newRequestRepoStub(courses *courseRepoStub) *requestRepoStub {
	return &requestRepoStub{requests: make(map[string]*models.CourseRequest), courses: courses}
}

func (s *requestRepoStub) Create(ctx context.Context, request *models.CourseRequest) error {
	s.nextID++
	request.ID = fmt.Sprintf("req-%d", s.nextID)
	request.RequestedAt = time.Now().UTC()
	copy := *request
	s.requests[request.ID] = &copy
	return nil
}

func (s *requestRepoStub) GetByID(ctx context.Context, id string) (*models.CourseRequest, error) {
	request, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *request
	return &copy, nil
}

func (s *requestRepoStub) List(ctx context.Context, filter models.RequestFilter) ([]models.CourseRequest, error) {
	var result []models.CourseRequest
	for _, request := range s.requests {
		if filter.CourseID != "" && request.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && request.Status != filter.Status {
			continue
		}
		result = append(result, *request)
	}
	return result, nil
}

func (s *requestRepoStub) ExistsPending(ctx context.Context, courseID, staffID string) (bool, error) {
	for _, request := range s.requests {
		if request.CourseID == courseID && request.TeachingStaffID == staffID && request.Status == models.RequestStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *requestRepoStub) Reject(ctx context.Context, requestID string, note *string, decidedBy *string) error {
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

func (s *requestRepoStub) Approve(ctx context.Context, p repository.ApproveParams) error {
	request, ok := s.requests[p.RequestID]
	if !ok || request.Status != models.RequestStatusPending {
		return repository.ErrRequestNotPending
	}
	course, ok := s.courses.courses[p.CourseID]
	if !ok || course.TeachingStaffID != nil {
		return repository.ErrCourseOccupied
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

func newRequestFixture(requests *requestRepoStub, courses *courseRepoStub, staff *staffRepoStub) *RequestHandler {
	resolver := service.NewConflictResolver(courses)
	svc := service.NewCourseRequestService(requests, courses, staff, resolver, nil, nil, 3, nil, nil)
	return NewRequestHandler(svc)
}

func TestRequestHandlerSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	courses := newCourseRepoStub(models.Course{ID: "course-1", Code: "CS101", Name: "Algorithms", DepartmentID: "dept-1", Version: 1})
	staff := newStaffRepoStub(models.TeachingStaff{ID: "staff-1", Name: "Dr. Ada", DepartmentID: "dept-1"})
	requests := newRequestRepoStub(courses)
	handler := newRequestFixture(requests, courses, staff)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"course_id":"course-1","teaching_staff_id":"staff-1","note":"my research area"}`
	req, _ := http.NewRequest(http.MethodPost, "/course-requests", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)

	env := decodeEnvelope(t, w)
	var request models.CourseRequest
	require.NoError(t, json.Unmarshal(env.Data, &request))
	assert.Equal(t, models.RequestStatusPending, request.Status)
	assert.Equal(t, "Dr. Ada", request.StaffName)
	assert.Equal(t, "dept-1", request.DepartmentID)
}

func TestRequestHandlerSubmitInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	courses := newCourseRepoStub()
	handler := newRequestFixture(newRequestRepoStub(courses), courses, newStaffRepoStub())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/course-requests", bytes.NewBufferString(`{"course_id":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerDecideApprove(t *testing.T) {
	gin.SetMode(gin.TestMode)
	courses := newCourseRepoStub(models.Course{ID: "course-1", Code: "CS101", Name: "Algorithms", DepartmentID: "dept-1", Version: 1})
	staff := newStaffRepoStub(models.TeachingStaff{ID: "staff-1", Name: "Dr. Ada", DepartmentID: "dept-1"})
	requests := newRequestRepoStub(courses)
	requests.requests["req-1"] = &models.CourseRequest{
		ID: "req-1", CourseID: "course-1", TeachingStaffID: "staff-1",
		DepartmentID: "dept-1", StaffName: "Dr. Ada", Status: models.RequestStatusPending,
	}
	handler := newRequestFixture(requests, courses, staff)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/course-requests/req-1", bytes.NewBufferString(`{"status":"APPROVED"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextIdentityKey, &models.IdentityClaims{UserID: "chair-1"})

	handler.Decide(c)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	var result service.DecisionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.NotNil(t, result.Request)
	assert.Equal(t, models.RequestStatusApproved, result.Request.Status)
	require.NotNil(t, result.Request.DecidedBy)
	assert.Equal(t, "chair-1", *result.Request.DecidedBy)
	require.NotNil(t, result.Course)
	require.NotNil(t, result.Course.TeachingStaffID)
	assert.Equal(t, "staff-1", *result.Course.TeachingStaffID)
}

func TestRequestHandlerDecideTwice(t *testing.T) {
	gin.SetMode(gin.TestMode)
	courses := newCourseRepoStub(models.Course{ID: "course-1", Code: "CS101", Name: "Algorithms", DepartmentID: "dept-1", Version: 1})
	requests := newRequestRepoStub(courses)
	now := time.Now().UTC()
	requests.requests["req-1"] = &models.CourseRequest{
		ID: "req-1", CourseID: "course-1", TeachingStaffID: "staff-1",
		DepartmentID: "dept-1", StaffName: "Dr. Ada",
		Status: models.RequestStatusRejected, DecidedAt: &now,
	}
	handler := newRequestFixture(requests, courses, newStaffRepoStub())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/course-requests/req-1", bytes.NewBufferString(`{"status":"APPROVED"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Decide(c)
	require.Equal(t, http.StatusConflict, w.Code)

	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
}

func TestRequestHandlerGetMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	courses := newCourseRepoStub()
	handler := newRequestFixture(newRequestRepoStub(courses), courses, newStaffRepoStub())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/course-requests/req-404", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-404"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
