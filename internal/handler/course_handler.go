package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-dept-api/internal/models"
	"github.com/noah-isme/uni-dept-api/internal/service"
	appErrors "github.com/noah-isme/uni-dept-api/pkg/errors"
	"github.com/noah-isme/uni-dept-api/pkg/response"
)

// CourseHandler handles course CRUD and staff binding endpoints.
type CourseHandler struct {
	service     *service.CourseService
	assignments *service.AssignmentService
}

// NewCourseHandler constructs a course handler.
func NewCourseHandler(svc *service.CourseService, assignments *service.AssignmentService) *CourseHandler {
	return &CourseHandler{service: svc, assignments: assignments}
}

// AssignStaffRequest is the staff binding payload.
type AssignStaffRequest struct {
	TeachingStaffID string `json:"teaching_staff_id" binding:"required"`
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param department_id query string false "Filter by department"
// @Param teaching_staff_id query string false "Filter by assigned staff"
// @Param unassigned query bool false "Only unassigned courses"
// @Param semester query string false "Filter by semester"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var filter models.CourseFilter
	filter.DepartmentID = c.Query("department_id")
	filter.TeachingStaffID = c.Query("teaching_staff_id")
	filter.Semester = strings.TrimSpace(c.Query("semester"))
	if unassigned, err := strconv.ParseBool(c.DefaultQuery("unassigned", "false")); err == nil {
		filter.Unassigned = unassigned
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	courses, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get course by id
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.UpdateCourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	var req service.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 204
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Assign godoc
// @Summary Assign a staff member to a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body AssignStaffRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/assign [post]
func (h *CourseHandler) Assign(c *gin.Context) {
	var req AssignStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.assignments.Assign(c.Request.Context(), c.Param("id"), req.TeachingStaffID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Unassign godoc
// @Summary Clear the staff binding of a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/unassign [post]
func (h *CourseHandler) Unassign(c *gin.Context) {
	course, err := h.assignments.Unassign(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Unassigned godoc
// @Summary List unassigned courses of a department
// @Tags Departments
// @Produce json
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /departments/{id}/unassigned-courses [get]
func (h *CourseHandler) Unassigned(c *gin.Context) {
	courses, err := h.assignments.ListUnassigned(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}
