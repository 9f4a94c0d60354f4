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

// StaffHandler handles teaching staff endpoints.
type StaffHandler struct {
	service     *service.StaffService
	assignments *service.AssignmentService
}

// NewStaffHandler constructs a staff handler.
func NewStaffHandler(svc *service.StaffService, assignments *service.AssignmentService) *StaffHandler {
	return &StaffHandler{service: svc, assignments: assignments}
}

// List godoc
// @Summary List teaching staff
// @Tags Staff
// @Produce json
// @Param department_id query string false "Filter by department"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /staff [get]
func (h *StaffHandler) List(c *gin.Context) {
	var filter models.StaffFilter
	filter.DepartmentID = c.Query("department_id")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	staff, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, staff, pagination)
}

// Get godoc
// @Summary Get staff member by id
// @Tags Staff
// @Produce json
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /staff/{id} [get]
func (h *StaffHandler) Get(c *gin.Context) {
	member, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, member, nil)
}

// Create godoc
// @Summary Create staff member
// @Tags Staff
// @Accept json
// @Produce json
// @Param payload body service.CreateStaffRequest true "Staff payload"
// @Success 201 {object} response.Envelope
// @Router /staff [post]
func (h *StaffHandler) Create(c *gin.Context) {
	var req service.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	member, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, member)
}

// Update godoc
// @Summary Update staff member
// @Tags Staff
// @Accept json
// @Produce json
// @Param id path string true "Staff ID"
// @Param payload body service.UpdateStaffRequest true "Staff payload"
// @Success 200 {object} response.Envelope
// @Router /staff/{id} [put]
func (h *StaffHandler) Update(c *gin.Context) {
	var req service.UpdateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	member, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, member, nil)
}

// Delete godoc
// @Summary Delete staff member
// @Tags Staff
// @Produce json
// @Param id path string true "Staff ID"
// @Success 204
// @Router /staff/{id} [delete]
func (h *StaffHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Courses godoc
// @Summary List courses assigned to a staff member
// @Tags Staff
// @Produce json
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /staff/{id}/courses [get]
func (h *StaffHandler) Courses(c *gin.Context) {
	courses, err := h.assignments.ListByStaff(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}
