package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-dept-api/internal/models"
	"github.com/noah-isme/uni-dept-api/internal/service"
	appErrors "github.com/noah-isme/uni-dept-api/pkg/errors"
	"github.com/noah-isme/uni-dept-api/pkg/response"
)

// RequestHandler handles course request endpoints.
type RequestHandler struct {
	service *service.CourseRequestService
}

// NewRequestHandler constructs a course request handler.
func NewRequestHandler(svc *service.CourseRequestService) *RequestHandler {
	return &RequestHandler{service: svc}
}

// List godoc
// @Summary List course requests
// @Tags Requests
// @Produce json
// @Param course_id query string false "Filter by course"
// @Param teaching_staff_id query string false "Filter by requesting staff"
// @Param department_id query string false "Filter by department snapshot"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /course-requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	filter := models.RequestFilter{
		CourseID:        c.Query("course_id"),
		TeachingStaffID: c.Query("teaching_staff_id"),
		DepartmentID:    c.Query("department_id"),
		Status:          models.RequestStatus(c.Query("status")),
	}
	requests, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Get godoc
// @Summary Get course request by id
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /course-requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	request, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Submit godoc
// @Summary Submit a course request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body service.SubmitRequestPayload true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /course-requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	var payload service.SubmitRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.service.Submit(c.Request.Context(), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Decide godoc
// @Summary Approve or reject a course request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.DecideRequestPayload true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /course-requests/{id} [patch]
func (h *RequestHandler) Decide(c *gin.Context) {
	var payload service.DecideRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Decide(c.Request.Context(), c.Param("id"), payload, identityFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
