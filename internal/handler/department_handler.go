package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-dept-api/internal/service"
	appErrors "github.com/noah-isme/uni-dept-api/pkg/errors"
	"github.com/noah-isme/uni-dept-api/pkg/response"
)

// DepartmentHandler handles department endpoints.
type DepartmentHandler struct {
	service *service.DepartmentService
	exports *service.ExportService
}

// NewDepartmentHandler constructs a department handler.
func NewDepartmentHandler(svc *service.DepartmentService, exports *service.ExportService) *DepartmentHandler {
	return &DepartmentHandler{service: svc, exports: exports}
}

// List godoc
// @Summary List departments
// @Tags Departments
// @Produce json
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *DepartmentHandler) List(c *gin.Context) {
	search := strings.TrimSpace(c.Query("search"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	departments, pagination, err := h.service.List(c.Request.Context(), search, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, pagination)
}

// Get godoc
// @Summary Get department by id
// @Tags Departments
// @Produce json
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /departments/{id} [get]
func (h *DepartmentHandler) Get(c *gin.Context) {
	department, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, department, nil)
}

// Create godoc
// @Summary Create department
// @Tags Departments
// @Accept json
// @Produce json
// @Param payload body service.CreateDepartmentRequest true "Department payload"
// @Success 201 {object} response.Envelope
// @Router /departments [post]
func (h *DepartmentHandler) Create(c *gin.Context) {
	var req service.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	department, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, department)
}

// Update godoc
// @Summary Update department
// @Tags Departments
// @Accept json
// @Produce json
// @Param id path string true "Department ID"
// @Param payload body service.UpdateDepartmentRequest true "Department payload"
// @Success 200 {object} response.Envelope
// @Router /departments/{id} [put]
func (h *DepartmentHandler) Update(c *gin.Context) {
	var req service.UpdateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	department, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, department, nil)
}

// Delete godoc
// @Summary Delete department
// @Tags Departments
// @Produce json
// @Param id path string true "Department ID"
// @Success 204
// @Router /departments/{id} [delete]
func (h *DepartmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportRoster godoc
// @Summary Export the department course roster
// @Tags Departments
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Department ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /departments/{id}/roster/export [get]
func (h *DepartmentHandler) ExportRoster(c *gin.Context) {
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
	result, err := h.exports.DepartmentRoster(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Download(c, result.FileName, result.ContentType, result.Payload)
}
