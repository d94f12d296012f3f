package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/response"
)

const maxBulkUploadBytes = 10 << 20

type studentService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	Create(ctx context.Context, req service.CreateStudentRequest) (*models.StudentWithFolder, error)
	BulkImport(ctx context.Context, orgID, createdBy string, r io.Reader) (*models.BulkImportResponse, error)
	DocumentTypes(ctx context.Context, studentID, orgID string) ([]string, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param organizationId query string false "Organization"
// @Param createdBy query string false "Creator"
// @Param search query string false "Match full name or roll number"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		OrganizationID: queryOrg(c),
		CreatedBy:      c.Query("createdBy"),
		Search:         strings.TrimSpace(c.Query("search")),
		Page:           queryInt(c, "page", 1),
		Limit:          queryInt(c, "limit", 0),
	}
	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Create godoc
// @Summary Create student
// @Description Registers the student and its root folder in one transaction.
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.CreateStudentRequest
	if !bindJSON(c, &req) {
		return
	}
	req.OrganizationID = tenantOrg(c, req.OrganizationID)
	if req.CreatedBy == "" {
		req.CreatedBy = actorID(c)
	}
	result, err := h.students.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// BulkUpload godoc
// @Summary Bulk import students from CSV
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Param organizationId formData string true "Organization"
// @Param userId formData string false "Creator"
// @Success 200 {object} models.BulkImportResponse
// @Failure 400 {object} response.Envelope
// @Router /students/bulk-upload [post]
func (h *StudentHandler) BulkUpload(c *gin.Context) {
	orgID := tenantOrg(c, c.PostForm("organizationId"))
	if orgID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "organizationId is required"))
		return
	}
	createdBy := c.PostForm("userId")
	if createdBy == "" {
		createdBy = actorID(c)
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file could not be read"))
		return
	}
	defer file.Close()

	result, err := h.students.BulkImport(c.Request.Context(), orgID, createdBy, io.LimitReader(file, maxBulkUploadBytes))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DocumentTypes godoc
// @Summary Document types already uploaded for a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param organizationId query string true "Organization"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/document-types [get]
func (h *StudentHandler) DocumentTypes(c *gin.Context) {
	ids, err := h.students.DocumentTypes(c.Request.Context(), c.Param("id"), queryOrg(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ids, nil)
}
