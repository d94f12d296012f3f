package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
	"github.com/noah-isme/sma-docs-api/pkg/response"
)

type documentTypeService interface {
	List(ctx context.Context, orgID string) ([]models.DocumentType, error)
	Create(ctx context.Context, req service.CreateDocumentTypeRequest) (*models.DocumentType, error)
	Metadata(ctx context.Context, typeID, orgID string) ([]models.DocumentTypeMetadata, error)
	AddMetadataVersion(ctx context.Context, typeID, orgID string, req service.AddMetadataVersionRequest) (*models.DocumentTypeMetadata, error)
}

// DocumentTypeHandler exposes document types and their metadata schema versions.
type DocumentTypeHandler struct {
	types documentTypeService
}

// NewDocumentTypeHandler constructs DocumentTypeHandler.
func NewDocumentTypeHandler(types documentTypeService) *DocumentTypeHandler {
	return &DocumentTypeHandler{types: types}
}

// List godoc
// @Summary List document types
// @Tags DocumentTypes
// @Produce json
// @Param organizationId query string false "Organization"
// @Success 200 {object} response.Envelope
// @Router /document-types [get]
func (h *DocumentTypeHandler) List(c *gin.Context) {
	types, err := h.types.List(c.Request.Context(), queryOrg(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// Create godoc
// @Summary Create document type
// @Description Stores the type with metadata schema version 1.0.
// @Tags DocumentTypes
// @Accept json
// @Produce json
// @Param payload body service.CreateDocumentTypeRequest true "Document type payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /document-types [post]
func (h *DocumentTypeHandler) Create(c *gin.Context) {
	var req service.CreateDocumentTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	req.OrganizationID = tenantOrg(c, req.OrganizationID)
	if req.CreatedBy == "" {
		req.CreatedBy = actorID(c)
	}
	docType, err := h.types.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, docType)
}

// Metadata godoc
// @Summary List metadata schema versions
// @Tags DocumentTypes
// @Produce json
// @Param id path string true "Document type ID"
// @Param organizationId query string false "Organization"
// @Success 200 {object} response.Envelope
// @Router /document-types/{id}/metadata [get]
func (h *DocumentTypeHandler) Metadata(c *gin.Context) {
	versions, err := h.types.Metadata(c.Request.Context(), c.Param("id"), queryOrg(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// AddMetadata godoc
// @Summary Publish metadata schema version
// @Tags DocumentTypes
// @Accept json
// @Produce json
// @Param id path string true "Document type ID"
// @Param organizationId query string false "Organization"
// @Param payload body service.AddMetadataVersionRequest true "Schema"
// @Success 201 {object} response.Envelope
// @Router /document-types/{id}/metadata [post]
func (h *DocumentTypeHandler) AddMetadata(c *gin.Context) {
	var req service.AddMetadataVersionRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.types.AddMetadataVersion(c.Request.Context(), c.Param("id"), queryOrg(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}
