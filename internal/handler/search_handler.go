package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
	"github.com/noah-isme/sma-docs-api/pkg/response"
)

type searchService interface {
	Search(ctx context.Context, params models.SearchParams, actorID string) (*models.SearchResult, error)
	Export(ctx context.Context, params models.SearchParams, format, actorID string) (*service.ExportFile, error)
}

// SearchHandler exposes document search and export.
type SearchHandler struct {
	search searchService
}

// NewSearchHandler constructs SearchHandler.
func NewSearchHandler(search searchService) *SearchHandler {
	return &SearchHandler{search: search}
}

func searchParams(c *gin.Context) (models.SearchParams, bool) {
	metadata, err := service.ParseMetadataFilter(c.Query("metadata"))
	if err != nil {
		response.Error(c, err)
		return models.SearchParams{}, false
	}
	status, ok := verificationStatusQuery(c)
	if !ok {
		return models.SearchParams{}, false
	}
	return models.SearchParams{
		OrganizationID: queryOrg(c),
		Keyword:        c.Query("keyword"),
		Metadata:       metadata,
		DocumentTypeID: c.Query("documentTypeId"),
		StudentID:      c.Query("studentId"),
		FolderID:       c.Query("folderId"),
		Status:         status,
		Page:           queryInt(c, "page", 1),
		Limit:          queryInt(c, "limit", 0),
	}, true
}

// Search godoc
// @Summary Search documents
// @Tags Search
// @Produce json
// @Param organizationId query string true "Organization"
// @Param keyword query string false "Keyword matched against the index"
// @Param metadata query string false "JSON object of metadata equality filters"
// @Param documentTypeId query string false "Document type"
// @Param studentId query string false "Student"
// @Param folderId query string false "Folder"
// @Param verificationStatus query string false "PENDING, APPROVED or REJECTED"
// @Param page query int false "Page"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /documents/search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	params, ok := searchParams(c)
	if !ok {
		return
	}
	result, err := h.search.Search(c.Request.Context(), params, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Documents, result.Pagination)
}

// Export godoc
// @Summary Export search results
// @Tags Search
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param organizationId query string true "Organization"
// @Param keyword query string false "Keyword"
// @Param metadata query string false "JSON object of metadata equality filters"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /documents/search/export [get]
func (h *SearchHandler) Export(c *gin.Context) {
	params, ok := searchParams(c)
	if !ok {
		return
	}
	file, err := h.search.Export(c.Request.Context(), params, c.Query("format"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
