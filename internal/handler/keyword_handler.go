package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
	"github.com/noah-isme/sma-docs-api/pkg/response"
)

type keywordService interface {
	Index(ctx context.Context, req service.IndexKeywordsRequest) (*models.DocumentKeywords, error)
	List(ctx context.Context, orgID string, filter models.KeywordFilter) ([]models.DocumentKeywords, error)
}

// KeywordHandler exposes the document keyword index.
type KeywordHandler struct {
	keywords keywordService
}

// NewKeywordHandler constructs KeywordHandler.
func NewKeywordHandler(keywords keywordService) *KeywordHandler {
	return &KeywordHandler{keywords: keywords}
}

// List godoc
// @Summary List keyword index rows
// @Tags Keywords
// @Produce json
// @Param organizationId query string true "Organization"
// @Param documentId query string false "Document"
// @Param studentId query string false "Student"
// @Param textSearch query string false "Substring of the extracted text"
// @Success 200 {object} response.Envelope
// @Router /document-keywords [get]
func (h *KeywordHandler) List(c *gin.Context) {
	filter := models.KeywordFilter{
		DocumentID: c.Query("documentId"),
		StudentID:  c.Query("studentId"),
		TextSearch: c.Query("textSearch"),
	}
	entries, err := h.keywords.List(c.Request.Context(), queryOrg(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Index godoc
// @Summary Index document keywords
// @Description Keywords are derived from extractedText when omitted.
// @Tags Keywords
// @Accept json
// @Produce json
// @Param payload body service.IndexKeywordsRequest true "Index payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /document-keywords [post]
func (h *KeywordHandler) Index(c *gin.Context) {
	var req service.IndexKeywordsRequest
	if !bindJSON(c, &req) {
		return
	}
	req.OrganizationID = tenantOrg(c, req.OrganizationID)
	entry, err := h.keywords.Index(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}
