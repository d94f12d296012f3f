package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-docs-api/internal/middleware"
	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/response"
)

type documentService interface {
	Create(ctx context.Context, req service.CreateDocumentRequest) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	Count(ctx context.Context, filter models.DocumentFilter) (int, bool, error)
	Get(ctx context.Context, id, orgID string) (*models.Document, error)
	Patch(ctx context.Context, id, orgID, actorID string, req service.PatchDocumentRequest) (*models.Document, error)
	Update(ctx context.Context, id, orgID string, req models.DocumentUpdate) (*models.Document, error)
	Delete(ctx context.Context, id, orgID string) error
	History(ctx context.Context, id, orgID string) ([]models.VerificationHistory, error)
	Share(ctx context.Context, id, orgID string, ttl time.Duration) (*models.ShareLink, error)
	ResolveShare(ctx context.Context, token string) (*models.Document, error)
}

// ShareRequest optionally overrides the share link lifetime.
type ShareRequest struct {
	TTLSeconds int `json:"ttlSeconds"`
}

// DocumentHandler exposes document association endpoints.
type DocumentHandler struct {
	documents documentService
	// verifierRoleRequired restricts verification decisions to admins.
	verifierRoleRequired bool
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents documentService, verifierRoleRequired bool) *DocumentHandler {
	return &DocumentHandler{documents: documents, verifierRoleRequired: verifierRoleRequired}
}

func documentFilter(c *gin.Context) (models.DocumentFilter, bool) {
	status, ok := verificationStatusQuery(c)
	if !ok {
		return models.DocumentFilter{}, false
	}
	return models.DocumentFilter{
		OrganizationID: queryOrg(c),
		StudentID:      c.Query("studentId"),
		FolderID:       c.Query("folderId"),
		DocumentTypeID: c.Query("documentTypeId"),
		Status:         status,
	}, true
}

// List godoc
// @Summary List documents
// @Tags Documents
// @Produce json
// @Param organizationId query string true "Organization"
// @Param studentId query string false "Student"
// @Param folderId query string false "Folder"
// @Param documentTypeId query string false "Document type"
// @Param verificationStatus query string false "PENDING, APPROVED or REJECTED"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	filter, ok := documentFilter(c)
	if !ok {
		return
	}
	docs, err := h.documents.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Count godoc
// @Summary Count documents
// @Tags Documents
// @Produce json
// @Param organizationId query string true "Organization"
// @Param studentId query string false "Student"
// @Param folderId query string false "Folder"
// @Param documentTypeId query string false "Document type"
// @Param verificationStatus query string false "PENDING, APPROVED or REJECTED"
// @Success 200 {object} response.Envelope
// @Router /documents/count [get]
func (h *DocumentHandler) Count(c *gin.Context) {
	filter, ok := documentFilter(c)
	if !ok {
		return
	}
	count, hit, err := h.documents.Count(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, gin.H{"count": count}, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Register uploaded document
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body service.CreateDocumentRequest true "Document payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	var req service.CreateDocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	req.OrganizationID = tenantOrg(c, req.OrganizationID)
	req.UploadedBy = actorOr(req.UploadedBy, c)
	doc, err := h.documents.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Get godoc
// @Summary Get document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Param organizationId query string false "Organization"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"), queryOrg(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Patch godoc
// @Summary Move, edit metadata or verify a document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param organizationId query string false "Organization"
// @Param payload body service.PatchDocumentRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents/{id} [patch]
func (h *DocumentHandler) Patch(c *gin.Context) {
	var req service.PatchDocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.VerificationStatus != nil && h.verifierRoleRequired && !middleware.HasRole(c, models.RoleAdmin) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "Only administrators can verify documents"))
		return
	}
	doc, err := h.documents.Patch(c.Request.Context(), c.Param("id"), queryOrg(c), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Update godoc
// @Summary Partially update a document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id query string true "Document ID"
// @Param organizationId query string true "Organization"
// @Param payload body models.DocumentUpdate true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	orgID := strings.TrimSpace(queryOrg(c))
	if id == "" || orgID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Document ID and organizationId are required"))
		return
	}
	var req models.DocumentUpdate
	if !bindJSON(c, &req) {
		return
	}
	doc, err := h.documents.Update(c.Request.Context(), id, orgID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete godoc
// @Summary Delete document
// @Tags Documents
// @Param id path string true "Document ID"
// @Param organizationId query string false "Organization"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), c.Param("id"), queryOrg(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary Verification history
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Param organizationId query string false "Organization"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/history [get]
func (h *DocumentHandler) History(c *gin.Context) {
	entries, err := h.documents.History(c.Request.Context(), c.Param("id"), queryOrg(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Share godoc
// @Summary Create share link
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param organizationId query string false "Organization"
// @Param payload body ShareRequest false "Lifetime"
// @Success 201 {object} response.Envelope
// @Router /documents/{id}/share [post]
func (h *DocumentHandler) Share(c *gin.Context) {
	var req ShareRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	if req.TTLSeconds < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "ttlSeconds must be positive"))
		return
	}
	link, err := h.documents.Share(c.Request.Context(), c.Param("id"), queryOrg(c), time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Shared godoc
// @Summary Follow share link
// @Tags Documents
// @Param token path string true "Share token"
// @Success 302
// @Failure 400 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /shared/{token} [get]
func (h *DocumentHandler) Shared(c *gin.Context) {
	doc, err := h.documents.ResolveShare(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Redirect(http.StatusFound, doc.StorageURL)
}
