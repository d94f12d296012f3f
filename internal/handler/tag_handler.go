package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/response"
)

type tagService interface {
	List(ctx context.Context, orgID string) ([]models.Tag, error)
	Create(ctx context.Context, req service.CreateTagRequest) (*models.Tag, error)
	Attach(ctx context.Context, target models.TagTarget, targetID, orgID string, req service.AttachTagRequest) (*models.TagLink, error)
	Links(ctx context.Context, target models.TagTarget, targetID, orgID string) ([]models.TagLink, error)
	Detach(ctx context.Context, target models.TagTarget, targetID, orgID, tagID string) error
}

// TagHandler exposes tags and their links to documents and folders.
type TagHandler struct {
	tags tagService
}

// NewTagHandler constructs TagHandler.
func NewTagHandler(tags tagService) *TagHandler {
	return &TagHandler{tags: tags}
}

// List godoc
// @Summary List tags
// @Tags Tags
// @Produce json
// @Param organizationId query string true "Organization"
// @Success 200 {object} response.Envelope
// @Router /tags [get]
func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.tags.List(c.Request.Context(), queryOrg(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tags, nil)
}

// Create godoc
// @Summary Create tag
// @Tags Tags
// @Accept json
// @Produce json
// @Param payload body service.CreateTagRequest true "Tag payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tags [post]
func (h *TagHandler) Create(c *gin.Context) {
	var req service.CreateTagRequest
	if !bindJSON(c, &req) {
		return
	}
	req.OrganizationID = tenantOrg(c, req.OrganizationID)
	req.CreatedBy = actorOr(req.CreatedBy, c)
	tag, err := h.tags.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tag)
}

// Attach returns a handler linking a tag to the target named by the :id path parameter.
// @Summary Attach tag
// @Tags Tags
// @Accept json
// @Produce json
// @Param id path string true "Document or folder ID"
// @Param payload body service.AttachTagRequest true "Tag"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/tags [post]
// @Router /folders/{id}/tags [post]
func (h *TagHandler) Attach(target models.TagTarget) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.AttachTagRequest
		if !bindJSON(c, &req) {
			return
		}
		req.AddedBy = actorOr(req.AddedBy, c)
		link, err := h.tags.Attach(c.Request.Context(), target, c.Param("id"), queryOrg(c), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, link)
	}
}

// Links returns a handler listing the tags of a document or folder.
// @Summary List attached tags
// @Tags Tags
// @Produce json
// @Param id path string true "Document or folder ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/tags [get]
// @Router /folders/{id}/tags [get]
func (h *TagHandler) Links(target models.TagTarget) gin.HandlerFunc {
	return func(c *gin.Context) {
		links, err := h.tags.Links(c.Request.Context(), target, c.Param("id"), queryOrg(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, links, nil)
	}
}

// Detach returns a handler removing a tag link.
// @Summary Detach tag
// @Tags Tags
// @Param id path string true "Document or folder ID"
// @Param tagId query string true "Tag ID"
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/tags [delete]
// @Router /folders/{id}/tags [delete]
func (h *TagHandler) Detach(target models.TagTarget) gin.HandlerFunc {
	return func(c *gin.Context) {
		tagID := strings.TrimSpace(c.Query("tagId"))
		if tagID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "tagId is required"))
			return
		}
		if err := h.tags.Detach(c.Request.Context(), target, c.Param("id"), queryOrg(c), tagID); err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{"success": true, "message": "Tag removed from " + string(target)}, nil)
	}
}
