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

type folderService interface {
	Create(ctx context.Context, req service.CreateFolderRequest) (*models.Folder, error)
	List(ctx context.Context, filter models.FolderFilter) ([]models.FolderListItem, error)
	Get(ctx context.Context, id, orgID string) (*models.Folder, error)
	Breadcrumb(ctx context.Context, id, orgID string) ([]models.FolderNode, error)
	Update(ctx context.Context, id, orgID string, req service.UpdateFolderRequest) (*models.Folder, error)
	Delete(ctx context.Context, id, orgID string, recursive bool) (int64, error)
}

// FolderDeleteResult is the body returned after a folder delete.
type FolderDeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

// FolderHandler exposes the folder hierarchy.
type FolderHandler struct {
	folders folderService
}

// NewFolderHandler constructs FolderHandler.
func NewFolderHandler(folders folderService) *FolderHandler {
	return &FolderHandler{folders: folders}
}

// List godoc
// @Summary List folders
// @Tags Folders
// @Produce json
// @Param organizationId query string true "Organization"
// @Param studentId query string false "Student"
// @Param parentFolderId query string false "Parent folder; empty or null lists roots"
// @Param includeFiles query bool false "Attach files (default true)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /folders [get]
func (h *FolderHandler) List(c *gin.Context) {
	scope, parentID := parentScope(c)
	filter := models.FolderFilter{
		OrganizationID: queryOrg(c),
		StudentID:      c.Query("studentId"),
		Parent:         scope,
		ParentFolderID: parentID,
		IncludeFiles:   queryBoolDefaultTrue(c, "includeFiles"),
	}
	folders, err := h.folders.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, folders, nil)
}

// Create godoc
// @Summary Create folder
// @Tags Folders
// @Accept json
// @Produce json
// @Param payload body service.CreateFolderRequest true "Folder payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /folders [post]
func (h *FolderHandler) Create(c *gin.Context) {
	var req service.CreateFolderRequest
	if !bindJSON(c, &req) {
		return
	}
	req.OrganizationID = tenantOrg(c, req.OrganizationID)
	req.CreatedBy = actorOr(req.CreatedBy, c)
	folder, err := h.folders.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, folder)
}

// Get godoc
// @Summary Get folder
// @Tags Folders
// @Produce json
// @Param id path string true "Folder ID"
// @Param organizationId query string false "Organization"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /folders/{id} [get]
func (h *FolderHandler) Get(c *gin.Context) {
	folder, err := h.folders.Get(c.Request.Context(), c.Param("id"), queryOrg(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, folder, nil)
}

// Path godoc
// @Summary Folder breadcrumb
// @Description Returns the ancestor chain ordered from the root to the folder.
// @Tags Folders
// @Produce json
// @Param id path string true "Folder ID"
// @Param organizationId query string false "Organization"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /folders/{id}/path [get]
func (h *FolderHandler) Path(c *gin.Context) {
	nodes, err := h.folders.Breadcrumb(c.Request.Context(), c.Param("id"), queryOrg(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, nodes, nil)
}

// Update godoc
// @Summary Rename or move folder
// @Tags Folders
// @Accept json
// @Produce json
// @Param id path string true "Folder ID"
// @Param organizationId query string false "Organization"
// @Param payload body service.UpdateFolderRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /folders/{id} [patch]
func (h *FolderHandler) Update(c *gin.Context) {
	var req service.UpdateFolderRequest
	if !bindJSON(c, &req) {
		return
	}
	folder, err := h.folders.Update(c.Request.Context(), c.Param("id"), queryOrg(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, folder, nil)
}

// Delete godoc
// @Summary Delete folder
// @Description Non-empty folders are rejected unless recursive=true.
// @Tags Folders
// @Produce json
// @Param id path string false "Folder ID"
// @Param id query string false "Folder ID"
// @Param organizationId query string false "Organization"
// @Param recursive query bool false "Delete the whole subtree"
// @Success 200 {object} FolderDeleteResult
// @Failure 409 {object} response.Envelope
// @Router /folders/{id} [delete]
func (h *FolderHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		id = c.Query("id")
	}
	if strings.TrimSpace(id) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Folder ID is required"))
		return
	}
	recursive := strings.EqualFold(c.Query("recursive"), "true")
	deleted, err := h.folders.Delete(c.Request.Context(), id, queryOrg(c), recursive)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, FolderDeleteResult{Success: true, Message: "Folder deleted successfully", Deleted: deleted})
}
