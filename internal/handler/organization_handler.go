package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
	"github.com/noah-isme/sma-docs-api/pkg/response"
)

type organizationService interface {
	List(ctx context.Context) ([]models.Organization, error)
	Create(ctx context.Context, req service.CreateOrganizationRequest) (*models.Organization, error)
}

// OrganizationHandler exposes tenant endpoints.
type OrganizationHandler struct {
	organizations organizationService
}

// NewOrganizationHandler constructs OrganizationHandler.
func NewOrganizationHandler(organizations organizationService) *OrganizationHandler {
	return &OrganizationHandler{organizations: organizations}
}

// List godoc
// @Summary List organizations
// @Tags Organizations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /organizations [get]
func (h *OrganizationHandler) List(c *gin.Context) {
	orgs, err := h.organizations.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orgs, nil)
}

// Create godoc
// @Summary Create organization
// @Description The organization code is derived from the name and suffixed on collision.
// @Tags Organizations
// @Accept json
// @Produce json
// @Param payload body service.CreateOrganizationRequest true "Organization payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /organizations [post]
func (h *OrganizationHandler) Create(c *gin.Context) {
	var req service.CreateOrganizationRequest
	if !bindJSON(c, &req) {
		return
	}
	org, err := h.organizations.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, org)
}
