package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-docs-api/internal/middleware"
	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/response"
)

// actorID returns the caller's user id from verified claims, or "" for anonymous requests.
func actorID(c *gin.Context) string {
	if claims := middleware.ClaimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

// actorOr keeps an explicit value and falls back to the caller's id.
func actorOr(value *string, c *gin.Context) *string {
	if value != nil && strings.TrimSpace(*value) != "" {
		return value
	}
	if actor := actorID(c); actor != "" {
		return &actor
	}
	return value
}

// tenantOrg returns the organization a request is scoped to. A verified token's organization
// overrides the requested one, so rows of other tenants resolve as not found.
func tenantOrg(c *gin.Context, requested string) string {
	if claims := middleware.ClaimsFromContext(c); claims != nil && strings.TrimSpace(claims.OrganizationID) != "" {
		return strings.TrimSpace(claims.OrganizationID)
	}
	return strings.TrimSpace(requested)
}

// queryOrg scopes the organizationId query parameter.
func queryOrg(c *gin.Context) string {
	return tenantOrg(c, c.Query("organizationId"))
}

// bindJSON decodes the body and writes a 400 on failure.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if value, err := strconv.Atoi(c.Query(key)); err == nil {
		return value
	}
	return fallback
}

// queryBoolDefaultTrue treats anything except an explicit "false" as true.
func queryBoolDefaultTrue(c *gin.Context, key string) bool {
	return !strings.EqualFold(strings.TrimSpace(c.Query(key)), "false")
}

// parentScope maps the tri-state parentFolderId query: absent, root ("" or "null") or an id.
func parentScope(c *gin.Context) (models.ParentScope, string) {
	raw, ok := c.GetQuery("parentFolderId")
	if !ok {
		return models.ParentAny, ""
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "null") {
		return models.ParentRoot, ""
	}
	return models.ParentExact, raw
}

// verificationStatusQuery parses an optional status filter and writes a 400 for unknown values.
func verificationStatusQuery(c *gin.Context) (models.VerificationStatus, bool) {
	raw := strings.TrimSpace(c.Query("verificationStatus"))
	if raw == "" {
		return "", true
	}
	status, ok := models.ParseVerificationStatus(raw)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, models.InvalidVerificationStatusMessage))
		return "", false
	}
	return status, true
}
