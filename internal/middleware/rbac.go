package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/response"
)

// RequireRoles only lets through callers whose token carries one of the roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRolesWhen applies RequireRoles only when enforce is set. Anonymous access is allowed otherwise.
func RequireRolesWhen(enforce bool, roles ...models.UserRole) gin.HandlerFunc {
	if !enforce {
		return func(c *gin.Context) { c.Next() }
	}
	return RequireRoles(roles...)
}

// HasRole reports whether the caller's claims carry one of the roles.
func HasRole(c *gin.Context, roles ...models.UserRole) bool {
	claims := ClaimsFromContext(c)
	if claims == nil {
		return false
	}
	for _, role := range roles {
		if claims.Role == role {
			return true
		}
	}
	return false
}
