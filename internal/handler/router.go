package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-docs-api/internal/middleware"
	"github.com/noah-isme/sma-docs-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Organizations *OrganizationHandler
	Users         *UserHandler
	Students      *StudentHandler
	Folders       *FolderHandler
	Documents     *DocumentHandler
	DocumentTypes *DocumentTypeHandler
	Tags          *TagHandler
	Keywords      *KeywordHandler
	Search        *SearchHandler
	Metrics       *MetricsHandler
}

// RouteOptions configures authentication and throttling of the API group.
type RouteOptions struct {
	Validator   middleware.TokenValidator
	RequireAuth bool
	// SearchLimiter throttles search and export. Nil disables it.
	SearchLimiter gin.HandlerFunc
}

// RegisterRoutes mounts the document API on rg.
//
//	GET    /organizations, POST /organizations, POST /organizationcreation
//	GET    /users, POST /users
//	GET    /students, POST /students, POST /students/bulk-upload, GET /students/:id/document-types
//	GET    /folders, POST /folders, GET|PATCH|DELETE /folders/:id, DELETE /folders?id=
//	GET    /folders/:id/path, POST|GET|DELETE /folders/:id/tags
//	GET    /documents, POST /documents, PUT /documents?id=, GET /documents/count
//	GET    /documents/search, GET /documents/search/export
//	GET|PATCH|DELETE /documents/:id, GET /documents/:id/history, POST /documents/:id/share
//	POST|GET|DELETE /documents/:id/tags
//	GET    /shared/:token
//	GET    /document-types, POST /document-types, GET|POST /document-types/:id/metadata
//	GET    /tags, POST /tags
//	GET    /document-keywords, POST /document-keywords
//	GET    /metrics/summary
func RegisterRoutes(rg *gin.RouterGroup, h Handlers, opts RouteOptions) {
	// Share links are bearer capabilities and never require a session token.
	rg.GET("/shared/:token", h.Documents.Shared)

	api := rg.Group("")
	if opts.Validator != nil {
		api.Use(middleware.Authenticate(opts.Validator, opts.RequireAuth))
	}
	adminOnly := middleware.RequireRolesWhen(opts.RequireAuth, models.RoleAdmin)

	api.GET("/organizations", h.Organizations.List)
	api.POST("/organizations", h.Organizations.Create)
	api.POST("/organizationcreation", h.Organizations.Create)

	api.GET("/users", h.Users.List)
	api.POST("/users", adminOnly, h.Users.Create)

	students := api.Group("/students")
	students.GET("", h.Students.List)
	students.POST("", h.Students.Create)
	students.POST("/bulk-upload", h.Students.BulkUpload)
	students.GET("/:id/document-types", h.Students.DocumentTypes)

	folders := api.Group("/folders")
	folders.GET("", h.Folders.List)
	folders.POST("", h.Folders.Create)
	folders.DELETE("", h.Folders.Delete)
	folders.GET("/:id", h.Folders.Get)
	folders.PATCH("/:id", h.Folders.Update)
	folders.DELETE("/:id", h.Folders.Delete)
	folders.GET("/:id/path", h.Folders.Path)
	folders.POST("/:id/tags", h.Tags.Attach(models.TagTargetFolder))
	folders.GET("/:id/tags", h.Tags.Links(models.TagTargetFolder))
	folders.DELETE("/:id/tags", h.Tags.Detach(models.TagTargetFolder))

	documents := api.Group("/documents")
	documents.GET("", h.Documents.List)
	documents.POST("", h.Documents.Create)
	documents.PUT("", h.Documents.Update)
	documents.GET("/count", middleware.WithResponseMeta(), h.Documents.Count)
	search := documents.Group("/search")
	if opts.SearchLimiter != nil {
		search.Use(opts.SearchLimiter)
	}
	search.GET("", h.Search.Search)
	search.GET("/export", h.Search.Export)
	documents.GET("/:id", h.Documents.Get)
	documents.PATCH("/:id", h.Documents.Patch)
	documents.DELETE("/:id", h.Documents.Delete)
	documents.GET("/:id/history", h.Documents.History)
	documents.POST("/:id/share", h.Documents.Share)
	documents.POST("/:id/tags", h.Tags.Attach(models.TagTargetDocument))
	documents.GET("/:id/tags", h.Tags.Links(models.TagTargetDocument))
	documents.DELETE("/:id/tags", h.Tags.Detach(models.TagTargetDocument))

	docTypes := api.Group("/document-types")
	docTypes.GET("", h.DocumentTypes.List)
	docTypes.POST("", h.DocumentTypes.Create)
	docTypes.GET("/:id/metadata", h.DocumentTypes.Metadata)
	docTypes.POST("/:id/metadata", h.DocumentTypes.AddMetadata)

	api.GET("/tags", h.Tags.List)
	api.POST("/tags", h.Tags.Create)

	api.GET("/document-keywords", h.Keywords.List)
	api.POST("/document-keywords", h.Keywords.Index)

	if h.Metrics != nil {
		api.GET("/metrics/summary", h.Metrics.Summary)
	}
}
