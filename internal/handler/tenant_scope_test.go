package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

func TestFolderDeleteScopedToTokenOrganization(t *testing.T) {
	srv := &fakeFolderSrv{err: appErrors.Clone(appErrors.ErrNotFound, "Folder not found")}
	handler := NewFolderHandler(srv)

	c, rec := newTestContext(http.MethodDelete, "/folders?id=folder-b", nil)
	withOrgClaims(c, "user-a", "org-a", models.RoleUser)
	handler.Delete(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "folder-b", srv.deleteArgs.id)
	assert.Equal(t, "org-a", srv.deleteArgs.orgID)
}

func TestTokenOrganizationOverridesRequestedOne(t *testing.T) {
	t.Run("list query", func(t *testing.T) {
		srv := &fakeFolderSrv{}
		c, rec := newTestContext(http.MethodGet, "/folders?organizationId=org-b", nil)
		withOrgClaims(c, "user-a", "org-a", models.RoleUser)
		NewFolderHandler(srv).List(c)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "org-a", srv.listFilter.OrganizationID)
	})

	t.Run("create body", func(t *testing.T) {
		srv := &fakeFolderSrv{}
		c, rec := newTestContext(http.MethodPost, "/folders", map[string]interface{}{"name": "Reports", "organizationId": "org-b"})
		withOrgClaims(c, "user-a", "org-a", models.RoleUser)
		NewFolderHandler(srv).Create(c)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "org-a", srv.created.OrganizationID)
	})

	t.Run("folder move", func(t *testing.T) {
		srv := &fakeFolderSrv{}
		c, rec := newTestContext(http.MethodPatch, "/folders/f-b", map[string]interface{}{"name": "Moved"})
		c.Params = gin.Params{{Key: "id", Value: "f-b"}}
		withOrgClaims(c, "user-a", "org-a", models.RoleUser)
		NewFolderHandler(srv).Update(c)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "org-a", srv.updateOrg)
	})

	t.Run("document patch", func(t *testing.T) {
		srv := &fakeDocumentSrv{}
		c, rec := newTestContext(http.MethodPatch, "/documents/doc-b", map[string]interface{}{"folderId": "f-2"})
		c.Params = gin.Params{{Key: "id", Value: "doc-b"}}
		withOrgClaims(c, "user-a", "org-a", models.RoleUser)
		NewDocumentHandler(srv, false).Patch(c)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "org-a", srv.patchOrg)
	})

	t.Run("document delete", func(t *testing.T) {
		srv := &fakeDocumentSrv{}
		c, _ := newTestContext(http.MethodDelete, "/documents/doc-b?organizationId=org-b", nil)
		c.Params = gin.Params{{Key: "id", Value: "doc-b"}}
		withOrgClaims(c, "user-a", "org-a", models.RoleUser)
		NewDocumentHandler(srv, false).Delete(c)

		assert.Equal(t, "org-a", srv.deleteOrg)
	})
}

func TestRequestedOrganizationUsedWithoutTokenOrganization(t *testing.T) {
	srv := &fakeFolderSrv{}
	c, _ := newTestContext(http.MethodGet, "/folders?organizationId=org-b", nil)
	withClaims(c, "admin-1", models.RoleAdmin)
	NewFolderHandler(srv).List(c)

	assert.Equal(t, "org-b", srv.listFilter.OrganizationID)
}
