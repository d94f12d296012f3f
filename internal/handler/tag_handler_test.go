package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

type fakeTagSrv struct {
	target   models.TagTarget
	targetID string
	orgID    string
	attached service.AttachTagRequest
	detached string
	created  service.CreateTagRequest
	err      error
}

func (f *fakeTagSrv) List(context.Context, string) ([]models.Tag, error) {
	return []models.Tag{{ID: "tag-1", Name: "urgent"}}, f.err
}

func (f *fakeTagSrv) Create(_ context.Context, req service.CreateTagRequest) (*models.Tag, error) {
	f.created = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Tag{ID: "tag-new", Name: req.Name}, nil
}

func (f *fakeTagSrv) Attach(_ context.Context, target models.TagTarget, targetID, orgID string, req service.AttachTagRequest) (*models.TagLink, error) {
	f.target, f.targetID, f.orgID, f.attached = target, targetID, orgID, req
	if f.err != nil {
		return nil, f.err
	}
	return &models.TagLink{TagID: req.TagID}, nil
}

func (f *fakeTagSrv) Links(_ context.Context, target models.TagTarget, targetID, orgID string) ([]models.TagLink, error) {
	f.target, f.targetID, f.orgID = target, targetID, orgID
	return []models.TagLink{}, f.err
}

func (f *fakeTagSrv) Detach(_ context.Context, target models.TagTarget, targetID, orgID, tagID string) error {
	f.target, f.targetID, f.orgID, f.detached = target, targetID, orgID, tagID
	return f.err
}

func TestTagHandlerAttachToFolder(t *testing.T) {
	srv := &fakeTagSrv{}
	handler := NewTagHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/folders/f-1/tags", map[string]interface{}{"tagId": "tag-1"})
	c.Params = gin.Params{{Key: "id", Value: "f-1"}}
	withClaims(c, "user-4", models.RoleUser)
	handler.Attach(models.TagTargetFolder)(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.TagTargetFolder, srv.target)
	assert.Equal(t, "f-1", srv.targetID)
	require.NotNil(t, srv.attached.AddedBy)
	assert.Equal(t, "user-4", *srv.attached.AddedBy)
}

func TestTagHandlerAttachDuplicate(t *testing.T) {
	handler := NewTagHandler(&fakeTagSrv{err: appErrors.Clone(appErrors.ErrConflict, "Tag already attached")})

	c, rec := newTestContext(http.MethodPost, "/documents/doc-1/tags", map[string]interface{}{"tagId": "tag-1"})
	handler.Attach(models.TagTargetDocument)(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTagHandlerDetach(t *testing.T) {
	srv := &fakeTagSrv{}
	handler := NewTagHandler(srv)

	c, rec := newTestContext(http.MethodDelete, "/documents/doc-1/tags", nil)
	handler.Detach(models.TagTargetDocument)(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, srv.detached)

	c, rec = newTestContext(http.MethodDelete, "/documents/doc-1/tags?tagId=tag-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	handler.Detach(models.TagTargetDocument)(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Tag removed from document"}`, string(decodeEnvelope(t, rec).Data))
	assert.Equal(t, "tag-1", srv.detached)
	assert.Equal(t, models.TagTargetDocument, srv.target)

	srv.err = appErrors.Clone(appErrors.ErrNotFound, "Document tag not found")
	c, rec = newTestContext(http.MethodDelete, "/documents/doc-1/tags?tagId=tag-2", nil)
	handler.Detach(models.TagTargetDocument)(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Document tag not found", decodeEnvelope(t, rec).Error.Message)
}

func TestTagHandlerCreate(t *testing.T) {
	srv := &fakeTagSrv{}
	handler := NewTagHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/tags", map[string]interface{}{"name": "urgent", "organizationId": "org-1", "color": "#ff0000"})
	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "#ff0000", srv.created.Color)
	assert.Nil(t, srv.created.CreatedBy)
}

func TestTagHandlerDetachFolderThroughRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeTagSrv{}
	r := gin.New()
	r.DELETE("/folders/:id/tags", NewTagHandler(srv).Detach(models.TagTargetFolder))

	rec := serveRequest(r, http.MethodDelete, "/folders/f-9/tags?tagId=tag-3", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Tag removed from folder"}`, string(decodeEnvelope(t, rec).Data))
	assert.Equal(t, "f-9", srv.targetID)
}
