package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

type mockTagRepo struct {
	tags      map[string]*models.Tag
	links     map[models.TagTarget][]models.TagLink
	createErr error
	linkErr   error
}

func newMockTagRepo(tags ...*models.Tag) *mockTagRepo {
	repo := &mockTagRepo{tags: map[string]*models.Tag{}, links: map[models.TagTarget][]models.TagLink{}}
	for _, tag := range tags {
		repo.tags[tag.ID] = tag
	}
	return repo
}

func (m *mockTagRepo) List(ctx context.Context, orgID string) ([]models.Tag, error) {
	out := []models.Tag{}
	for _, tag := range m.tags {
		if tag.OrganizationID == orgID {
			out = append(out, *tag)
		}
	}
	return out, nil
}

func (m *mockTagRepo) FindInOrganization(ctx context.Context, id, orgID string) (*models.Tag, error) {
	if tag, ok := m.tags[id]; ok && tag.OrganizationID == orgID {
		return tag, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTagRepo) Create(ctx context.Context, tag *models.Tag) error {
	if m.createErr != nil {
		return m.createErr
	}
	tag.ID = "tag-new"
	m.tags[tag.ID] = tag
	return nil
}

func (m *mockTagRepo) Link(ctx context.Context, target models.TagTarget, link *models.TagLink) error {
	if m.linkErr != nil {
		return m.linkErr
	}
	link.ID = "link-1"
	m.links[target] = append(m.links[target], *link)
	return nil
}

func (m *mockTagRepo) ListLinks(ctx context.Context, target models.TagTarget, targetID string) ([]models.TagLink, error) {
	out := []models.TagLink{}
	for _, link := range m.links[target] {
		if link.TargetID == targetID {
			out = append(out, link)
		}
	}
	return out, nil
}

func (m *mockTagRepo) Unlink(ctx context.Context, target models.TagTarget, targetID, tagID string) error {
	links := m.links[target]
	for i, link := range links {
		if link.TargetID == targetID && link.TagID == tagID {
			m.links[target] = append(links[:i], links[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func newTestTagService(repo *mockTagRepo) *TagService {
	docs := newMockDocumentRepo(&models.Document{ID: "doc-1", OrganizationID: "org-1"})
	folders := newMemoryFolderRepo(&models.Folder{ID: "folder-1", OrganizationID: "org-1"})
	return NewTagService(repo, docs, folders, nil, nil)
}

func TestTagServiceCreate(t *testing.T) {
	svc := newTestTagService(newMockTagRepo())

	tag, err := svc.Create(context.Background(), CreateTagRequest{Name: " Urgent ", OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, "Urgent", tag.Name)
	assert.Equal(t, models.DefaultTagColor, tag.Color)

	tag, err = svc.Create(context.Background(), CreateTagRequest{Name: "Archive", OrganizationID: "org-1", Color: "#FFF"})
	require.NoError(t, err)
	assert.Equal(t, "#FFF", tag.Color)
}

func TestTagServiceCreateErrors(t *testing.T) {
	svc := newTestTagService(newMockTagRepo())
	_, err := svc.Create(context.Background(), CreateTagRequest{Name: "Urgent", OrganizationID: "org-1", Color: "red"})
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)

	_, err = svc.Create(context.Background(), CreateTagRequest{OrganizationID: "org-1"})
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)

	repo := newMockTagRepo()
	repo.createErr = errUniqueViolation
	_, err = newTestTagService(repo).Create(context.Background(), CreateTagRequest{Name: "Urgent", OrganizationID: "org-1"})
	require.Error(t, err)
	assert.Equal(t, 409, appErrors.FromError(err).Status)
}

func TestTagServiceAttachAndDetach(t *testing.T) {
	repo := newMockTagRepo(
		&models.Tag{ID: "tag-1", Name: "Urgent", OrganizationID: "org-1"},
		&models.Tag{ID: "tag-x", Name: "Foreign", OrganizationID: "org-2"},
	)
	svc := newTestTagService(repo)
	ctx := context.Background()

	link, err := svc.Attach(ctx, models.TagTargetDocument, "doc-1", "", AttachTagRequest{TagID: "tag-1"})
	require.NoError(t, err)
	assert.Equal(t, "Urgent", link.Tag.Name)

	links, err := svc.Links(ctx, models.TagTargetDocument, "doc-1", "")
	require.NoError(t, err)
	assert.Len(t, links, 1)

	_, err = svc.Attach(ctx, models.TagTargetFolder, "folder-1", "", AttachTagRequest{TagID: "tag-x"})
	require.Error(t, err)
	assert.Equal(t, "Tag not found", appErrors.FromError(err).Message)

	_, err = svc.Attach(ctx, models.TagTargetFolder, "missing", "", AttachTagRequest{TagID: "tag-1"})
	require.Error(t, err)
	assert.Equal(t, "Folder not found", appErrors.FromError(err).Message)

	require.NoError(t, svc.Detach(ctx, models.TagTargetDocument, "doc-1", "", "tag-1"))
	err = svc.Detach(ctx, models.TagTargetDocument, "doc-1", "", "tag-1")
	require.Error(t, err)
	assert.Equal(t, "Document tag not found", appErrors.FromError(err).Message)
}

func TestTagServiceAttachDuplicate(t *testing.T) {
	repo := newMockTagRepo(&models.Tag{ID: "tag-1", OrganizationID: "org-1"})
	repo.linkErr = errUniqueViolation
	_, err := newTestTagService(repo).Attach(context.Background(), models.TagTargetDocument, "doc-1", "", AttachTagRequest{TagID: "tag-1"})
	require.Error(t, err)
	assert.Equal(t, 409, appErrors.FromError(err).Status)
}

func TestTagServiceRejectsTargetsOfOtherOrganizations(t *testing.T) {
	repo := newMockTagRepo(&models.Tag{ID: "tag-1", OrganizationID: "org-1"})
	svc := newTestTagService(repo)
	ctx := context.Background()

	_, err := svc.Attach(ctx, models.TagTargetDocument, "doc-1", "org-2", AttachTagRequest{TagID: "tag-1"})
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
	assert.Equal(t, "Document not found", appErrors.FromError(err).Message)

	_, err = svc.Links(ctx, models.TagTargetFolder, "folder-1", "org-2")
	require.Error(t, err)
	assert.Equal(t, "Folder not found", appErrors.FromError(err).Message)

	_, err = svc.Attach(ctx, models.TagTargetDocument, "doc-1", "org-1", AttachTagRequest{TagID: "tag-1"})
	require.NoError(t, err)

	err = svc.Detach(ctx, models.TagTargetDocument, "doc-1", "org-2", "tag-1")
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
	links, err := svc.Links(ctx, models.TagTargetDocument, "doc-1", "org-1")
	require.NoError(t, err)
	assert.Len(t, links, 1)
}
