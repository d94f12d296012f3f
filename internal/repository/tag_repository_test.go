package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

func TestTagRepositoryCreateDefaultsColor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTagRepository(db)

	mock.ExpectExec("INSERT INTO tags").WillReturnResult(sqlmock.NewResult(1, 1))

	tag := &models.Tag{Name: "urgent", OrganizationID: "org-1"}
	require.NoError(t, repo.Create(context.Background(), tag))
	assert.Equal(t, models.DefaultTagColor, tag.Color)
	assert.NotEmpty(t, tag.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTagRepositoryLinkPicksTable(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTagRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO folder_tags (id, folder_id, tag_id, added_by, created_at)")).
		WithArgs(sqlmock.AnyArg(), "f1", "t1", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_tags (id, document_id, tag_id, added_by, created_at)")).
		WithArgs(sqlmock.AnyArg(), "d1", "t1", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Link(context.Background(), models.TagTargetFolder, &models.TagLink{TargetID: "f1", TagID: "t1"}))
	require.NoError(t, repo.Link(context.Background(), models.TagTargetDocument, &models.TagLink{TargetID: "d1", TagID: "t1"}))
	assert.Error(t, repo.Link(context.Background(), models.TagTarget("student"), &models.TagLink{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTagRepositoryListLinksIncludesTag(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTagRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "target_id", "tag_id", "added_by", "created_at", "tag_name", "tag_color",
		"tag_organization_id", "tag_created_by", "tag_created_at", "tag_updated_at"}).
		AddRow("l1", "d1", "t1", "u1", now, "urgent", "#ff0000", "org-1", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM document_tags l JOIN tags t ON t.id = l.tag_id")).
		WithArgs("d1").
		WillReturnRows(rows)

	links, err := repo.ListLinks(context.Background(), models.TagTargetDocument, "d1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.NotNil(t, links[0].Tag)
	assert.Equal(t, "urgent", links[0].Tag.Name)
	assert.Equal(t, "d1", links[0].TargetID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTagRepositoryUnlinkMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTagRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM folder_tags WHERE folder_id = $1 AND tag_id = $2")).
		WithArgs("f1", "t1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Unlink(context.Background(), models.TagTargetFolder, "f1", "t1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
