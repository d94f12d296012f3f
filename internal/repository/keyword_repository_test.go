package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

func TestKeywordRepositoryUpsertKeepsExistingRowID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewKeywordRepository(db)

	created := time.Now().Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (document_id) DO UPDATE")).
		WithArgs(sqlmock.AnyArg(), "d1", "s1", nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("k-old", created))

	entry := &models.DocumentKeywords{DocumentID: "d1", StudentID: "s1", Keywords: []string{"passport"}}
	require.NoError(t, repo.Upsert(context.Background(), entry))
	assert.Equal(t, "k-old", entry.ID)
	assert.WithinDuration(t, created, entry.CreatedAt, time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKeywordRepositoryListScopesOrganization(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewKeywordRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("JOIN documents d ON d.id = k.document_id WHERE d.organization_id = $1 AND k.student_id = $2 AND k.extracted_text ILIKE $3")).
		WithArgs("org-1", "s1", "%birth%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "student_id", "extracted_text", "keywords", "created_at", "updated_at"}).
			AddRow("k1", "d1", "s1", "birth certificate", "{birth,certif}", now, now))

	entries, err := repo.List(context.Background(), "org-1", models.KeywordFilter{StudentID: "s1", TextSearch: "birth"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"birth", "certif"}, []string(entries[0].Keywords))
	assert.NoError(t, mock.ExpectationsWereMet())
}
