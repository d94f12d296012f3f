package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var metadataRowColumns = []string{"id", "document_type_id", "schema", "version", "is_active", "created_at", "updated_at"}

func TestDocumentTypeRepositoryActiveMetadata(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentTypeRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE document_type_id = $1 AND is_active = TRUE ORDER BY created_at DESC LIMIT 1")).
		WithArgs("dt1").
		WillReturnRows(sqlmock.NewRows(metadataRowColumns).AddRow("m2", "dt1", []byte(`{"type":"object"}`), "2.0", true, now, now))

	entry, err := repo.ActiveMetadata(context.Background(), nil, "dt1")
	require.NoError(t, err)
	assert.Equal(t, "2.0", entry.Version)
	assert.JSONEq(t, `{"type":"object"}`, string(entry.Schema))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentTypeRepositoryMetadataForTypes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentTypeRepository(db)

	empty, err := repo.MetadataForTypes(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM document_type_metadata WHERE document_type_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(metadataRowColumns).
			AddRow("m1", "dt1", []byte(`{}`), "1.0", true, now, now).
			AddRow("m2", "dt2", []byte(`{}`), "1.0", false, now, now))

	entries, err := repo.MetadataForTypes(context.Background(), []string{"dt1", "dt2"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentTypeRepositoryDeactivateMetadata(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentTypeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_type_metadata SET is_active = FALSE")).
		WithArgs("dt1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.DeactivateMetadataWithTx(context.Background(), tx, "dt1"))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentTypeRepositoryListScopesByOrganization(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentTypeRepository(db)
	now := time.Now()
	columns := []string{"id", "name", "description", "organization_id", "created_by", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM document_types WHERE organization_id = $1 ORDER BY name ASC")).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("type-1", "Transcript", nil, "org-1", nil, now, now))
	scoped, err := repo.List(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, scoped, 1)

	mock.ExpectQuery(regexp.QuoteMeta("FROM document_types ORDER BY name ASC")).
		WillReturnRows(sqlmock.NewRows(columns))
	all, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.NoError(t, mock.ExpectationsWereMet())
}
