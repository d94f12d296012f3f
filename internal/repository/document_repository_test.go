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

var documentRowColumns = []string{"id", "student_id", "folder_id", "document_type_id", "organization_id", "filename", "file_size",
	"mime_type", "storage_file_id", "storage_url", "metadata", "metadata_schema_id", "verification_status",
	"verified_by", "verified_at", "rejection_reason", "uploaded_by", "created_at", "updated_at"}

func documentRow(rows *sqlmock.Rows, id string, status models.VerificationStatus) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "s1", "f1", nil, "org-1", "a.pdf", 10, "application/pdf", "obj-"+id, "https://files/"+id,
		[]byte(`{"k":"v"}`), nil, string(status), nil, nil, nil, "u1", now, now)
}

func TestDocumentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents d WHERE d.organization_id = $1 AND d.folder_id = $2 AND d.verification_status = $3 ORDER BY d.created_at DESC")).
		WithArgs("org-1", "f1", "APPROVED").
		WillReturnRows(documentRow(sqlmock.NewRows(documentRowColumns), "d1", models.VerificationApproved))

	docs, err := repo.List(context.Background(), models.DocumentFilter{OrganizationID: "org-1", FolderID: "f1", Status: models.VerificationApproved})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.JSONEq(t, `{"k":"v"}`, string(docs[0].Metadata))
	assert.Equal(t, models.VerificationApproved, docs[0].VerificationStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents d WHERE d.organization_id = $1 AND d.student_id = $2")).
		WithArgs("org-1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	total, err := repo.Count(context.Background(), models.DocumentFilter{OrganizationID: "org-1", StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryFindForUpdateScopesOrganization(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE d.id = $1 AND d.organization_id = $2 FOR UPDATE")).
		WithArgs("d1", "org-1").
		WillReturnRows(documentRow(sqlmock.NewRows(documentRowColumns), "d1", models.VerificationPending))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	doc, err := repo.FindForUpdate(context.Background(), tx, "d1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, "d1", doc.ID)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO documents").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	doc := &models.Document{StudentID: "s1", FolderID: "f1", OrganizationID: "org-1", Filename: "a.pdf", MimeType: "application/pdf", StorageURL: "u"}
	require.NoError(t, repo.CreateWithTx(context.Background(), tx, doc))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, models.VerificationPending, doc.VerificationStatus)
	assert.Equal(t, "{}", string(doc.Metadata))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	err = repo.DeleteWithTx(context.Background(), tx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryDeleteByFolders(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM documents WHERE folder_id = ANY($1) RETURNING id, storage_file_id")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "storage_file_id"}).AddRow("d1", "obj-1").AddRow("d2", nil))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	removed, err := repo.DeleteByFolders(context.Background(), tx, []string{"f1", "f2"})
	require.NoError(t, err)
	require.Len(t, removed, 2)
	assert.Equal(t, "obj-1", *removed[0].StorageFileID)
	assert.Nil(t, removed[1].StorageFileID)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryExistsForStudentType(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("AND organization_id = $3 AND id <> $4 LIMIT 1")).
		WithArgs("s1", "dt1", "org-1", "d1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	exists, err := repo.ExistsForStudentType(context.Background(), tx, "s1", "dt1", "org-1", "d1")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
