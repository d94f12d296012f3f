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

var folderRowColumns = []string{"id", "name", "description", "parent_folder_id", "student_id", "organization_id", "created_by",
	"storage_folder_id", "depth", "created_at", "updated_at"}

func TestFolderRepositoryListRootsWithStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFolderRepository(db)

	now := time.Now()
	cols := append(append([]string{}, folderRowColumns...), "student_ref_id", "student_full_name")
	rows := sqlmock.NewRows(cols).
		AddRow("f1", "Ann", nil, nil, "s1", "org-1", nil, "f1", 0, now, now, "s1", "Ann").
		AddRow("f2", "Shared", nil, nil, nil, "org-1", nil, "f2", 0, now, now, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN students s ON s.id = f.student_id WHERE f.organization_id = $1 AND f.parent_folder_id IS NULL ORDER BY f.created_at DESC")).
		WithArgs("org-1").
		WillReturnRows(rows)

	items, err := repo.List(context.Background(), models.FolderFilter{OrganizationID: "org-1", Parent: models.ParentRoot})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].Student)
	assert.Equal(t, "Ann", items[0].Student.FullName)
	assert.Nil(t, items[1].Student)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFolderRepositoryListChildrenOfStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFolderRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM folders f WHERE f.organization_id = $1 AND f.student_id = $2 AND f.parent_folder_id = $3 ORDER BY")).
		WithArgs("org-1", "s1", "f1").
		WillReturnRows(sqlmock.NewRows(folderRowColumns))

	items, err := repo.List(context.Background(), models.FolderFilter{OrganizationID: "org-1", StudentID: "s1", Parent: models.ParentExact, ParentFolderID: "f1"})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFolderRepositoryAncestorsIsBounded(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFolderRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "parent_folder_id", "student_id", "organization_id", "level"}).
		AddRow("c", "C", "b", nil, "org-1", 0).
		AddRow("b", "B", "a", nil, "org-1", 1).
		AddRow("a", "A", nil, nil, "org-1", 2)
	mock.ExpectQuery(regexp.QuoteMeta("WITH RECURSIVE chain AS")).
		WithArgs("c", "org-1", 32).
		WillReturnRows(rows)

	chain, err := repo.Ancestors(context.Background(), nil, "c", "org-1", 32)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, "a", chain[2].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFolderRepositoryFindInOrganizationLocksInsideTx(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFolderRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.id = $1 AND f.organization_id = $2 FOR SHARE")).
		WithArgs("f1", "org-1").
		WillReturnRows(sqlmock.NewRows(folderRowColumns).AddRow("f1", "A", nil, nil, nil, "org-1", nil, nil, 0, now, now))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	folder, err := repo.FindInOrganization(context.Background(), tx, "f1", "org-1")
	require.NoError(t, err)
	assert.True(t, folder.IsRoot())
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFolderRepositoryCountContents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFolderRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("(SELECT COUNT(*) FROM folders WHERE parent_folder_id = $1) AS children")).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"children", "documents"}).AddRow(2, 3))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	children, documents, err := repo.CountContents(context.Background(), tx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 2, children)
	assert.Equal(t, 3, documents)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFolderRepositoryDeleteAndShift(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFolderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE folders SET depth = depth + $1")).
		WithArgs(-1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM folders WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.ShiftDepth(context.Background(), tx, []string{"a", "b"}, -1))
	require.NoError(t, repo.ShiftDepth(context.Background(), tx, []string{"a"}, 0))
	removed, err := repo.DeleteWithTx(context.Background(), tx, []string{"a", "b"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
