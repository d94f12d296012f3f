package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

type mockStudentRepo struct {
	students   map[string]*models.Student
	rolls      map[string]bool
	created    []*models.Student
	typeIDs    []string
	lastFilter models.StudentFilter
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter, limit, offset int) ([]models.Student, int, error) {
	m.lastFilter = filter
	return nil, 0, nil
}

func (m *mockStudentRepo) FindInOrganization(ctx context.Context, q sqlx.QueryerContext, id, orgID string) (*models.Student, error) {
	if student, ok := m.students[id]; ok && student.OrganizationID == orgID {
		copy := *student
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) RollNumberExists(ctx context.Context, q sqlx.QueryerContext, orgID, rollNumber string) (bool, error) {
	return m.rolls[rollNumber], nil
}

func (m *mockStudentRepo) ExistingRollNumbers(ctx context.Context, orgID string, rollNumbers []string) ([]string, error) {
	var existing []string
	for _, roll := range rollNumbers {
		if m.rolls[roll] {
			existing = append(existing, roll)
		}
	}
	return existing, nil
}

func (m *mockStudentRepo) CreateWithTx(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	student.ID = "student-" + derefString(student.RollNumber)
	m.created = append(m.created, student)
	return nil
}

func (m *mockStudentRepo) DocumentTypeIDs(ctx context.Context, studentID, orgID string) ([]string, error) {
	return m.typeIDs, nil
}

type mockFolderWriter struct {
	folders []*models.Folder
	err     error
}

func (m *mockFolderWriter) CreateWithTx(ctx context.Context, tx *sqlx.Tx, folder *models.Folder) error {
	if m.err != nil {
		return m.err
	}
	m.folders = append(m.folders, folder)
	return nil
}

func validStudentRequest() CreateStudentRequest {
	return CreateStudentRequest{
		FullName:       "Jane Doe",
		RollNumber:     "R-01",
		OrganizationID: "org-1",
		CreatedBy:      "user-1",
		SessionYear:    "2024",
		DateOfBirth:    "2008-04-01",
	}
}

func TestStudentServiceCreateAddsRootFolder(t *testing.T) {
	repo := &mockStudentRepo{}
	folders := &mockFolderWriter{}
	tx, mock := newTxProviderMock(t)
	svc := NewStudentService(repo, folders, tx, nil, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Create(context.Background(), validStudentRequest())
	require.NoError(t, err)
	require.Len(t, folders.folders, 1)
	folder := result.Folder
	assert.Equal(t, "Jane Doe_R-01_2024", folder.Name)
	assert.Equal(t, "Main folder for student Jane Doe", *folder.Description)
	assert.Equal(t, 0, folder.Depth)
	assert.Equal(t, result.Student.ID, *folder.StudentID)
	assert.Equal(t, "folders/"+folder.ID, *folder.StorageFolderID)
	assert.Nil(t, folder.ParentFolderID)
	assert.Equal(t, "2008-04-01", result.Student.DateOfBirth.Format("2006-01-02"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentServiceCreateDuplicateRollNumber(t *testing.T) {
	repo := &mockStudentRepo{rolls: map[string]bool{"R-01": true}}
	folders := &mockFolderWriter{}
	tx, mock := newTxProviderMock(t)
	svc := NewStudentService(repo, folders, tx, nil, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), validStudentRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 409, appErr.Status)
	assert.Equal(t, "Student with roll number R-01 already exists", appErr.Message)
	assert.Empty(t, repo.created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentServiceCreateRollsBackWhenFolderFails(t *testing.T) {
	repo := &mockStudentRepo{}
	tx, mock := newTxProviderMock(t)
	svc := NewStudentService(repo, &mockFolderWriter{err: errUniqueViolation}, tx, nil, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), validStudentRequest())
	require.Error(t, err)
	assert.Equal(t, 409, appErrors.FromError(err).Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, &mockFolderWriter{}, nil, nil, nil)

	req := validStudentRequest()
	req.SessionYear = ""
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)

	req = validStudentRequest()
	req.DateOfBirth = "01/04/2008"
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestStudentServiceBulkImport(t *testing.T) {
	repo := &mockStudentRepo{rolls: map[string]bool{"R-09": true}}
	folders := &mockFolderWriter{}
	tx, mock := newTxProviderMock(t)
	svc := NewStudentService(repo, folders, tx, nil, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	csvData := "\ufefffullName,rollNumber,dateOfBirth,sessionYear,fatherName,email,phone,address,nationalId,passportNumber\n" +
		"Ann One,R-01,2008-01-01,2024,,ann@example.com,,,,\n" +
		"Bob Two,R-02,2008-13-01,2024,,,,,,\n" +
		"Cid Three,R-01,2008-02-02,2024,,,,,,\n" +
		",,,,,,,,,\n" +
		"Dee Four,R-09,2008-03-03,2024,,,,,,\n" +
		"Eve Five,R-05,2008-04-04,2024,,not-an-email,,,,\n" +
		"Fay Six,R-06,2008-05-05,2024,Sam,,,,,\n"

	resp, err := svc.BulkImport(context.Background(), "org-1", "user-1", strings.NewReader(csvData))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Results.Success)
	assert.Equal(t, 4, resp.Results.Failed)
	assert.Equal(t, "Processed 6 records. 2 students added with folders, 4 failed.", resp.Message)
	require.Len(t, folders.folders, 2)

	rows := make([]int, 0, len(resp.Results.Errors))
	for _, e := range resp.Results.Errors {
		rows = append(rows, e.Row)
	}
	assert.ElementsMatch(t, []int{2, 3, 4, 5}, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentServiceBulkImportEmptyFile(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, &mockFolderWriter{}, nil, nil, nil)

	_, err := svc.BulkImport(context.Background(), "org-1", "user-1", strings.NewReader(""))
	require.Error(t, err)
	assert.Equal(t, "CSV file is empty", appErrors.FromError(err).Message)

	_, err = svc.BulkImport(context.Background(), "org-1", "user-1", strings.NewReader("fullName,rollNumber\n"))
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestStudentServiceDocumentTypes(t *testing.T) {
	repo := &mockStudentRepo{
		students: map[string]*models.Student{"s1": {ID: "s1", OrganizationID: "org-1"}},
		typeIDs:  []string{"dt1", "dt2"},
	}
	svc := NewStudentService(repo, &mockFolderWriter{}, nil, nil, nil)

	ids, err := svc.DocumentTypes(context.Background(), "s1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"dt1", "dt2"}, ids)

	_, err = svc.DocumentTypes(context.Background(), "s1", "org-2")
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}
