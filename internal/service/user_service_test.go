package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

type mockUserRepo struct {
	users      map[string]*models.User
	listUsers  []models.User
	listCount  int
	lastLimit  int
	lastOffset int
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter, limit, offset int) ([]models.User, int, error) {
	m.lastLimit, m.lastOffset = limit, offset
	return m.listUsers, m.listCount, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) CreateWithTx(ctx context.Context, tx *sqlx.Tx, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	user.ID = "user-1"
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

type mockProfileWriter struct {
	profiles []*models.Student
	err      error
}

func (m *mockProfileWriter) CreateWithTx(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	if m.err != nil {
		return m.err
	}
	student.ID = "student-1"
	m.profiles = append(m.profiles, student)
	return nil
}

func newTestUserService(t *testing.T, repo *mockUserRepo, profiles *mockProfileWriter) (*UserService, func()) {
	tx, mock := newTxProviderMock(t)
	svc := NewUserService(repo, profiles, tx, nil, nil)
	svc.cost = bcrypt.MinCost
	return svc, func() { require.NoError(t, mock.ExpectationsWereMet()) }
}

func TestUserServiceListDefaultsLimit(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Email: "a@example.com"}}, listCount: 51}
	svc := NewUserService(repo, nil, nil, nil, nil)

	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 2})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 50, repo.lastLimit)
	assert.Equal(t, 50, repo.lastOffset)
	assert.Equal(t, 2, pagination.TotalPages)
	assert.True(t, pagination.HasPrevPage)
	assert.False(t, pagination.HasNextPage)
}

func TestUserServiceCreateGeneratesPassword(t *testing.T) {
	repo := &mockUserRepo{}
	profiles := &mockProfileWriter{}
	tx, mock := newTxProviderMock(t)
	svc := NewUserService(repo, profiles, tx, nil, nil)
	svc.cost = bcrypt.MinCost
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Create(context.Background(), CreateUserRequest{
		Name:           "Jane Doe",
		Email:          "jane@example.com",
		Role:           models.RoleUser,
		OrganizationID: "org-1",
	})
	require.NoError(t, err)
	require.Len(t, result.TemporaryPassword, generatedPasswordLength)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(result.User.PasswordHash), []byte(result.TemporaryPassword)))
	require.Len(t, profiles.profiles, 1)
	assert.Equal(t, "Jane Doe", result.Profile.FullName)
	assert.Equal(t, "user-1", *result.Profile.UserID)
	assert.Equal(t, "org-1", result.Profile.OrganizationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserServiceCreateKeepsSuppliedPasswordPrivate(t *testing.T) {
	svc, verify := newTestUserService(t, &mockUserRepo{}, &mockProfileWriter{})
	defer verify()
	svc.tx.(*txProviderMock).mock.ExpectBegin()
	svc.tx.(*txProviderMock).mock.ExpectCommit()

	result, err := svc.Create(context.Background(), CreateUserRequest{
		Name:           "Admin",
		Email:          "admin@example.com",
		Role:           models.RoleAdmin,
		OrganizationID: "org-1",
		Password:       "secret1",
	})
	require.NoError(t, err)
	assert.Empty(t, result.TemporaryPassword)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"u": {ID: "u", Email: "jane@example.com"}}}
	svc, verify := newTestUserService(t, repo, &mockProfileWriter{})
	defer verify()

	_, err := svc.Create(context.Background(), CreateUserRequest{Name: "Jane", Email: "jane@example.com", Role: models.RoleUser, OrganizationID: "org-1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, "User with this email already exists", appErr.Message)
}

func TestUserServiceCreateRollsBackWhenProfileFails(t *testing.T) {
	svc, verify := newTestUserService(t, &mockUserRepo{}, &mockProfileWriter{err: errors.New("boom")})
	defer verify()
	svc.tx.(*txProviderMock).mock.ExpectBegin()
	svc.tx.(*txProviderMock).mock.ExpectRollback()

	_, err := svc.Create(context.Background(), CreateUserRequest{Name: "Jane", Email: "jane@example.com", Role: models.RoleUser, OrganizationID: "org-1"})
	require.Error(t, err)
	assert.Equal(t, 500, appErrors.FromError(err).Status)
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	svc, verify := newTestUserService(t, &mockUserRepo{}, &mockProfileWriter{})
	defer verify()

	_, err := svc.Create(context.Background(), CreateUserRequest{Name: "Jane", Email: "jane@example.com", Role: "GUEST", OrganizationID: "org-1"})
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}
