package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/repository"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

const (
	generatedPasswordLength = 12
	passwordAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*()"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter, limit, offset int) ([]models.User, int, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, user *models.User) error
}

type userProfileWriter interface {
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, student *models.Student) error
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Name           string          `json:"name" validate:"required"`
	Email          string          `json:"email" validate:"required,email"`
	Phone          *string         `json:"phone"`
	Role           models.UserRole `json:"role" validate:"required,oneof=ADMIN USER"`
	OrganizationID string          `json:"organizationId" validate:"required"`
	Password       string          `json:"password" validate:"omitempty,min=6"`
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	profiles  userProfileWriter
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	cost      int
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, profiles userProfileWriter, tx txProvider, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, profiles: profiles, tx: tx, validator: validate, logger: logger, cost: bcrypt.DefaultCost}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	page, limit, offset := models.PageWindow(filter.Page, filter.Limit, 50, 0)
	users, total, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, models.NewPagination(page, limit, total), nil
}

// Create registers a user and its student profile in one transaction.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (result *models.UserWithProfile, err error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid user payload")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "User with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to check email")
	}

	password := req.Password
	generated := password == ""
	if generated {
		if password, err = generatePassword(generatedPasswordLength); err != nil {
			return nil, internalError(err, "failed to generate password")
		}
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	user := &models.User{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		PasswordHash:   string(hashed),
		Role:           req.Role,
		OrganizationID: req.OrganizationID,
		IsActive:       true,
	}
	if err = s.repo.CreateWithTx(ctx, tx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "User with this email already exists")
		}
		return nil, internalError(err, "failed to create user")
	}

	email := user.Email
	profile := &models.Student{
		FullName:       user.Name,
		Email:          &email,
		Phone:          user.Phone,
		OrganizationID: user.OrganizationID,
		UserID:         &user.ID,
		CreatedBy:      &user.ID,
	}
	if err = s.profiles.CreateWithTx(ctx, tx, profile); err != nil {
		return nil, internalError(err, "failed to create user profile")
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit user")
	}

	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("organization_id", user.OrganizationID))
	result = &models.UserWithProfile{User: user, Profile: profile}
	if generated {
		result.TemporaryPassword = password
	}
	return result, nil
}

func generatePassword(length int) (string, error) {
	bound := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, bound)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
