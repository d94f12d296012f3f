package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/repository"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

const maxOrganizationCodeLength = 20

var (
	orgCodeStrip      = regexp.MustCompile(`[^a-z0-9\s]`)
	orgCodeWhitespace = regexp.MustCompile(`\s+`)
)

type organizationRepository interface {
	List(ctx context.Context) ([]models.Organization, error)
	CodesLike(ctx context.Context, base string) ([]string, error)
	Create(ctx context.Context, org *models.Organization) error
}

// CreateOrganizationRequest is the payload for registering a tenant.
type CreateOrganizationRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
}

// OrganizationService manages tenants.
type OrganizationService struct {
	repo      organizationRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOrganizationService constructs the organization service.
func NewOrganizationService(repo organizationRepository, validate *validator.Validate, logger *zap.Logger) *OrganizationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrganizationService{repo: repo, validator: validate, logger: logger}
}

// List returns all organizations.
func (s *OrganizationService) List(ctx context.Context) ([]models.Organization, error) {
	orgs, err := s.repo.List(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list organizations")
	}
	if orgs == nil {
		orgs = []models.Organization{}
	}
	return orgs, nil
}

// Create registers an organization under a code derived from its name.
func (s *OrganizationService) Create(ctx context.Context, req CreateOrganizationRequest) (*models.Organization, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "name is required")
	}

	base := OrganizationCode(req.Name)
	taken, err := s.repo.CodesLike(ctx, base)
	if err != nil {
		return nil, internalError(err, "failed to check organization code")
	}

	org := &models.Organization{
		Code:        nextFreeCode(base, taken),
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, org); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "organization code already exists")
		}
		return nil, internalError(err, "failed to create organization")
	}
	s.logger.Info("organization created", zap.String("organization_id", org.ID), zap.String("code", org.Code))
	return org, nil
}

// OrganizationCode lowercases name, strips punctuation, joins words with underscores and truncates
// the result to 20 characters.
func OrganizationCode(name string) string {
	code := orgCodeStrip.ReplaceAllString(strings.ToLower(name), "")
	code = orgCodeWhitespace.ReplaceAllString(strings.TrimSpace(code), "_")
	if runes := []rune(code); len(runes) > maxOrganizationCodeLength {
		code = string(runes[:maxOrganizationCodeLength])
	}
	if code == "" {
		return "org"
	}
	return code
}

func nextFreeCode(base string, taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, code := range taken {
		used[code] = struct{}{}
	}
	if _, ok := used[base]; !ok {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}
}
