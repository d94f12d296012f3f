package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/repository"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

type tagRepository interface {
	List(ctx context.Context, orgID string) ([]models.Tag, error)
	FindInOrganization(ctx context.Context, id, orgID string) (*models.Tag, error)
	Create(ctx context.Context, tag *models.Tag) error
	Link(ctx context.Context, target models.TagTarget, link *models.TagLink) error
	ListLinks(ctx context.Context, target models.TagTarget, targetID string) ([]models.TagLink, error)
	Unlink(ctx context.Context, target models.TagTarget, targetID, tagID string) error
}

type documentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
}

type folderFinder interface {
	FindByID(ctx context.Context, id string) (*models.Folder, error)
}

// CreateTagRequest defines an organization label.
type CreateTagRequest struct {
	Name           string  `json:"name" validate:"required"`
	OrganizationID string  `json:"organizationId" validate:"required"`
	Color          string  `json:"color"`
	CreatedBy      *string `json:"createdBy"`
}

// AttachTagRequest links an existing tag to a document or folder.
type AttachTagRequest struct {
	TagID   string  `json:"tagId" validate:"required"`
	AddedBy *string `json:"addedBy"`
}

// TagService manages tags and their attachment to documents and folders.
type TagService struct {
	tags      tagRepository
	documents documentFinder
	folders   folderFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTagService constructs a TagService.
func NewTagService(tags tagRepository, documents documentFinder, folders folderFinder, validate *validator.Validate, logger *zap.Logger) *TagService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TagService{tags: tags, documents: documents, folders: folders, validator: validate, logger: logger}
}

// List returns an organization's tags.
func (s *TagService) List(ctx context.Context, orgID string) ([]models.Tag, error) {
	if orgID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "organizationId is required")
	}
	tags, err := s.tags.List(ctx, orgID)
	if err != nil {
		return nil, internalError(err, "failed to list tags")
	}
	return tags, nil
}

// Create inserts a tag, defaulting its color.
func (s *TagService) Create(ctx context.Context, req CreateTagRequest) (*models.Tag, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Color = strings.TrimSpace(req.Color)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "Missing required fields")
	}
	if req.Color == "" {
		req.Color = models.DefaultTagColor
	}
	if err := s.validator.Var(req.Color, "hexcolor"); err != nil {
		return nil, validationError(err, "color must be a hex value such as #3b82f6")
	}

	tag := &models.Tag{
		Name:           req.Name,
		Color:          req.Color,
		OrganizationID: req.OrganizationID,
		CreatedBy:      req.CreatedBy,
	}
	if err := s.tags.Create(ctx, tag); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Tag with this name already exists")
		}
		return nil, internalError(err, "failed to create tag")
	}
	return tag, nil
}

// Attach links a tag from the target's organization to a document or folder.
// A non-empty orgID restricts the target to that organization.
func (s *TagService) Attach(ctx context.Context, target models.TagTarget, targetID, orgID string, req AttachTagRequest) (*models.TagLink, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "tagId is required")
	}
	orgID, err := s.targetOrganization(ctx, target, targetID, orgID)
	if err != nil {
		return nil, err
	}
	tag, err := s.tags.FindInOrganization(ctx, req.TagID, orgID)
	if err != nil {
		return nil, notFoundOr(err, "Tag not found", "failed to load tag")
	}

	link := &models.TagLink{TargetID: targetID, TagID: tag.ID, AddedBy: req.AddedBy}
	if err := s.tags.Link(ctx, target, link); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Tag is already attached")
		}
		return nil, internalError(err, "failed to attach tag")
	}
	link.Tag = tag
	return link, nil
}

// Links lists the tags attached to a document or folder.
func (s *TagService) Links(ctx context.Context, target models.TagTarget, targetID, orgID string) ([]models.TagLink, error) {
	if _, err := s.targetOrganization(ctx, target, targetID, orgID); err != nil {
		return nil, err
	}
	links, err := s.tags.ListLinks(ctx, target, targetID)
	if err != nil {
		return nil, internalError(err, "failed to list tags")
	}
	return links, nil
}

// Detach removes a tag from a document or folder.
func (s *TagService) Detach(ctx context.Context, target models.TagTarget, targetID, orgID, tagID string) error {
	if strings.TrimSpace(tagID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "tagId is required")
	}
	if orgID != "" {
		if _, err := s.targetOrganization(ctx, target, targetID, orgID); err != nil {
			return err
		}
	}
	if err := s.tags.Unlink(ctx, target, targetID, tagID); err != nil {
		return notFoundOr(err, targetLabel(target)+" tag not found", "failed to detach tag")
	}
	return nil
}

// targetOrganization returns the target's organization. A target outside a non-empty orgID is not found.
func (s *TagService) targetOrganization(ctx context.Context, target models.TagTarget, targetID, orgID string) (string, error) {
	var owner string
	switch target {
	case models.TagTargetDocument:
		doc, err := s.documents.FindByID(ctx, targetID)
		if err != nil {
			return "", notFoundOr(err, "Document not found", "failed to load document")
		}
		owner = doc.OrganizationID
	case models.TagTargetFolder:
		folder, err := s.folders.FindByID(ctx, targetID)
		if err != nil {
			return "", notFoundOr(err, "Folder not found", "failed to load folder")
		}
		owner = folder.OrganizationID
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown tag target")
	}
	if orgID != "" && owner != orgID {
		return "", appErrors.Clone(appErrors.ErrNotFound, targetLabel(target)+" not found")
	}
	return owner, nil
}

func targetLabel(target models.TagTarget) string {
	if target == models.TagTargetFolder {
		return "Folder"
	}
	return "Document"
}
