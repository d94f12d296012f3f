package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/repository"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

const initialSchemaVersion = "1.0"

type documentTypeRepository interface {
	List(ctx context.Context, orgID string) ([]models.DocumentType, error)
	FindInOrganization(ctx context.Context, q sqlx.QueryerContext, id, orgID string) (*models.DocumentType, error)
	MetadataForTypes(ctx context.Context, typeIDs []string) ([]models.DocumentTypeMetadata, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, docType *models.DocumentType) error
	CreateMetadataWithTx(ctx context.Context, tx *sqlx.Tx, entry *models.DocumentTypeMetadata) error
	DeactivateMetadataWithTx(ctx context.Context, tx *sqlx.Tx, typeID string) error
}

// CreateDocumentTypeRequest defines a type together with its first schema version.
type CreateDocumentTypeRequest struct {
	Name           string          `json:"name" validate:"required"`
	Description    *string         `json:"description"`
	OrganizationID string          `json:"organizationId" validate:"required"`
	CreatedBy      string          `json:"createdBy" validate:"required"`
	MetadataSchema json.RawMessage `json:"metadataSchema" validate:"required"`
}

// AddMetadataVersionRequest publishes a new schema version.
type AddMetadataVersionRequest struct {
	Schema json.RawMessage `json:"schema" validate:"required"`
}

// DocumentTypeService manages document types and their versioned metadata schemas.
type DocumentTypeService struct {
	repo      documentTypeRepository
	cache     *CacheService
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDocumentTypeService constructs a DocumentTypeService.
func NewDocumentTypeService(repo documentTypeRepository, cache *CacheService, tx txProvider, validate *validator.Validate, logger *zap.Logger) *DocumentTypeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentTypeService{repo: repo, cache: cache, tx: tx, validator: validate, logger: logger}
}

// List returns document types with every schema version attached, served from cache when possible.
func (s *DocumentTypeService) List(ctx context.Context, orgID string) ([]models.DocumentType, error) {
	docTypes, _, err := cachedLoad(ctx, s.cache, documentTypeListKey(orgID), 0, func(ctx context.Context) ([]models.DocumentType, error) {
		return s.load(ctx, orgID)
	})
	return docTypes, err
}

func (s *DocumentTypeService) load(ctx context.Context, orgID string) ([]models.DocumentType, error) {
	docTypes, err := s.repo.List(ctx, orgID)
	if err != nil {
		return nil, internalError(err, "failed to list document types")
	}
	ids := make([]string, len(docTypes))
	for i := range docTypes {
		ids[i] = docTypes[i].ID
	}
	entries, err := s.repo.MetadataForTypes(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to list document type metadata")
	}
	byType := make(map[string][]models.DocumentTypeMetadata, len(docTypes))
	for _, entry := range entries {
		byType[entry.DocumentTypeID] = append(byType[entry.DocumentTypeID], entry)
	}
	for i := range docTypes {
		docTypes[i].Metadata = byType[docTypes[i].ID]
		if docTypes[i].Metadata == nil {
			docTypes[i].Metadata = []models.DocumentTypeMetadata{}
		}
	}
	return docTypes, nil
}

// Create stores a type and its initial active schema in one transaction.
func (s *DocumentTypeService) Create(ctx context.Context, req CreateDocumentTypeRequest) (docType *models.DocumentType, err error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "Missing required fields")
	}
	if err := checkSchema(req.MetadataSchema); err != nil {
		return nil, err
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

	docType = &models.DocumentType{
		Name:           req.Name,
		Description:    req.Description,
		OrganizationID: req.OrganizationID,
		CreatedBy:      stringPtr(req.CreatedBy),
	}
	if err = s.repo.CreateWithTx(ctx, tx, docType); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Document type with this name already exists")
		}
		return nil, internalError(err, "failed to create document type")
	}
	entry := &models.DocumentTypeMetadata{
		DocumentTypeID: docType.ID,
		Schema:         types.JSONText(req.MetadataSchema),
		Version:        initialSchemaVersion,
		IsActive:       true,
	}
	if err = s.repo.CreateMetadataWithTx(ctx, tx, entry); err != nil {
		return nil, internalError(err, "failed to create document type metadata")
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit document type")
	}

	docType.Metadata = []models.DocumentTypeMetadata{*entry}
	s.invalidate(ctx, docType.OrganizationID)
	s.logger.Info("document type created", zap.String("document_type_id", docType.ID), zap.String("organization_id", docType.OrganizationID))
	return docType, nil
}

// Metadata lists the schema versions of a type, newest first.
func (s *DocumentTypeService) Metadata(ctx context.Context, typeID, orgID string) ([]models.DocumentTypeMetadata, error) {
	if err := s.ensureType(ctx, nil, typeID, orgID); err != nil {
		return nil, err
	}
	entries, err := s.repo.MetadataForTypes(ctx, []string{typeID})
	if err != nil {
		return nil, internalError(err, "failed to list document type metadata")
	}
	return entries, nil
}

// AddMetadataVersion publishes the next major schema version and retires the previous ones.
func (s *DocumentTypeService) AddMetadataVersion(ctx context.Context, typeID, orgID string, req AddMetadataVersionRequest) (entry *models.DocumentTypeMetadata, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "schema is required")
	}
	if err := checkSchema(req.Schema); err != nil {
		return nil, err
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

	if err = s.ensureType(ctx, tx, typeID, orgID); err != nil {
		return nil, err
	}
	existing, err := s.repo.MetadataForTypes(ctx, []string{typeID})
	if err != nil {
		return nil, internalError(err, "failed to list document type metadata")
	}
	if err = s.repo.DeactivateMetadataWithTx(ctx, tx, typeID); err != nil {
		return nil, internalError(err, "failed to deactivate document type metadata")
	}
	entry = &models.DocumentTypeMetadata{
		DocumentTypeID: typeID,
		Schema:         types.JSONText(req.Schema),
		Version:        nextSchemaVersion(existing),
		IsActive:       true,
	}
	if err = s.repo.CreateMetadataWithTx(ctx, tx, entry); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Schema version already exists")
		}
		return nil, internalError(err, "failed to create document type metadata")
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit document type metadata")
	}

	s.invalidate(ctx, orgID)
	return entry, nil
}

func (s *DocumentTypeService) ensureType(ctx context.Context, q sqlx.QueryerContext, typeID, orgID string) error {
	if strings.TrimSpace(typeID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "Document type ID is required")
	}
	if orgID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "organizationId is required")
	}
	if _, err := s.repo.FindInOrganization(ctx, q, typeID, orgID); err != nil {
		return notFoundOr(err, "Document type not found", "failed to load document type")
	}
	return nil
}

func (s *DocumentTypeService) invalidate(ctx context.Context, orgID string) {
	s.cache.Invalidate(ctx, documentTypeListKey(orgID), documentTypeListKey(""))
}

func checkSchema(raw json.RawMessage) error {
	var probe map[string]interface{}
	if err := json.Unmarshal(raw, &probe); err != nil || probe == nil {
		return appErrors.Clone(appErrors.ErrValidation, "metadataSchema must be a JSON object")
	}
	if _, err := compileSchema(raw); err != nil {
		return validationError(err, fmt.Sprintf("Invalid metadata schema: %v", err))
	}
	return nil
}

// nextSchemaVersion returns "<highest major + 1>.0".
func nextSchemaVersion(entries []models.DocumentTypeMetadata) string {
	highest := 0
	for _, entry := range entries {
		major, _, _ := strings.Cut(entry.Version, ".")
		if n, err := strconv.Atoi(major); err == nil && n > highest {
			highest = n
		}
	}
	return strconv.Itoa(highest+1) + ".0"
}
