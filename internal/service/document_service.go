package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/repository"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/storage"
)

type documentRepository interface {
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	Count(ctx context.Context, filter models.DocumentFilter) (int, error)
	FindByID(ctx context.Context, id string) (*models.Document, error)
	FindForUpdate(ctx context.Context, tx *sqlx.Tx, id, orgID string) (*models.Document, error)
	ExistsForStudentType(ctx context.Context, tx *sqlx.Tx, studentID, typeID, orgID, excludeID string) (bool, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, doc *models.Document) error
	UpdateWithTx(ctx context.Context, tx *sqlx.Tx, doc *models.Document) error
	DeleteWithTx(ctx context.Context, tx *sqlx.Tx, id string) error
}

type verificationRepository interface {
	AppendWithTx(ctx context.Context, tx *sqlx.Tx, entry *models.VerificationHistory) error
	ListByDocument(ctx context.Context, documentID string) ([]models.VerificationHistory, error)
}

type folderLookup interface {
	FindInOrganization(ctx context.Context, q sqlx.QueryerContext, id, orgID string) (*models.Folder, error)
}

type schemaLookup interface {
	FindInOrganization(ctx context.Context, q sqlx.QueryerContext, id, orgID string) (*models.DocumentType, error)
	ActiveMetadata(ctx context.Context, q sqlx.QueryerContext, typeID string) (*models.DocumentTypeMetadata, error)
	FindMetadata(ctx context.Context, q sqlx.QueryerContext, typeID, metadataID string) (*models.DocumentTypeMetadata, error)
}

// CreateDocumentRequest registers an uploaded file against a student and folder.
type CreateDocumentRequest struct {
	StudentID        string          `json:"studentId" validate:"required"`
	FolderID         string          `json:"folderId" validate:"required"`
	Filename         string          `json:"filename" validate:"required"`
	FileSize         int64           `json:"fileSize" validate:"required,gt=0"`
	MimeType         string          `json:"mimeType" validate:"required"`
	UploadURL        string          `json:"uploadUrl" validate:"required"`
	OrganizationID   string          `json:"organizationId" validate:"required"`
	DocumentTypeID   *string         `json:"documentTypeId"`
	Metadata         json.RawMessage `json:"metadata" swaggertype:"object"`
	MetadataSchemaID *string         `json:"metadataSchemaId"`
	UploadedBy       *string         `json:"uploadedBy"`
	StorageFileID    *string         `json:"storageFileId"`
	ExtractedText    *string         `json:"extractedText"`
	Keywords         []string        `json:"keywords"`
}

// PatchDocumentRequest moves a document, edits its metadata or records a verification decision.
type PatchDocumentRequest struct {
	FolderID           *string         `json:"folderId"`
	Metadata           json.RawMessage `json:"metadata" swaggertype:"object"`
	VerificationStatus *string         `json:"verificationStatus"`
	RejectionReason    *string         `json:"rejectionReason"`
	VerifiedBy         *string         `json:"verifiedBy"`
}

func (r PatchDocumentRequest) empty() bool {
	return r.FolderID == nil && len(r.Metadata) == 0 && r.VerificationStatus == nil && r.RejectionReason == nil && r.VerifiedBy == nil
}

// DocumentServiceConfig carries share link settings.
type DocumentServiceConfig struct {
	ShareBaseURL string
	CountTTL     time.Duration
}

// DocumentService associates uploaded files with students, folders and types.
type DocumentService struct {
	documents     documentRepository
	verifications verificationRepository
	students      studentLookup
	folders       folderLookup
	schemas       schemaLookup
	outbox        outboxWriter
	cache         *CacheService
	signer        *storage.SignedURLSigner
	tx            txProvider
	validator     *validator.Validate
	logger        *zap.Logger
	cfg           DocumentServiceConfig
}

// NewDocumentService wires document dependencies.
func NewDocumentService(
	documents documentRepository,
	verifications verificationRepository,
	students studentLookup,
	folders folderLookup,
	schemas schemaLookup,
	outbox outboxWriter,
	cache *CacheService,
	signer *storage.SignedURLSigner,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg DocumentServiceConfig,
) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		documents:     documents,
		verifications: verifications,
		students:      students,
		folders:       folders,
		schemas:       schemas,
		outbox:        outbox,
		cache:         cache,
		signer:        signer,
		tx:            tx,
		validator:     validate,
		logger:        logger,
		cfg:           cfg,
	}
}

// Create validates every reference inside one transaction before inserting the document.
func (s *DocumentService) Create(ctx context.Context, req CreateDocumentRequest) (doc *models.Document, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "Missing required fields")
	}
	metadata, err := normaliseMetadata(req.Metadata)
	if err != nil {
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

	if _, err = s.students.FindInOrganization(ctx, tx, req.StudentID, req.OrganizationID); err != nil {
		return nil, notFoundOr(err, "Student not found", "failed to load student")
	}
	if err = s.checkFolder(ctx, tx, req.FolderID, req.OrganizationID, req.StudentID); err != nil {
		return nil, err
	}

	typeID := derefString(req.DocumentTypeID)
	schemaID := req.MetadataSchemaID
	if typeID != "" {
		if _, err = s.schemas.FindInOrganization(ctx, tx, typeID, req.OrganizationID); err != nil {
			return nil, notFoundOr(err, "Document type not found", "failed to load document type")
		}
		exists, existsErr := s.documents.ExistsForStudentType(ctx, tx, req.StudentID, typeID, req.OrganizationID, "")
		if existsErr != nil {
			return nil, internalError(existsErr, "failed to check existing documents")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Document of this type already exists for the student")
		}
		if schemaID, err = s.checkMetadata(ctx, tx, typeID, schemaID, metadata); err != nil {
			return nil, err
		}
	}

	doc = &models.Document{
		StudentID:        req.StudentID,
		FolderID:         req.FolderID,
		DocumentTypeID:   stringPtr(typeID),
		OrganizationID:   req.OrganizationID,
		Filename:         req.Filename,
		FileSize:         req.FileSize,
		MimeType:         req.MimeType,
		StorageFileID:    req.StorageFileID,
		StorageURL:       req.UploadURL,
		Metadata:         metadata,
		MetadataSchemaID: schemaID,
		UploadedBy:       req.UploadedBy,
	}
	if err = s.documents.CreateWithTx(ctx, tx, doc); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Document of this type already exists for the student")
		}
		return nil, internalError(err, "failed to create document")
	}

	if req.ExtractedText != nil || len(req.Keywords) > 0 {
		task, taskErr := models.NewOutboxTask(models.TaskIndexKeywords, models.IndexKeywordsPayload{
			DocumentID:    doc.ID,
			StudentID:     doc.StudentID,
			ExtractedText: req.ExtractedText,
			Keywords:      req.Keywords,
		})
		if taskErr != nil {
			err = taskErr
			return nil, internalError(err, "failed to build keyword task")
		}
		if err = s.outbox.EnqueueWithTx(ctx, tx, task); err != nil {
			return nil, internalError(err, "failed to enqueue keyword indexing")
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit document")
	}

	s.invalidateCounts(ctx, doc.OrganizationID)
	s.logger.Info("document created",
		zap.String("document_id", doc.ID),
		zap.String("student_id", doc.StudentID),
		zap.String("folder_id", doc.FolderID),
	)
	return doc, nil
}

// List returns documents matching the filter, newest first.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	if filter.OrganizationID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "organizationId is required")
	}
	docs, err := s.documents.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list documents")
	}
	return docs, nil
}

// Count returns the number of matching documents, cached per filter set. The flag reports a cache hit.
func (s *DocumentService) Count(ctx context.Context, filter models.DocumentFilter) (int, bool, error) {
	if filter.OrganizationID == "" {
		return 0, false, appErrors.Clone(appErrors.ErrValidation, "organizationId is required")
	}
	return cachedLoad(ctx, s.cache, documentCountKey(filter), s.cfg.CountTTL, func(ctx context.Context) (int, error) {
		count, err := s.documents.Count(ctx, filter)
		if err != nil {
			return 0, internalError(err, "failed to count documents")
		}
		return count, nil
	})
}

// Get returns a document, scoped to orgID when given.
func (s *DocumentService) Get(ctx context.Context, id, orgID string) (*models.Document, error) {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Document not found", "failed to load document")
	}
	if orgID != "" && doc.OrganizationID != orgID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Document not found")
	}
	return doc, nil
}

// Patch applies a folder move, a metadata edit and/or a verification decision under a row lock.
// actorID is used as the verifier when the request does not name one.
func (s *DocumentService) Patch(ctx context.Context, id, orgID, actorID string, req PatchDocumentRequest) (doc *models.Document, err error) {
	if req.empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "No fields provided for update")
	}
	var status models.VerificationStatus
	if req.VerificationStatus != nil {
		parsed, ok := models.ParseVerificationStatus(*req.VerificationStatus)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, models.InvalidVerificationStatusMessage)
		}
		status = parsed
	}
	verifier := strings.TrimSpace(derefString(req.VerifiedBy))
	if verifier == "" {
		verifier = actorID
	}
	if status != "" && verifier == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "verifiedBy is required")
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

	doc, err = s.documents.FindForUpdate(ctx, tx, id, orgID)
	if err != nil {
		return nil, notFoundOr(err, "Document not found", "failed to load document")
	}

	if req.FolderID != nil {
		if err = s.checkFolder(ctx, tx, *req.FolderID, doc.OrganizationID, doc.StudentID); err != nil {
			return nil, err
		}
		doc.FolderID = *req.FolderID
	}
	if len(req.Metadata) > 0 {
		metadata, metaErr := normaliseMetadata(req.Metadata)
		if metaErr != nil {
			err = metaErr
			return nil, err
		}
		if doc.DocumentTypeID != nil {
			if doc.MetadataSchemaID, err = s.checkMetadata(ctx, tx, *doc.DocumentTypeID, doc.MetadataSchemaID, metadata); err != nil {
				return nil, err
			}
		}
		doc.Metadata = metadata
	}

	var entry *models.VerificationHistory
	if status != "" {
		now := time.Now().UTC()
		doc.VerificationStatus = status
		doc.VerifiedBy = &verifier
		doc.VerifiedAt = &now
		doc.RejectionReason = nil
		if status == models.VerificationRejected {
			doc.RejectionReason = req.RejectionReason
		}
		entry = &models.VerificationHistory{
			DocumentID:     doc.ID,
			Status:         status,
			Comment:        doc.RejectionReason,
			VerifiedBy:     verifier,
			OrganizationID: doc.OrganizationID,
		}
	} else if req.RejectionReason != nil && doc.VerificationStatus == models.VerificationRejected {
		doc.RejectionReason = req.RejectionReason
	}

	if err = s.documents.UpdateWithTx(ctx, tx, doc); err != nil {
		return nil, internalError(err, "failed to update document")
	}
	if entry != nil {
		if err = s.verifications.AppendWithTx(ctx, tx, entry); err != nil {
			return nil, internalError(err, "failed to record verification history")
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit document")
	}

	s.invalidateCounts(ctx, doc.OrganizationID)
	if entry != nil {
		s.logger.Info("document verification recorded",
			zap.String("document_id", doc.ID),
			zap.String("status", string(status)),
			zap.String("verified_by", verifier),
		)
	}
	return doc, nil
}

// Update is a partial replacement of the document's references and file attributes.
func (s *DocumentService) Update(ctx context.Context, id, orgID string, req models.DocumentUpdate) (doc *models.Document, err error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Document ID is required")
	}
	if req.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "No fields provided for update")
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

	doc, err = s.documents.FindForUpdate(ctx, tx, id, orgID)
	if err != nil {
		return nil, notFoundOr(err, "Document not found", "failed to load document")
	}
	org := doc.OrganizationID

	if req.StudentID != nil && *req.StudentID != doc.StudentID {
		if _, err = s.students.FindInOrganization(ctx, tx, *req.StudentID, org); err != nil {
			return nil, notFoundOr(err, "Student not found", "failed to load student")
		}
		doc.StudentID = *req.StudentID
	}
	if req.FolderID != nil || req.StudentID != nil {
		folderID := doc.FolderID
		if req.FolderID != nil {
			folderID = *req.FolderID
		}
		if err = s.checkFolder(ctx, tx, folderID, org, doc.StudentID); err != nil {
			return nil, err
		}
		doc.FolderID = folderID
	}

	typeChanged := false
	if req.DocumentTypeID != nil {
		newType := stringPtr(strings.TrimSpace(*req.DocumentTypeID))
		if newType != nil {
			if _, err = s.schemas.FindInOrganization(ctx, tx, *newType, org); err != nil {
				return nil, notFoundOr(err, "Document type not found", "failed to load document type")
			}
		}
		typeChanged = derefString(newType) != derefString(doc.DocumentTypeID)
		doc.DocumentTypeID = newType
		if typeChanged && req.MetadataSchemaID == nil {
			doc.MetadataSchemaID = nil
		}
	}
	if doc.DocumentTypeID != nil && (typeChanged || req.StudentID != nil) {
		exists, existsErr := s.documents.ExistsForStudentType(ctx, tx, doc.StudentID, *doc.DocumentTypeID, org, doc.ID)
		if existsErr != nil {
			err = existsErr
			return nil, internalError(err, "failed to check existing documents")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Document of this type already exists for the student")
		}
	}

	if req.Filename != nil {
		doc.Filename = *req.Filename
	}
	if req.FileSize != nil {
		doc.FileSize = *req.FileSize
	}
	if req.MimeType != nil {
		doc.MimeType = *req.MimeType
	}
	if req.StorageURL != nil {
		doc.StorageURL = *req.StorageURL
	}
	if req.MetadataSchemaID != nil {
		doc.MetadataSchemaID = stringPtr(*req.MetadataSchemaID)
	}
	if len(req.Metadata) > 0 {
		metadata, metaErr := normaliseMetadata(json.RawMessage(req.Metadata))
		if metaErr != nil {
			err = metaErr
			return nil, err
		}
		doc.Metadata = metadata
	}
	if doc.DocumentTypeID != nil && (typeChanged || len(req.Metadata) > 0 || req.MetadataSchemaID != nil) {
		if doc.MetadataSchemaID, err = s.checkMetadata(ctx, tx, *doc.DocumentTypeID, doc.MetadataSchemaID, doc.Metadata); err != nil {
			return nil, err
		}
	}

	if err = s.documents.UpdateWithTx(ctx, tx, doc); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Document of this type already exists for the student")
		}
		return nil, internalError(err, "failed to update document")
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit document")
	}

	s.invalidateCounts(ctx, org)
	return doc, nil
}

// Delete removes a document and queues removal of its stored object.
func (s *DocumentService) Delete(ctx context.Context, id, orgID string) (err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	doc, err := s.documents.FindForUpdate(ctx, tx, id, orgID)
	if err != nil {
		return notFoundOr(err, "Document not found", "failed to load document")
	}
	if err = s.documents.DeleteWithTx(ctx, tx, doc.ID); err != nil {
		return notFoundOr(err, "Document not found", "failed to delete document")
	}
	tasks, err := cleanupTasks(nil, []models.Document{*doc})
	if err != nil {
		return internalError(err, "failed to build cleanup tasks")
	}
	if err = s.outbox.EnqueueWithTx(ctx, tx, tasks...); err != nil {
		return internalError(err, "failed to enqueue storage cleanup")
	}
	if err = tx.Commit(); err != nil {
		return internalError(err, "failed to commit document deletion")
	}

	s.invalidateCounts(ctx, doc.OrganizationID)
	s.logger.Info("document deleted", zap.String("document_id", doc.ID), zap.Int("cleanup_tasks", len(tasks)))
	return nil
}

// History lists verification decisions, newest first.
func (s *DocumentService) History(ctx context.Context, id, orgID string) ([]models.VerificationHistory, error) {
	if _, err := s.Get(ctx, id, orgID); err != nil {
		return nil, err
	}
	entries, err := s.verifications.ListByDocument(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to list verification history")
	}
	return entries, nil
}

// Share issues a signed link that redirects to the document's stored file.
func (s *DocumentService) Share(ctx context.Context, id, orgID string, ttl time.Duration) (*models.ShareLink, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "document sharing is not configured")
	}
	doc, err := s.Get(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	key := derefString(doc.StorageFileID)
	if key == "" {
		key = doc.ID
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, key, ttl)
	if err != nil {
		return nil, internalError(err, "failed to sign share link")
	}
	return &models.ShareLink{
		Token:     token,
		URL:       strings.TrimRight(s.cfg.ShareBaseURL, "/") + "/shared/" + token,
		ExpiresAt: expiresAt,
	}, nil
}

// ResolveShare verifies a share token and returns the document it grants access to.
func (s *DocumentService) ResolveShare(ctx context.Context, token string) (*models.Document, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "document sharing is not configured")
	}
	documentID, _, _, err := s.signer.Parse(token)
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, appErrors.Clone(appErrors.ErrGone, "Share link has expired")
	case err != nil:
		return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid share link")
	}
	return s.Get(ctx, documentID, "")
}

func (s *DocumentService) checkFolder(ctx context.Context, tx *sqlx.Tx, folderID, orgID, studentID string) error {
	folder, err := s.folders.FindInOrganization(ctx, tx, folderID, orgID)
	if err != nil {
		return notFoundOr(err, "Folder not found", "failed to load folder")
	}
	if folder.StudentID != nil && *folder.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrScopeMismatch, "folder belongs to a different student")
	}
	return nil
}

// checkMetadata validates metadata against the requested schema version, or the type's active one,
// and returns the id of the schema that was applied.
func (s *DocumentService) checkMetadata(ctx context.Context, tx *sqlx.Tx, typeID string, schemaID *string, metadata types.JSONText) (*string, error) {
	var (
		entry *models.DocumentTypeMetadata
		err   error
	)
	if id := derefString(schemaID); id != "" {
		entry, err = s.schemas.FindMetadata(ctx, tx, typeID, id)
		if err != nil {
			return nil, notFoundOr(err, "Metadata schema not found", "failed to load metadata schema")
		}
	} else {
		entry, err = s.schemas.ActiveMetadata(ctx, tx, typeID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, internalError(err, "failed to load metadata schema")
		}
	}
	if err := validateMetadata(entry.Schema, metadata); err != nil {
		return nil, validationError(err, fmt.Sprintf("Metadata does not match schema: %v", err))
	}
	return &entry.ID, nil
}

func (s *DocumentService) invalidateCounts(ctx context.Context, orgID string) {
	s.cache.Invalidate(ctx, documentCountPattern(orgID))
}

// normaliseMetadata requires a JSON object and defaults absent metadata to {}.
func normaliseMetadata(raw json.RawMessage) (types.JSONText, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return types.JSONText("{}"), nil
	}
	var probe map[string]interface{}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, validationError(err, "metadata must be a JSON object")
	}
	return types.JSONText(trimmed), nil
}
