package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/repository"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

const defaultFolderMaxDepth = 32

type folderRepository interface {
	List(ctx context.Context, filter models.FolderFilter) ([]models.FolderListItem, error)
	FindByID(ctx context.Context, id string) (*models.Folder, error)
	FindForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Folder, error)
	FindInOrganization(ctx context.Context, q sqlx.QueryerContext, id, orgID string) (*models.Folder, error)
	Ancestors(ctx context.Context, q sqlx.QueryerContext, id, orgID string, maxLevels int) ([]models.FolderNode, error)
	Subtree(ctx context.Context, tx *sqlx.Tx, id string, maxLevels int) ([]repository.FolderSubtreeEntry, error)
	CountContents(ctx context.Context, tx *sqlx.Tx, id string) (int, int, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, folder *models.Folder) error
	UpdateWithTx(ctx context.Context, tx *sqlx.Tx, folder *models.Folder) error
	ShiftDepth(ctx context.Context, tx *sqlx.Tx, ids []string, delta int) error
	DeleteWithTx(ctx context.Context, tx *sqlx.Tx, ids []string) (int64, error)
}

type folderDocumentRepository interface {
	ListByFolders(ctx context.Context, folderIDs []string) ([]models.Document, error)
	DeleteByFolders(ctx context.Context, tx *sqlx.Tx, folderIDs []string) ([]models.Document, error)
}

type studentLookup interface {
	FindInOrganization(ctx context.Context, q sqlx.QueryerContext, id, orgID string) (*models.Student, error)
}

// CreateFolderRequest is the payload for creating a folder.
type CreateFolderRequest struct {
	Name           string  `json:"name" validate:"required"`
	OrganizationID string  `json:"organizationId" validate:"required"`
	StudentID      *string `json:"studentId"`
	Description    *string `json:"description"`
	ParentFolderID *string `json:"parentFolderId"`
	CreatedBy      *string `json:"createdBy"`
}

// UpdateFolderRequest renames or moves a folder. An empty ParentFolderID turns the folder into a root.
type UpdateFolderRequest struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	ParentFolderID *string `json:"parentFolderId"`
}

// FolderServiceConfig bounds the hierarchy.
type FolderServiceConfig struct {
	MaxDepth int
}

// FolderService maintains the folder tree.
type FolderService struct {
	folders   folderRepository
	documents folderDocumentRepository
	students  studentLookup
	outbox    outboxWriter
	cache     *CacheService
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	maxDepth  int
}

// NewFolderService wires folder dependencies.
func NewFolderService(
	folders folderRepository,
	documents folderDocumentRepository,
	students studentLookup,
	outbox outboxWriter,
	cache *CacheService,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg FolderServiceConfig,
) *FolderService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaultFolderMaxDepth
	}
	return &FolderService{
		folders:   folders,
		documents: documents,
		students:  students,
		outbox:    outbox,
		cache:     cache,
		tx:        tx,
		validator: validate,
		logger:    logger,
		maxDepth:  cfg.MaxDepth,
	}
}

// Create inserts a folder after validating its scope, ancestry and depth.
func (s *FolderService) Create(ctx context.Context, req CreateFolderRequest) (folder *models.Folder, err error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "Missing required fields")
	}
	studentID := derefString(req.StudentID)
	parentID := derefString(req.ParentFolderID)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if studentID != "" {
		if _, err = s.students.FindInOrganization(ctx, tx, studentID, req.OrganizationID); err != nil {
			return nil, notFoundOr(err, "Student not found", "failed to load student")
		}
	}

	depth := 0
	if parentID != "" {
		parent, findErr := s.folders.FindInOrganization(ctx, tx, parentID, req.OrganizationID)
		if findErr != nil {
			return nil, notFoundOr(findErr, "Parent folder not found", "failed to load parent folder")
		}
		if parent.StudentID != nil {
			if studentID == "" {
				studentID = *parent.StudentID
			} else if studentID != *parent.StudentID {
				return nil, appErrors.Clone(appErrors.ErrScopeMismatch, "parent folder belongs to a different student")
			}
		}
		path, pathErr := s.resolvePath(ctx, tx, parentID, req.OrganizationID)
		if pathErr != nil {
			return nil, pathErr
		}
		depth = len(path)
		if depth > s.maxDepth {
			return nil, appErrors.Clone(appErrors.ErrFolderDepthExceeded, "")
		}
	}

	id := uuid.NewString()
	storageKey := folderStorageKey(id)
	folder = &models.Folder{
		ID:              id,
		Name:            req.Name,
		Description:     req.Description,
		ParentFolderID:  stringPtr(parentID),
		StudentID:       stringPtr(studentID),
		OrganizationID:  req.OrganizationID,
		CreatedBy:       req.CreatedBy,
		StorageFolderID: &storageKey,
		Depth:           depth,
	}
	if err = s.folders.CreateWithTx(ctx, tx, folder); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Folder with this name already exists")
		}
		return nil, internalError(err, "failed to create folder")
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit folder")
	}

	s.logger.Info("folder created",
		zap.String("folder_id", folder.ID),
		zap.String("organization_id", folder.OrganizationID),
		zap.Int("depth", folder.Depth),
	)
	return folder, nil
}

// List returns folders in scope, optionally with their files loaded in one batched query.
func (s *FolderService) List(ctx context.Context, filter models.FolderFilter) ([]models.FolderListItem, error) {
	if filter.OrganizationID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "organizationId is required")
	}
	items, err := s.folders.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list folders")
	}
	if !filter.IncludeFiles || len(items) == 0 {
		return items, nil
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	docs, err := s.documents.ListByFolders(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to list folder files")
	}
	byFolder := make(map[string][]models.Document, len(items))
	for _, doc := range docs {
		byFolder[doc.FolderID] = append(byFolder[doc.FolderID], doc)
	}
	for i := range items {
		items[i].Files = byFolder[items[i].ID]
		if items[i].Files == nil {
			items[i].Files = []models.Document{}
		}
	}
	return items, nil
}

// Get returns a folder, scoped to orgID when given.
func (s *FolderService) Get(ctx context.Context, id, orgID string) (*models.Folder, error) {
	folder, err := s.find(ctx, id, orgID)
	if err != nil {
		return nil, notFoundOr(err, "Folder not found", "failed to load folder")
	}
	return folder, nil
}

// Breadcrumb returns the path from the root down to the folder.
func (s *FolderService) Breadcrumb(ctx context.Context, id, orgID string) ([]models.FolderNode, error) {
	folder, err := s.find(ctx, id, orgID)
	if err != nil {
		return nil, notFoundOr(err, "Folder not found", "failed to load folder")
	}
	return s.resolvePath(ctx, nil, folder.ID, folder.OrganizationID)
}

// Update renames and/or moves a folder, keeping stored depths consistent across its subtree.
func (s *FolderService) Update(ctx context.Context, id, orgID string, req UpdateFolderRequest) (folder *models.Folder, err error) {
	if req.Name == nil && req.Description == nil && req.ParentFolderID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "No fields provided for update")
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name must not be empty")
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

	folder, err = s.folders.FindForUpdate(ctx, tx, id)
	if err != nil {
		return nil, notFoundOr(err, "Folder not found", "failed to load folder")
	}
	if orgID != "" && folder.OrganizationID != orgID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Folder not found")
	}

	if req.ParentFolderID != nil {
		if err = s.move(ctx, tx, folder, strings.TrimSpace(*req.ParentFolderID)); err != nil {
			return nil, err
		}
	}
	if req.Name != nil {
		folder.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		folder.Description = req.Description
	}

	if err = s.folders.UpdateWithTx(ctx, tx, folder); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Folder with this name already exists")
		}
		return nil, internalError(err, "failed to update folder")
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit folder")
	}
	return folder, nil
}

func (s *FolderService) move(ctx context.Context, tx *sqlx.Tx, folder *models.Folder, parentID string) error {
	newDepth := 0
	if parentID != "" {
		if parentID == folder.ID {
			return appErrors.Clone(appErrors.ErrFolderCycle, "a folder cannot be its own parent")
		}
		parent, err := s.folders.FindInOrganization(ctx, tx, parentID, folder.OrganizationID)
		if err != nil {
			return notFoundOr(err, "Parent folder not found", "failed to load parent folder")
		}
		if parent.StudentID != nil && folder.StudentID != nil && *parent.StudentID != *folder.StudentID {
			return appErrors.Clone(appErrors.ErrScopeMismatch, "parent folder belongs to a different student")
		}
		chain, err := s.folders.Ancestors(ctx, tx, parentID, folder.OrganizationID, s.maxDepth)
		if err != nil {
			return internalError(err, "failed to load folder ancestors")
		}
		if models.ChainContains(chain, folder.ID) {
			return appErrors.Clone(appErrors.ErrFolderCycle, "a folder cannot be moved into its own subtree")
		}
		path, err := models.ResolveBreadcrumb(parentID, chain, s.maxDepth)
		if err != nil {
			return hierarchyError(err)
		}
		newDepth = len(path)
	}

	subtree, err := s.folders.Subtree(ctx, tx, folder.ID, s.maxDepth)
	if err != nil {
		return internalError(err, "failed to load folder subtree")
	}
	height := 0
	descendants := make([]string, 0, len(subtree))
	for _, entry := range subtree {
		if entry.Level > height {
			height = entry.Level
		}
		if entry.ID != folder.ID {
			descendants = append(descendants, entry.ID)
		}
	}
	if newDepth+height > s.maxDepth {
		return appErrors.Clone(appErrors.ErrFolderDepthExceeded, "")
	}
	if err := s.folders.ShiftDepth(ctx, tx, descendants, newDepth-folder.Depth); err != nil {
		return internalError(err, "failed to update folder depths")
	}

	folder.ParentFolderID = stringPtr(parentID)
	folder.Depth = newDepth
	return nil
}

// Delete removes a folder. Non-empty folders are refused unless recursive is set, in which case the
// whole subtree and its documents are removed together and their remote objects are queued for cleanup.
func (s *FolderService) Delete(ctx context.Context, id, orgID string, recursive bool) (deleted int64, err error) {
	if strings.TrimSpace(id) == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "Folder ID is required")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return 0, internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	folder, err := s.folders.FindForUpdate(ctx, tx, id)
	if err != nil {
		return 0, notFoundOr(err, "Folder not found", "failed to load folder")
	}
	if orgID != "" && folder.OrganizationID != orgID {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "Folder not found")
	}

	var (
		folderEntries []repository.FolderSubtreeEntry
		removedDocs   []models.Document
	)
	if recursive {
		folderEntries, err = s.folders.Subtree(ctx, tx, folder.ID, s.maxDepth+1)
		if err != nil {
			return 0, internalError(err, "failed to load folder subtree")
		}
		ids := make([]string, len(folderEntries))
		for i, entry := range folderEntries {
			ids[i] = entry.ID
		}
		removedDocs, err = s.documents.DeleteByFolders(ctx, tx, ids)
		if err != nil {
			return 0, internalError(err, "failed to delete folder documents")
		}
		deleted, err = s.folders.DeleteWithTx(ctx, tx, ids)
	} else {
		children, documents, countErr := s.folders.CountContents(ctx, tx, folder.ID)
		if countErr != nil {
			return 0, internalError(countErr, "failed to inspect folder")
		}
		if children > 0 || documents > 0 {
			return 0, appErrors.Clone(appErrors.ErrFolderNotEmpty, "folder is not empty")
		}
		folderEntries = []repository.FolderSubtreeEntry{{ID: folder.ID, StorageFolderID: folder.StorageFolderID}}
		deleted, err = s.folders.DeleteWithTx(ctx, tx, []string{folder.ID})
	}
	if err != nil {
		return 0, internalError(err, "failed to delete folder")
	}

	tasks, err := cleanupTasks(folderEntries, removedDocs)
	if err != nil {
		return 0, internalError(err, "failed to build cleanup tasks")
	}
	if err = s.outbox.EnqueueWithTx(ctx, tx, tasks...); err != nil {
		return 0, internalError(err, "failed to enqueue storage cleanup")
	}
	if err = tx.Commit(); err != nil {
		return 0, internalError(err, "failed to commit folder deletion")
	}

	if len(removedDocs) > 0 {
		s.invalidateCounts(ctx, folder.OrganizationID)
	}
	s.logger.Info("folder deleted",
		zap.String("folder_id", folder.ID),
		zap.Bool("recursive", recursive),
		zap.Int64("folders", deleted),
		zap.Int("documents", len(removedDocs)),
		zap.Int("cleanup_tasks", len(tasks)),
	)
	return deleted, nil
}

func (s *FolderService) find(ctx context.Context, id, orgID string) (*models.Folder, error) {
	if orgID != "" {
		return s.folders.FindInOrganization(ctx, nil, id, orgID)
	}
	return s.folders.FindByID(ctx, id)
}

func (s *FolderService) resolvePath(ctx context.Context, q sqlx.QueryerContext, id, orgID string) ([]models.FolderNode, error) {
	chain, err := s.folders.Ancestors(ctx, q, id, orgID, s.maxDepth)
	if err != nil {
		return nil, internalError(err, "failed to load folder ancestors")
	}
	path, err := models.ResolveBreadcrumb(id, chain, s.maxDepth)
	if err != nil {
		return nil, hierarchyError(err)
	}
	return path, nil
}

func (s *FolderService) invalidateCounts(ctx context.Context, orgID string) {
	s.cache.Invalidate(ctx, documentCountPattern(orgID))
}

func hierarchyError(err error) error {
	switch {
	case errors.Is(err, models.ErrFolderCycle):
		return appErrors.Wrap(err, appErrors.ErrFolderCycle.Code, appErrors.ErrFolderCycle.Status, appErrors.ErrFolderCycle.Message)
	case errors.Is(err, models.ErrFolderDepthExceeded):
		return appErrors.Wrap(err, appErrors.ErrFolderDepthExceeded.Code, appErrors.ErrFolderDepthExceeded.Status, appErrors.ErrFolderDepthExceeded.Message)
	default:
		return internalError(err, "folder hierarchy is inconsistent")
	}
}

func cleanupTasks(folders []repository.FolderSubtreeEntry, docs []models.Document) ([]*models.OutboxTask, error) {
	tasks := make([]*models.OutboxTask, 0, len(folders)+len(docs))
	for _, doc := range docs {
		if doc.StorageFileID == nil || *doc.StorageFileID == "" {
			continue
		}
		task, err := models.NewOutboxTask(models.TaskDeleteStorageFile, models.DeleteFilePayload{DocumentID: doc.ID, StorageFileID: *doc.StorageFileID})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	for _, entry := range folders {
		if entry.StorageFolderID == nil || *entry.StorageFolderID == "" {
			continue
		}
		task, err := models.NewOutboxTask(models.TaskDeleteStorageFolder, models.DeleteFolderPayload{FolderID: entry.ID, StorageFolderID: *entry.StorageFolderID})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func folderStorageKey(id string) string {
	return "folders/" + id
}
