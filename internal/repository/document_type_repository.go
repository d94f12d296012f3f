package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

const (
	documentTypeColumns = `id, name, description, organization_id, created_by, created_at, updated_at`
	metadataColumns     = `id, document_type_id, schema, version, is_active, created_at, updated_at`
)

// DocumentTypeRepository manages document types and their schema versions.
type DocumentTypeRepository struct {
	db *sqlx.DB
}

// NewDocumentTypeRepository constructs a DocumentTypeRepository.
func NewDocumentTypeRepository(db *sqlx.DB) *DocumentTypeRepository {
	return &DocumentTypeRepository{db: db}
}

// List returns document types ordered by name. An empty orgID lists every organization.
func (r *DocumentTypeRepository) List(ctx context.Context, orgID string) ([]models.DocumentType, error) {
	query := "SELECT " + documentTypeColumns + " FROM document_types"
	var args []interface{}
	if orgID != "" {
		query += " WHERE organization_id = $1"
		args = append(args, orgID)
	}
	types := []models.DocumentType{}
	if err := r.db.SelectContext(ctx, &types, query+" ORDER BY name ASC", args...); err != nil {
		return nil, fmt.Errorf("list document types: %w", err)
	}
	return types, nil
}

// FindInOrganization loads a type only when it belongs to orgID.
func (r *DocumentTypeRepository) FindInOrganization(ctx context.Context, q sqlx.QueryerContext, id, orgID string) (*models.DocumentType, error) {
	if q == nil {
		q = r.db
	}
	query := "SELECT " + documentTypeColumns + " FROM document_types WHERE id = $1 AND organization_id = $2"
	var docType models.DocumentType
	if err := sqlx.GetContext(ctx, q, &docType, query, id, orgID); err != nil {
		return nil, err
	}
	return &docType, nil
}

// MetadataForTypes returns every schema version of the given types, newest first.
func (r *DocumentTypeRepository) MetadataForTypes(ctx context.Context, typeIDs []string) ([]models.DocumentTypeMetadata, error) {
	entries := []models.DocumentTypeMetadata{}
	if len(typeIDs) == 0 {
		return entries, nil
	}
	query := "SELECT " + metadataColumns + " FROM document_type_metadata WHERE document_type_id = ANY($1) ORDER BY created_at DESC"
	if err := r.db.SelectContext(ctx, &entries, query, pq.Array(typeIDs)); err != nil {
		return nil, fmt.Errorf("list document type metadata: %w", err)
	}
	return entries, nil
}

// ActiveMetadata returns the newest active schema for a type.
func (r *DocumentTypeRepository) ActiveMetadata(ctx context.Context, q sqlx.QueryerContext, typeID string) (*models.DocumentTypeMetadata, error) {
	if q == nil {
		q = r.db
	}
	query := "SELECT " + metadataColumns + " FROM document_type_metadata WHERE document_type_id = $1 AND is_active = TRUE ORDER BY created_at DESC LIMIT 1"
	var entry models.DocumentTypeMetadata
	if err := sqlx.GetContext(ctx, q, &entry, query, typeID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindMetadata loads one schema version of a type.
func (r *DocumentTypeRepository) FindMetadata(ctx context.Context, q sqlx.QueryerContext, typeID, metadataID string) (*models.DocumentTypeMetadata, error) {
	if q == nil {
		q = r.db
	}
	query := "SELECT " + metadataColumns + " FROM document_type_metadata WHERE id = $1 AND document_type_id = $2"
	var entry models.DocumentTypeMetadata
	if err := sqlx.GetContext(ctx, q, &entry, query, metadataID, typeID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// CreateWithTx inserts a document type.
func (r *DocumentTypeRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, docType *models.DocumentType) error {
	if docType.ID == "" {
		docType.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	docType.CreatedAt = now
	docType.UpdatedAt = now
	const query = `INSERT INTO document_types (id, name, description, organization_id, created_by, created_at, updated_at)
        VALUES (:id, :name, :description, :organization_id, :created_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, docType); err != nil {
		return fmt.Errorf("create document type: %w", err)
	}
	return nil
}

// CreateMetadataWithTx inserts a schema version.
func (r *DocumentTypeRepository) CreateMetadataWithTx(ctx context.Context, tx *sqlx.Tx, entry *models.DocumentTypeMetadata) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	const query = `INSERT INTO document_type_metadata (id, document_type_id, schema, version, is_active, created_at, updated_at)
        VALUES (:id, :document_type_id, :schema, :version, :is_active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create document type metadata: %w", err)
	}
	return nil
}

// DeactivateMetadataWithTx marks every active version of a type inactive.
func (r *DocumentTypeRepository) DeactivateMetadataWithTx(ctx context.Context, tx *sqlx.Tx, typeID string) error {
	const query = `UPDATE document_type_metadata SET is_active = FALSE, updated_at = $2 WHERE document_type_id = $1 AND is_active = TRUE`
	if _, err := tx.ExecContext(ctx, query, typeID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate document type metadata: %w", err)
	}
	return nil
}
