package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

const documentColumns = `d.id, d.student_id, d.folder_id, d.document_type_id, d.organization_id, d.filename, d.file_size,
        d.mime_type, d.storage_file_id, d.storage_url, d.metadata, d.metadata_schema_id, d.verification_status,
        d.verified_by, d.verified_at, d.rejection_reason, d.uploaded_by, d.created_at, d.updated_at`

// DocumentRepository manages document rows.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs a DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func documentFilterWhere(filter models.DocumentFilter) whereBuilder {
	var w whereBuilder
	w.add("d.organization_id = %s", filter.OrganizationID)
	if filter.StudentID != "" {
		w.add("d.student_id = %s", filter.StudentID)
	}
	if filter.FolderID != "" {
		w.add("d.folder_id = %s", filter.FolderID)
	}
	if filter.DocumentTypeID != "" {
		w.add("d.document_type_id = %s", filter.DocumentTypeID)
	}
	if filter.Status != "" {
		w.add("d.verification_status = %s", string(filter.Status))
	}
	return w
}

// List returns documents matching the filter, newest first.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	w := documentFilterWhere(filter)
	query := "SELECT " + documentColumns + " FROM documents d" + w.clause() + " ORDER BY d.created_at DESC"
	docs := []models.Document{}
	if err := r.db.SelectContext(ctx, &docs, query, w.args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Count returns the number of documents matching the filter.
func (r *DocumentRepository) Count(ctx context.Context, filter models.DocumentFilter) (int, error) {
	w := documentFilterWhere(filter)
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents d"+w.clause(), w.args...); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return total, nil
}

// ListByFolders loads the files of several folders in one query.
func (r *DocumentRepository) ListByFolders(ctx context.Context, folderIDs []string) ([]models.Document, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	query := "SELECT " + documentColumns + " FROM documents d WHERE d.folder_id = ANY($1) ORDER BY d.created_at DESC"
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, pq.Array(folderIDs)); err != nil {
		return nil, fmt.Errorf("list folder documents: %w", err)
	}
	return docs, nil
}

// FindByID fetches a document.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, "SELECT "+documentColumns+" FROM documents d WHERE d.id = $1", id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindForUpdate fetches and locks a document inside a transaction. An empty orgID skips the tenant check.
func (r *DocumentRepository) FindForUpdate(ctx context.Context, tx *sqlx.Tx, id, orgID string) (*models.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents d WHERE d.id = $1"
	args := []interface{}{id}
	if orgID != "" {
		query += " AND d.organization_id = $2"
		args = append(args, orgID)
	}
	var doc models.Document
	if err := tx.GetContext(ctx, &doc, query+" FOR UPDATE", args...); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ExistsForStudentType reports whether the student already has a document of the type.
func (r *DocumentRepository) ExistsForStudentType(ctx context.Context, tx *sqlx.Tx, studentID, typeID, orgID, excludeID string) (bool, error) {
	query := "SELECT 1 FROM documents WHERE student_id = $1 AND document_type_id = $2 AND organization_id = $3"
	args := []interface{}{studentID, typeID, orgID}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	var exists int
	if err := tx.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student document type: %w", err)
	}
	return true, nil
}

// CreateWithTx inserts a document inside an existing transaction.
func (r *DocumentRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.VerificationStatus == "" {
		doc.VerificationStatus = models.VerificationPending
	}
	if len(doc.Metadata) == 0 {
		doc.Metadata = []byte("{}")
	}
	const query = `INSERT INTO documents (id, student_id, folder_id, document_type_id, organization_id, filename, file_size,
        mime_type, storage_file_id, storage_url, metadata, metadata_schema_id, verification_status, uploaded_by, created_at, updated_at)
        VALUES (:id, :student_id, :folder_id, :document_type_id, :organization_id, :filename, :file_size,
        :mime_type, :storage_file_id, :storage_url, :metadata, :metadata_schema_id, :verification_status, :uploaded_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// UpdateWithTx writes every mutable column of a locked document.
func (r *DocumentRepository) UpdateWithTx(ctx context.Context, tx *sqlx.Tx, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE documents SET student_id = :student_id, folder_id = :folder_id, document_type_id = :document_type_id,
        filename = :filename, file_size = :file_size, mime_type = :mime_type, storage_url = :storage_url, metadata = :metadata,
        metadata_schema_id = :metadata_schema_id, verification_status = :verification_status, verified_by = :verified_by,
        verified_at = :verified_at, rejection_reason = :rejection_reason, updated_at = :updated_at
        WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// DeleteWithTx removes a document. sql.ErrNoRows is returned when nothing matched.
func (r *DocumentRepository) DeleteWithTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByFolders removes every document in the given folders and returns what was removed.
func (r *DocumentRepository) DeleteByFolders(ctx context.Context, tx *sqlx.Tx, folderIDs []string) ([]models.Document, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	const query = `DELETE FROM documents WHERE folder_id = ANY($1) RETURNING id, storage_file_id`
	var removed []models.Document
	if err := tx.SelectContext(ctx, &removed, query, pq.Array(folderIDs)); err != nil {
		return nil, fmt.Errorf("delete folder documents: %w", err)
	}
	return removed, nil
}
