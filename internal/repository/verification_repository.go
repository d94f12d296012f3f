package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

// VerificationRepository stores the append-only verification trail.
type VerificationRepository struct {
	db *sqlx.DB
}

// NewVerificationRepository constructs a VerificationRepository.
func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// AppendWithTx records a status transition inside the transaction that applied it.
func (r *VerificationRepository) AppendWithTx(ctx context.Context, tx *sqlx.Tx, entry *models.VerificationHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO verification_history (id, document_id, status, comment, verified_by, organization_id, created_at)
        VALUES (:id, :document_id, :status, :comment, :verified_by, :organization_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append verification history: %w", err)
	}
	return nil
}

// ListByDocument returns a document's history newest first.
func (r *VerificationRepository) ListByDocument(ctx context.Context, documentID string) ([]models.VerificationHistory, error) {
	const query = `SELECT id, document_id, status, comment, verified_by, organization_id, created_at
        FROM verification_history WHERE document_id = $1 ORDER BY created_at DESC`
	entries := []models.VerificationHistory{}
	if err := r.db.SelectContext(ctx, &entries, query, documentID); err != nil {
		return nil, fmt.Errorf("list verification history: %w", err)
	}
	return entries, nil
}
