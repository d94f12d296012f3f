package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

const keywordColumns = `k.id, k.document_id, k.student_id, k.extracted_text, k.keywords, k.created_at, k.updated_at`

// KeywordRepository maintains the per-document keyword index.
type KeywordRepository struct {
	db *sqlx.DB
}

// NewKeywordRepository constructs a KeywordRepository.
func NewKeywordRepository(db *sqlx.DB) *KeywordRepository {
	return &KeywordRepository{db: db}
}

// Upsert writes the index row of a document, replacing any previous one.
func (r *KeywordRepository) Upsert(ctx context.Context, entry *models.DocumentKeywords) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	const query = `INSERT INTO document_search_keywords (id, document_id, student_id, extracted_text, keywords, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (document_id) DO UPDATE SET student_id = EXCLUDED.student_id,
            extracted_text = EXCLUDED.extracted_text, keywords = EXCLUDED.keywords, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, entry.ID, entry.DocumentID, entry.StudentID, entry.ExtractedText, entry.Keywords, now, now)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return fmt.Errorf("upsert document keywords: %w", err)
	}
	return nil
}

// List returns index rows scoped to an organization.
func (r *KeywordRepository) List(ctx context.Context, orgID string, filter models.KeywordFilter) ([]models.DocumentKeywords, error) {
	var w whereBuilder
	w.add("d.organization_id = %s", orgID)
	if filter.DocumentID != "" {
		w.add("k.document_id = %s", filter.DocumentID)
	}
	if filter.StudentID != "" {
		w.add("k.student_id = %s", filter.StudentID)
	}
	if filter.TextSearch != "" {
		w.add("k.extracted_text ILIKE %s", likePattern(filter.TextSearch))
	}
	query := "SELECT " + keywordColumns + " FROM document_search_keywords k JOIN documents d ON d.id = k.document_id" +
		w.clause() + " ORDER BY k.updated_at DESC"
	entries := []models.DocumentKeywords{}
	if err := r.db.SelectContext(ctx, &entries, query, w.args...); err != nil {
		return nil, fmt.Errorf("list document keywords: %w", err)
	}
	return entries, nil
}
