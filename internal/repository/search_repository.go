package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

const searchFrom = ` FROM documents d
        JOIN students s ON s.id = d.student_id
        LEFT JOIN document_types dt ON dt.id = d.document_type_id`

type searchRow struct {
	models.Document
	StudentFullName string  `db:"student_full_name"`
	TypeName        *string `db:"document_type_name"`
}

// SearchRepository runs document search queries.
type SearchRepository struct {
	db *sqlx.DB
}

// NewSearchRepository constructs a SearchRepository.
func NewSearchRepository(db *sqlx.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// KeywordDocumentIDs returns ids of documents whose extracted text contains term or whose keyword
// array holds one of the exact terms.
func (r *SearchRepository) KeywordDocumentIDs(ctx context.Context, orgID, term string, exact []string) ([]string, error) {
	const query = `SELECT DISTINCT k.document_id FROM document_search_keywords k
        JOIN documents d ON d.id = k.document_id
        WHERE d.organization_id = $1 AND (k.extracted_text ILIKE $2 OR k.keywords && $3)`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, orgID, likePattern(term), pq.Array(exact)); err != nil {
		return nil, fmt.Errorf("search keywords: %w", err)
	}
	return ids, nil
}

// searchWhere builds the filter shared by the data and count queries. Metadata keys are sorted
// so the argument order is stable.
func searchWhere(params models.SearchParams, documentIDs []string) (whereBuilder, error) {
	var w whereBuilder
	w.add("d.organization_id = %s", params.OrganizationID)
	if params.DocumentTypeID != "" {
		w.add("d.document_type_id = %s", params.DocumentTypeID)
	}
	if params.StudentID != "" {
		w.add("d.student_id = %s", params.StudentID)
	}
	if params.FolderID != "" {
		w.add("d.folder_id = %s", params.FolderID)
	}
	if params.Status != "" {
		w.add("d.verification_status = %s", string(params.Status))
	}
	keys := make([]string, 0, len(params.Metadata))
	for key := range params.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value, err := metadataText(params.Metadata[key])
		if err != nil {
			return w, err
		}
		k := w.next(key)
		v := w.next(value)
		w.raw(fmt.Sprintf("d.metadata ->> %s = %s", k, v))
	}
	if documentIDs != nil {
		w.add("d.id = ANY(%s)", pq.Array(documentIDs))
	}
	return w, nil
}

// metadataText renders a JSON value the way Postgres ->> renders it.
func metadataText(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case nil:
		return "", fmt.Errorf("metadata value must not be null")
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode metadata value: %w", err)
		}
		return string(raw), nil
	}
}

// Search returns one page of matching documents. A nil documentIDs slice means no keyword constraint.
func (r *SearchRepository) Search(ctx context.Context, params models.SearchParams, documentIDs []string, limit, offset int) ([]models.DocumentListItem, error) {
	w, err := searchWhere(params, documentIDs)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s, s.full_name AS student_full_name, dt.name AS document_type_name%s%s ORDER BY d.created_at DESC LIMIT %d OFFSET %d",
		documentColumns, searchFrom, w.clause(), limit, offset)

	var rows []searchRow
	if err := r.db.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	items := make([]models.DocumentListItem, 0, len(rows))
	for _, row := range rows {
		item := models.DocumentListItem{
			Document: row.Document,
			Student:  models.StudentSummary{ID: row.StudentID, FullName: row.StudentFullName},
		}
		if row.DocumentTypeID != nil && row.TypeName != nil {
			item.DocumentType = &models.DocumentTypeSummary{ID: *row.DocumentTypeID, Name: *row.TypeName}
		}
		items = append(items, item)
	}
	return items, nil
}

// Count returns the number of documents matching the same filter as Search.
func (r *SearchRepository) Count(ctx context.Context, params models.SearchParams, documentIDs []string) (int, error) {
	w, err := searchWhere(params, documentIDs)
	if err != nil {
		return 0, err
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+searchFrom+w.clause(), w.args...); err != nil {
		return 0, fmt.Errorf("count search documents: %w", err)
	}
	return total, nil
}

// RecordHistory appends a search history row.
func (r *SearchRepository) RecordHistory(ctx context.Context, entry *models.SearchHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO search_history (id, search_term, search_params, searched_by, organization_id, created_at)
        VALUES (:id, :search_term, :search_params, :searched_by, :organization_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("record search history: %w", err)
	}
	return nil
}
