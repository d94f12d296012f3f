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

const folderColumns = `f.id, f.name, f.description, f.parent_folder_id, f.student_id, f.organization_id, f.created_by,
        f.storage_folder_id, f.depth, f.created_at, f.updated_at`

// ancestorQuery walks parent links upward from $1 in one statement. The level bound keeps
// the recursion finite even when the stored links form a cycle.
const ancestorQuery = `WITH RECURSIVE chain AS (
            SELECT id, name, parent_folder_id, student_id, organization_id, 0 AS level
            FROM folders WHERE id = $1 AND organization_id = $2
            UNION ALL
            SELECT p.id, p.name, p.parent_folder_id, p.student_id, p.organization_id, c.level + 1
            FROM folders p JOIN chain c ON p.id = c.parent_folder_id
            WHERE c.level < $3
        )
        SELECT id, name, parent_folder_id, student_id, organization_id, level FROM chain ORDER BY level ASC`

// descendantQuery collects a folder and its subtree, bounded the same way as ancestorQuery.
const descendantQuery = `WITH RECURSIVE tree AS (
            SELECT id, parent_folder_id, storage_folder_id, depth, 0 AS level
            FROM folders WHERE id = $1
            UNION ALL
            SELECT ch.id, ch.parent_folder_id, ch.storage_folder_id, ch.depth, t.level + 1
            FROM folders ch JOIN tree t ON ch.parent_folder_id = t.id
            WHERE t.level < $2
        )
        SELECT id, parent_folder_id, storage_folder_id, depth, level FROM tree ORDER BY level DESC`

// FolderSubtreeEntry is one folder of a subtree listing.
type FolderSubtreeEntry struct {
	ID              string  `db:"id"`
	ParentFolderID  *string `db:"parent_folder_id"`
	StorageFolderID *string `db:"storage_folder_id"`
	Depth           int     `db:"depth"`
	Level           int     `db:"level"`
}

type folderListRow struct {
	models.Folder
	StudentRefID    *string `db:"student_ref_id"`
	StudentFullName *string `db:"student_full_name"`
}

// FolderRepository manages the folder hierarchy.
type FolderRepository struct {
	db *sqlx.DB
}

// NewFolderRepository constructs a FolderRepository.
func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

// List returns folders in scope ordered newest first. Without a student filter each row carries its student.
func (r *FolderRepository) List(ctx context.Context, filter models.FolderFilter) ([]models.FolderListItem, error) {
	var w whereBuilder
	w.add("f.organization_id = %s", filter.OrganizationID)
	if filter.StudentID != "" {
		w.add("f.student_id = %s", filter.StudentID)
	}
	switch filter.Parent {
	case models.ParentRoot:
		w.raw("f.parent_folder_id IS NULL")
	case models.ParentExact:
		w.add("f.parent_folder_id = %s", filter.ParentFolderID)
	}

	selectCols := folderColumns
	from := " FROM folders f"
	if filter.StudentID == "" {
		selectCols += ", s.id AS student_ref_id, s.full_name AS student_full_name"
		from += " LEFT JOIN students s ON s.id = f.student_id"
	}
	query := "SELECT " + selectCols + from + w.clause() + " ORDER BY f.created_at DESC"

	var rows []folderListRow
	if err := r.db.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	items := make([]models.FolderListItem, 0, len(rows))
	for _, row := range rows {
		item := models.FolderListItem{Folder: row.Folder}
		if row.StudentRefID != nil {
			name := ""
			if row.StudentFullName != nil {
				name = *row.StudentFullName
			}
			item.Student = &models.StudentSummary{ID: *row.StudentRefID, FullName: name}
		}
		items = append(items, item)
	}
	return items, nil
}

// FindByID fetches a folder.
func (r *FolderRepository) FindByID(ctx context.Context, id string) (*models.Folder, error) {
	var folder models.Folder
	if err := r.db.GetContext(ctx, &folder, "SELECT "+folderColumns+" FROM folders f WHERE f.id = $1", id); err != nil {
		return nil, err
	}
	return &folder, nil
}

// FindForUpdate fetches and locks a folder inside a transaction.
func (r *FolderRepository) FindForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Folder, error) {
	var folder models.Folder
	if err := tx.GetContext(ctx, &folder, "SELECT "+folderColumns+" FROM folders f WHERE f.id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &folder, nil
}

// FindInOrganization fetches a folder scoped to an organization, locking it against concurrent
// moves or deletes when q is a transaction.
func (r *FolderRepository) FindInOrganization(ctx context.Context, q sqlx.QueryerContext, id, orgID string) (*models.Folder, error) {
	query := "SELECT " + folderColumns + " FROM folders f WHERE f.id = $1 AND f.organization_id = $2"
	if q == nil {
		q = r.db
	} else if _, ok := q.(*sqlx.Tx); ok {
		query += " FOR SHARE"
	}
	var folder models.Folder
	if err := sqlx.GetContext(ctx, q, &folder, query, id, orgID); err != nil {
		return nil, err
	}
	return &folder, nil
}

// Ancestors returns the chain from id upward, leaf first, fetching at most maxLevels+1 links.
func (r *FolderRepository) Ancestors(ctx context.Context, q sqlx.QueryerContext, id, orgID string, maxLevels int) ([]models.FolderNode, error) {
	if q == nil {
		q = r.db
	}
	var chain []models.FolderNode
	if err := sqlx.SelectContext(ctx, q, &chain, ancestorQuery, id, orgID, maxLevels); err != nil {
		return nil, fmt.Errorf("load folder ancestors: %w", err)
	}
	return chain, nil
}

// Subtree returns a folder and its descendants deepest first.
func (r *FolderRepository) Subtree(ctx context.Context, tx *sqlx.Tx, id string, maxLevels int) ([]FolderSubtreeEntry, error) {
	var entries []FolderSubtreeEntry
	if err := tx.SelectContext(ctx, &entries, descendantQuery, id, maxLevels); err != nil {
		return nil, fmt.Errorf("load folder subtree: %w", err)
	}
	return entries, nil
}

// CountContents reports how many child folders and documents a folder holds.
func (r *FolderRepository) CountContents(ctx context.Context, tx *sqlx.Tx, id string) (int, int, error) {
	const query = `SELECT
            (SELECT COUNT(*) FROM folders WHERE parent_folder_id = $1) AS children,
            (SELECT COUNT(*) FROM documents WHERE folder_id = $1) AS documents`
	var counts struct {
		Children  int `db:"children"`
		Documents int `db:"documents"`
	}
	if err := tx.GetContext(ctx, &counts, query, id); err != nil {
		return 0, 0, fmt.Errorf("count folder contents: %w", err)
	}
	return counts.Children, counts.Documents, nil
}

// CreateWithTx inserts a folder inside an existing transaction.
func (r *FolderRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, folder *models.Folder) error {
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	folder.CreatedAt = now
	folder.UpdatedAt = now
	const query = `INSERT INTO folders (id, name, description, parent_folder_id, student_id, organization_id, created_by,
        storage_folder_id, depth, created_at, updated_at)
        VALUES (:id, :name, :description, :parent_folder_id, :student_id, :organization_id, :created_by,
        :storage_folder_id, :depth, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, folder); err != nil {
		return fmt.Errorf("create folder: %w", err)
	}
	return nil
}

// UpdateWithTx persists name, description, parent and depth changes.
func (r *FolderRepository) UpdateWithTx(ctx context.Context, tx *sqlx.Tx, folder *models.Folder) error {
	folder.UpdatedAt = time.Now().UTC()
	const query = `UPDATE folders SET name = :name, description = :description, parent_folder_id = :parent_folder_id,
        student_id = :student_id, depth = :depth, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, folder); err != nil {
		return fmt.Errorf("update folder: %w", err)
	}
	return nil
}

// ShiftDepth adds delta to the stored depth of the given folders.
func (r *FolderRepository) ShiftDepth(ctx context.Context, tx *sqlx.Tx, ids []string, delta int) error {
	if len(ids) == 0 || delta == 0 {
		return nil
	}
	const query = `UPDATE folders SET depth = depth + $1, updated_at = $2 WHERE id = ANY($3)`
	if _, err := tx.ExecContext(ctx, query, delta, time.Now().UTC(), pq.Array(ids)); err != nil {
		return fmt.Errorf("shift folder depth: %w", err)
	}
	return nil
}

// DeleteWithTx removes the given folders in one statement.
func (r *FolderRepository) DeleteWithTx(ctx context.Context, tx *sqlx.Tx, ids []string) (int64, error) {
	res, err := tx.ExecContext(ctx, "DELETE FROM folders WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete folders: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete folders rows affected: %w", err)
	}
	return affected, nil
}
