package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

const tagColumns = `id, name, color, organization_id, created_by, created_at, updated_at`

type linkTable struct {
	table  string
	column string
}

var linkTables = map[models.TagTarget]linkTable{
	models.TagTargetDocument: {table: "document_tags", column: "document_id"},
	models.TagTargetFolder:   {table: "folder_tags", column: "folder_id"},
}

type tagLinkRow struct {
	models.TagLink
	TagName      string    `db:"tag_name"`
	TagColor     string    `db:"tag_color"`
	TagOrg       string    `db:"tag_organization_id"`
	TagCreatedBy *string   `db:"tag_created_by"`
	TagCreatedAt time.Time `db:"tag_created_at"`
	TagUpdatedAt time.Time `db:"tag_updated_at"`
}

// TagRepository manages tags and their links to documents and folders.
type TagRepository struct {
	db *sqlx.DB
}

// NewTagRepository constructs a TagRepository.
func NewTagRepository(db *sqlx.DB) *TagRepository {
	return &TagRepository{db: db}
}

func resolveLinkTable(target models.TagTarget) (linkTable, error) {
	lt, ok := linkTables[target]
	if !ok {
		return linkTable{}, fmt.Errorf("unknown tag target %q", target)
	}
	return lt, nil
}

// List returns an organization's tags ordered by name.
func (r *TagRepository) List(ctx context.Context, orgID string) ([]models.Tag, error) {
	query := "SELECT " + tagColumns + " FROM tags WHERE organization_id = $1 ORDER BY name ASC"
	tags := []models.Tag{}
	if err := r.db.SelectContext(ctx, &tags, query, orgID); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// FindInOrganization loads a tag only when it belongs to orgID.
func (r *TagRepository) FindInOrganization(ctx context.Context, id, orgID string) (*models.Tag, error) {
	query := "SELECT " + tagColumns + " FROM tags WHERE id = $1 AND organization_id = $2"
	var tag models.Tag
	if err := r.db.GetContext(ctx, &tag, query, id, orgID); err != nil {
		return nil, err
	}
	return &tag, nil
}

// Create inserts a tag.
func (r *TagRepository) Create(ctx context.Context, tag *models.Tag) error {
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	if tag.Color == "" {
		tag.Color = models.DefaultTagColor
	}
	now := time.Now().UTC()
	tag.CreatedAt = now
	tag.UpdatedAt = now
	const query = `INSERT INTO tags (id, name, color, organization_id, created_by, created_at, updated_at)
        VALUES (:id, :name, :color, :organization_id, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tag); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// Link attaches a tag to a document or folder.
func (r *TagRepository) Link(ctx context.Context, target models.TagTarget, link *models.TagLink) error {
	lt, err := resolveLinkTable(target)
	if err != nil {
		return err
	}
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	link.CreatedAt = time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO %s (id, %s, tag_id, added_by, created_at) VALUES ($1, $2, $3, $4, $5)`, lt.table, lt.column)
	if _, err := r.db.ExecContext(ctx, query, link.ID, link.TargetID, link.TagID, link.AddedBy, link.CreatedAt); err != nil {
		return fmt.Errorf("link tag: %w", err)
	}
	return nil
}

// ListLinks returns the tags attached to a target, oldest first.
func (r *TagRepository) ListLinks(ctx context.Context, target models.TagTarget, targetID string) ([]models.TagLink, error) {
	lt, err := resolveLinkTable(target)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT l.id, l.%s AS target_id, l.tag_id, l.added_by, l.created_at,
        t.name AS tag_name, t.color AS tag_color, t.organization_id AS tag_organization_id,
        t.created_by AS tag_created_by, t.created_at AS tag_created_at, t.updated_at AS tag_updated_at
        FROM %s l JOIN tags t ON t.id = l.tag_id
        WHERE l.%s = $1 ORDER BY l.created_at ASC`, lt.column, lt.table, lt.column)

	var rows []tagLinkRow
	if err := r.db.SelectContext(ctx, &rows, query, targetID); err != nil {
		return nil, fmt.Errorf("list tag links: %w", err)
	}
	links := make([]models.TagLink, 0, len(rows))
	for _, row := range rows {
		link := row.TagLink
		link.Tag = &models.Tag{
			ID:             row.TagID,
			Name:           row.TagName,
			Color:          row.TagColor,
			OrganizationID: row.TagOrg,
			CreatedBy:      row.TagCreatedBy,
			CreatedAt:      row.TagCreatedAt,
			UpdatedAt:      row.TagUpdatedAt,
		}
		links = append(links, link)
	}
	return links, nil
}

// Unlink detaches a tag. sql.ErrNoRows is returned when the link did not exist.
func (r *TagRepository) Unlink(ctx context.Context, target models.TagTarget, targetID, tagID string) error {
	lt, err := resolveLinkTable(target)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND tag_id = $2`, lt.table, lt.column)
	res, err := r.db.ExecContext(ctx, query, targetID, tagID)
	if err != nil {
		return fmt.Errorf("unlink tag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unlink tag rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
