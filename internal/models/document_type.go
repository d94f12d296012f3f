package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// DocumentType is an organization scoped document category.
type DocumentType struct {
	ID             string                 `db:"id" json:"id"`
	Name           string                 `db:"name" json:"name"`
	Description    *string                `db:"description" json:"description,omitempty"`
	OrganizationID string                 `db:"organization_id" json:"organizationId"`
	CreatedBy      *string                `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt      time.Time              `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time              `db:"updated_at" json:"updatedAt"`
	Metadata       []DocumentTypeMetadata `db:"-" json:"metadata"`
}

// DocumentTypeMetadata holds one version of a type's JSON schema.
type DocumentTypeMetadata struct {
	ID             string         `db:"id" json:"id"`
	DocumentTypeID string         `db:"document_type_id" json:"documentTypeId"`
	Schema         types.JSONText `db:"schema" json:"schema"`
	Version        string         `db:"version" json:"version"`
	IsActive       bool           `db:"is_active" json:"isActive"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}
