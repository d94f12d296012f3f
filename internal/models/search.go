package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SearchParams is a parsed document search request.
type SearchParams struct {
	OrganizationID string                 `json:"organizationId"`
	Keyword        string                 `json:"keyword,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	DocumentTypeID string                 `json:"documentTypeId,omitempty"`
	StudentID      string                 `json:"studentId,omitempty"`
	FolderID       string                 `json:"folderId,omitempty"`
	Status         VerificationStatus     `json:"verificationStatus,omitempty"`
	Page           int                    `json:"page"`
	Limit          int                    `json:"limit"`
}

// SearchResult is a page of matching documents.
type SearchResult struct {
	Documents  []DocumentListItem `json:"documents"`
	Pagination *Pagination        `json:"pagination"`
}

// SearchHistory records one executed search.
type SearchHistory struct {
	ID             string         `db:"id" json:"id"`
	SearchTerm     *string        `db:"search_term" json:"searchTerm,omitempty"`
	SearchParams   types.JSONText `db:"search_params" json:"searchParams"`
	SearchedBy     string         `db:"searched_by" json:"searchedBy"`
	OrganizationID string         `db:"organization_id" json:"organizationId"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}
