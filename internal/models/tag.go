package models

import "time"

// DefaultTagColor is applied when a tag is created without a color.
const DefaultTagColor = "#3b82f6"

// Tag is an organization scoped label.
type Tag struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Color          string    `db:"color" json:"color"`
	OrganizationID string    `db:"organization_id" json:"organizationId"`
	CreatedBy      *string   `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// TagLink attaches a tag to a document or folder.
type TagLink struct {
	ID        string    `db:"id" json:"id"`
	TargetID  string    `db:"target_id" json:"targetId"`
	TagID     string    `db:"tag_id" json:"tagId"`
	AddedBy   *string   `db:"added_by" json:"addedBy,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	Tag       *Tag      `db:"-" json:"tag,omitempty"`
}

// TagTarget selects the junction table a TagLink lives in.
type TagTarget string

const (
	TagTargetDocument TagTarget = "document"
	TagTargetFolder   TagTarget = "folder"
)
