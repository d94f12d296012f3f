package models

import (
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// VerificationStatus is the review lifecycle state of a document.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// InvalidVerificationStatusMessage is returned for unknown status values.
const InvalidVerificationStatusMessage = "Invalid verification status. Must be one of: PENDING, APPROVED, REJECTED"

// ParseVerificationStatus normalises user input. VERIFIED is accepted as a legacy spelling of APPROVED.
func ParseVerificationStatus(raw string) (VerificationStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING":
		return VerificationPending, true
	case "APPROVED", "VERIFIED":
		return VerificationApproved, true
	case "REJECTED":
		return VerificationRejected, true
	default:
		return "", false
	}
}

// Document references a stored file inside one folder for one student.
type Document struct {
	ID                 string             `db:"id" json:"id"`
	StudentID          string             `db:"student_id" json:"studentId"`
	FolderID           string             `db:"folder_id" json:"folderId"`
	DocumentTypeID     *string            `db:"document_type_id" json:"documentTypeId,omitempty"`
	OrganizationID     string             `db:"organization_id" json:"organizationId"`
	Filename           string             `db:"filename" json:"filename"`
	FileSize           int64              `db:"file_size" json:"fileSize"`
	MimeType           string             `db:"mime_type" json:"mimeType"`
	StorageFileID      *string            `db:"storage_file_id" json:"storageFileId,omitempty"`
	StorageURL         string             `db:"storage_url" json:"uploadUrl"`
	Metadata           types.JSONText     `db:"metadata" json:"metadata"`
	MetadataSchemaID   *string            `db:"metadata_schema_id" json:"metadataSchemaId,omitempty"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verificationStatus"`
	VerifiedBy         *string            `db:"verified_by" json:"verifiedBy,omitempty"`
	VerifiedAt         *time.Time         `db:"verified_at" json:"verifiedAt,omitempty"`
	RejectionReason    *string            `db:"rejection_reason" json:"rejectionReason,omitempty"`
	UploadedBy         *string            `db:"uploaded_by" json:"uploadedBy,omitempty"`
	CreatedAt          time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updatedAt"`
}

// DocumentFilter captures document listing criteria.
type DocumentFilter struct {
	OrganizationID string
	StudentID      string
	FolderID       string
	DocumentTypeID string
	Status         VerificationStatus
}

// DocumentTypeSummary is the compact type projection used in search results.
type DocumentTypeSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DocumentListItem is a document joined with its student and type.
type DocumentListItem struct {
	Document
	Student      StudentSummary       `json:"student"`
	DocumentType *DocumentTypeSummary `json:"documentType,omitempty"`
}

// DocumentUpdate carries the PUT fields. Nil means untouched.
type DocumentUpdate struct {
	StudentID        *string        `json:"studentId"`
	FolderID         *string        `json:"folderId"`
	DocumentTypeID   *string        `json:"documentTypeId"`
	Filename         *string        `json:"filename"`
	FileSize         *int64         `json:"fileSize"`
	MimeType         *string        `json:"mimeType"`
	StorageURL       *string        `json:"uploadUrl"`
	Metadata         types.JSONText `json:"metadata"`
	MetadataSchemaID *string        `json:"metadataSchemaId"`
}

// Empty reports whether no field was supplied.
func (u DocumentUpdate) Empty() bool {
	return u.StudentID == nil && u.FolderID == nil && u.DocumentTypeID == nil && u.Filename == nil &&
		u.FileSize == nil && u.MimeType == nil && u.StorageURL == nil && u.Metadata == nil && u.MetadataSchemaID == nil
}

// VerificationHistory is one append-only entry of a document's review trail.
type VerificationHistory struct {
	ID             string             `db:"id" json:"id"`
	DocumentID     string             `db:"document_id" json:"documentId"`
	Status         VerificationStatus `db:"status" json:"status"`
	Comment        *string            `db:"comment" json:"comment,omitempty"`
	VerifiedBy     string             `db:"verified_by" json:"verifiedBy"`
	OrganizationID string             `db:"organization_id" json:"organizationId"`
	CreatedAt      time.Time          `db:"created_at" json:"createdAt"`
}

// ShareLink is a signed, expiring link to a stored document.
type ShareLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
