package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// OutboxStatus is the processing state of a durable side effect.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxProcessing OutboxStatus = "PROCESSING"
	OutboxDone       OutboxStatus = "DONE"
	OutboxFailed     OutboxStatus = "FAILED"
)

// Outbox task kinds.
const (
	TaskDeleteStorageFolder = "storage.delete_folder"
	TaskDeleteStorageFile   = "storage.delete_file"
	TaskIndexKeywords       = "keywords.index"
)

// OutboxTask is a side effect recorded in the same transaction as the change that needs it.
type OutboxTask struct {
	ID          string         `db:"id" json:"id"`
	Kind        string         `db:"kind" json:"kind"`
	Payload     types.JSONText `db:"payload" json:"payload"`
	Status      OutboxStatus   `db:"status" json:"status"`
	Attempts    int            `db:"attempts" json:"attempts"`
	LastError   *string        `db:"last_error" json:"lastError,omitempty"`
	AvailableAt time.Time      `db:"available_at" json:"availableAt"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// DeleteFolderPayload removes a folder's remote counterpart.
type DeleteFolderPayload struct {
	FolderID        string `json:"folderId"`
	StorageFolderID string `json:"storageFolderId"`
}

// DeleteFilePayload removes a document's stored object.
type DeleteFilePayload struct {
	DocumentID    string `json:"documentId"`
	StorageFileID string `json:"storageFileId"`
}

// IndexKeywordsPayload writes a document's keyword index.
type IndexKeywordsPayload struct {
	DocumentID    string   `json:"documentId"`
	StudentID     string   `json:"studentId"`
	ExtractedText *string  `json:"extractedText,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
}

// NewOutboxTask builds a pending task due immediately.
func NewOutboxTask(kind string, payload interface{}) (*OutboxTask, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	now := time.Now().UTC()
	return &OutboxTask{
		ID:          uuid.NewString(),
		Kind:        kind,
		Payload:     types.JSONText(raw),
		Status:      OutboxPending,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
