package models

import (
	"time"

	"github.com/lib/pq"
)

// DocumentKeywords is the derived search index row of a document.
type DocumentKeywords struct {
	ID            string         `db:"id" json:"id"`
	DocumentID    string         `db:"document_id" json:"documentId"`
	StudentID     string         `db:"student_id" json:"studentId"`
	ExtractedText *string        `db:"extracted_text" json:"extractedText,omitempty"`
	Keywords      pq.StringArray `db:"keywords" json:"keywords"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
}

// KeywordFilter narrows keyword index listings.
type KeywordFilter struct {
	DocumentID string
	StudentID  string
	TextSearch string
}
