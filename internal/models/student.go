package models

import "time"

// Student is the subject documents are collected for.
type Student struct {
	ID             string     `db:"id" json:"id"`
	FullName       string     `db:"full_name" json:"fullName"`
	RollNumber     *string    `db:"roll_number" json:"rollNumber,omitempty"`
	SessionYear    *string    `db:"session_year" json:"sessionYear,omitempty"`
	FatherName     *string    `db:"father_name" json:"fatherName,omitempty"`
	DateOfBirth    *time.Time `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	Email          *string    `db:"email" json:"email,omitempty"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	Address        *string    `db:"address" json:"address,omitempty"`
	NationalID     *string    `db:"national_id" json:"nationalId,omitempty"`
	PassportNumber *string    `db:"passport_number" json:"passportNumber,omitempty"`
	OrganizationID string     `db:"organization_id" json:"organizationId"`
	UserID         *string    `db:"user_id" json:"userId,omitempty"`
	CreatedBy      *string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	OrganizationID string
	CreatedBy      string
	Search         string
	Page           int
	Limit          int
}

// StudentSummary is the compact student projection embedded in folder and document listings.
type StudentSummary struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"fullName"`
}

// StudentWithFolder is returned when a student is registered together with its root folder.
type StudentWithFolder struct {
	Student *Student `json:"student"`
	Folder  *Folder  `json:"folder"`
}

// BulkImportError reports a rejected CSV row. Row numbers are 1-based and exclude the header.
type BulkImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// BulkImportResults summarises a bulk student import.
type BulkImportResults struct {
	Success int               `json:"success"`
	Failed  int               `json:"failed"`
	Errors  []BulkImportError `json:"errors"`
}

// BulkImportResponse is the bulk upload outcome.
type BulkImportResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Results BulkImportResults `json:"results"`
}
