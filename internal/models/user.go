package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin UserRole = "ADMIN"
	RoleUser  UserRole = "USER"
)

// User represents an organization member stored in the users table.
type User struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Phone          *string   `db:"phone" json:"phone,omitempty"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	Role           UserRole  `db:"role" json:"role"`
	OrganizationID string    `db:"organization_id" json:"organizationId"`
	IsActive       bool      `db:"is_active" json:"isActive"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	OrganizationID string
	Search         string
	Page           int
	Limit          int
}

// UserWithProfile is returned when a user is registered together with its student profile.
// TemporaryPassword is only set when the password was generated.
type UserWithProfile struct {
	User              *User    `json:"user"`
	Profile           *Student `json:"profile"`
	TemporaryPassword string   `json:"temporaryPassword,omitempty"`
}
