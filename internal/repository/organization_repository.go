package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

const organizationColumns = "id, code, name, description, is_active, created_at, updated_at"

// OrganizationRepository manages tenant records.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository constructs an OrganizationRepository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// List returns every organization ordered by name.
func (r *OrganizationRepository) List(ctx context.Context) ([]models.Organization, error) {
	query := "SELECT " + organizationColumns + " FROM organizations ORDER BY name ASC"
	var orgs []models.Organization
	if err := r.db.SelectContext(ctx, &orgs, query); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}

// FindByID fetches an organization.
func (r *OrganizationRepository) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	query := "SELECT " + organizationColumns + " FROM organizations WHERE id = $1"
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, query, id); err != nil {
		return nil, err
	}
	return &org, nil
}

// CodesLike returns the base code and any suffixed variants already taken.
func (r *OrganizationRepository) CodesLike(ctx context.Context, base string) ([]string, error) {
	const query = `SELECT code FROM organizations WHERE code = $1 OR code LIKE $2`
	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(base)
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, base, escaped+`\_%`); err != nil {
		return nil, fmt.Errorf("list organization codes: %w", err)
	}
	return codes, nil
}

// Create inserts a new organization.
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now
	const query = `INSERT INTO organizations (id, code, name, description, is_active, created_at, updated_at)
        VALUES (:id, :code, :name, :description, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, org); err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}
