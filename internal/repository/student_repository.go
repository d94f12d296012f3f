package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

const studentColumns = `id, full_name, roll_number, session_year, father_name, date_of_birth, email, phone, address,
        national_id, passport_number, organization_id, user_id, created_by, created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters, newest first.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter, limit, offset int) ([]models.Student, int, error) {
	var w whereBuilder
	if filter.OrganizationID != "" {
		w.add("organization_id = %s", filter.OrganizationID)
	}
	if filter.CreatedBy != "" {
		w.add("created_by = %s", filter.CreatedBy)
	}
	if filter.Search != "" {
		p := w.next(likePattern(strings.TrimSpace(filter.Search)))
		w.raw(fmt.Sprintf("(full_name ILIKE %s OR roll_number ILIKE %s)", p, p))
	}
	where := w.clause()

	query := fmt.Sprintf("SELECT %s FROM students%s ORDER BY created_at DESC LIMIT %d OFFSET %d", studentColumns, where, limit, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"+where, w.args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindInOrganization fetches a student only when it belongs to orgID.
func (r *StudentRepository) FindInOrganization(ctx context.Context, q sqlx.QueryerContext, id, orgID string) (*models.Student, error) {
	if q == nil {
		q = r.db
	}
	query := "SELECT " + studentColumns + " FROM students WHERE id = $1 AND organization_id = $2"
	var student models.Student
	if err := sqlx.GetContext(ctx, q, &student, query, id, orgID); err != nil {
		return nil, err
	}
	return &student, nil
}

// RollNumberExists checks whether a roll number is already used inside an organization.
func (r *StudentRepository) RollNumberExists(ctx context.Context, q sqlx.QueryerContext, orgID, rollNumber string) (bool, error) {
	if q == nil {
		q = r.db
	}
	var exists int
	err := sqlx.GetContext(ctx, q, &exists, "SELECT 1 FROM students WHERE organization_id = $1 AND roll_number = $2 LIMIT 1", orgID, rollNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check roll number: %w", err)
	}
	return true, nil
}

// ExistingRollNumbers returns which of the given roll numbers are taken inside an organization.
func (r *StudentRepository) ExistingRollNumbers(ctx context.Context, orgID string, rollNumbers []string) ([]string, error) {
	if len(rollNumbers) == 0 {
		return nil, nil
	}
	var taken []string
	const query = `SELECT roll_number FROM students WHERE organization_id = $1 AND roll_number = ANY($2)`
	if err := r.db.SelectContext(ctx, &taken, query, orgID, pq.Array(rollNumbers)); err != nil {
		return nil, fmt.Errorf("list roll numbers: %w", err)
	}
	return taken, nil
}

// CreateWithTx inserts a student inside an existing transaction.
func (r *StudentRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, full_name, roll_number, session_year, father_name, date_of_birth, email, phone, address,
        national_id, passport_number, organization_id, user_id, created_by, created_at, updated_at)
        VALUES (:id, :full_name, :roll_number, :session_year, :father_name, :date_of_birth, :email, :phone, :address,
        :national_id, :passport_number, :organization_id, :user_id, :created_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// DocumentTypeIDs lists the distinct document types already uploaded for a student.
func (r *StudentRepository) DocumentTypeIDs(ctx context.Context, studentID, orgID string) ([]string, error) {
	const query = `SELECT DISTINCT document_type_id FROM documents
        WHERE student_id = $1 AND organization_id = $2 AND document_type_id IS NOT NULL
        ORDER BY document_type_id`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, studentID, orgID); err != nil {
		return nil, fmt.Errorf("list student document types: %w", err)
	}
	return ids, nil
}
