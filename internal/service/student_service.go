package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/repository"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

const birthDateLayout = "2006-01-02"

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter, limit, offset int) ([]models.Student, int, error)
	FindInOrganization(ctx context.Context, q sqlx.QueryerContext, id, orgID string) (*models.Student, error)
	RollNumberExists(ctx context.Context, q sqlx.QueryerContext, orgID, rollNumber string) (bool, error)
	ExistingRollNumbers(ctx context.Context, orgID string, rollNumbers []string) ([]string, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, student *models.Student) error
	DocumentTypeIDs(ctx context.Context, studentID, orgID string) ([]string, error)
}

type rootFolderWriter interface {
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, folder *models.Folder) error
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	FullName       string  `json:"fullName" validate:"required"`
	RollNumber     string  `json:"rollNumber" validate:"required"`
	OrganizationID string  `json:"organizationId" validate:"required"`
	CreatedBy      string  `json:"createdBy" validate:"required"`
	SessionYear    string  `json:"sessionYear" validate:"required"`
	FatherName     *string `json:"fatherName"`
	DateOfBirth    string  `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Phone          *string `json:"phone"`
	Address        *string `json:"address"`
	NationalID     *string `json:"nationalId"`
	PassportNumber *string `json:"passportNumber"`
	UserID         *string `json:"userId"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	folders   rootFolderWriter
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, folders rootFolderWriter, tx txProvider, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, folders: folders, tx: tx, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	page, limit, offset := models.PageWindow(filter.Page, filter.Limit, 50, 0)
	students, total, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, nil, internalError(err, "failed to list students")
	}
	if students == nil {
		students = []models.Student{}
	}
	return students, models.NewPagination(page, limit, total), nil
}

// Create registers a student together with its root folder.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (result *models.StudentWithFolder, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "Missing required fields")
	}
	student, err := req.toStudent()
	if err != nil {
		return nil, validationError(err, "invalid dateOfBirth")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	exists, err := s.repo.RollNumberExists(ctx, tx, student.OrganizationID, req.RollNumber)
	if err != nil {
		return nil, internalError(err, "failed to validate roll number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("Student with roll number %s already exists", req.RollNumber))
	}

	folder, err := s.insertWithRootFolder(ctx, tx, student)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit student")
	}

	s.logger.Info("student created",
		zap.String("student_id", student.ID),
		zap.String("folder_id", folder.ID),
		zap.String("organization_id", student.OrganizationID),
	)
	return &models.StudentWithFolder{Student: student, Folder: folder}, nil
}

func (s *StudentService) insertWithRootFolder(ctx context.Context, tx *sqlx.Tx, student *models.Student) (*models.Folder, error) {
	if err := s.repo.CreateWithTx(ctx, tx, student); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("Student with roll number %s already exists", derefString(student.RollNumber)))
		}
		return nil, internalError(err, "failed to create student")
	}
	folder := rootFolderFor(student)
	if err := s.folders.CreateWithTx(ctx, tx, folder); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student root folder already exists")
		}
		return nil, internalError(err, "failed to create student folder")
	}
	return folder, nil
}

// rootFolderFor names the root folder <fullName>_<rollNumber>_<sessionYear>.
func rootFolderFor(student *models.Student) *models.Folder {
	id := uuid.NewString()
	description := "Main folder for student " + student.FullName
	storageKey := folderStorageKey(id)
	studentID := student.ID
	return &models.Folder{
		ID:              id,
		Name:            fmt.Sprintf("%s_%s_%s", student.FullName, derefString(student.RollNumber), derefString(student.SessionYear)),
		Description:     &description,
		StudentID:       &studentID,
		OrganizationID:  student.OrganizationID,
		CreatedBy:       student.CreatedBy,
		StorageFolderID: &storageKey,
		Depth:           0,
	}
}

// BulkImport reads a CSV of students. Invalid rows are reported and skipped, valid rows are inserted
// with their root folders in one transaction.
func (s *StudentService) BulkImport(ctx context.Context, orgID, createdBy string, r io.Reader) (resp *models.BulkImportResponse, err error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Organization ID is required")
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "CSV file is empty")
	}
	if err != nil {
		return nil, validationError(err, "invalid CSV file")
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	var rows [][]string
	for {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, validationError(readErr, "invalid CSV file")
		}
		if blankRecord(record) {
			continue
		}
		rows = append(rows, record)
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "CSV file is empty")
	}

	results := models.BulkImportResults{Errors: []models.BulkImportError{}}
	candidates := make([]*models.Student, 0, len(rows))
	candidateRows := make([]int, 0, len(rows))
	for i, record := range rows {
		req := CreateStudentRequest{
			FullName:       csvField(record, columns, "fullName"),
			RollNumber:     csvField(record, columns, "rollNumber"),
			DateOfBirth:    csvField(record, columns, "dateOfBirth"),
			SessionYear:    csvField(record, columns, "sessionYear"),
			FatherName:     stringPtr(csvField(record, columns, "fatherName")),
			Email:          stringPtr(csvField(record, columns, "email")),
			Phone:          stringPtr(csvField(record, columns, "phone")),
			Address:        stringPtr(csvField(record, columns, "address")),
			NationalID:     stringPtr(csvField(record, columns, "nationalId")),
			PassportNumber: stringPtr(csvField(record, columns, "passportNumber")),
			OrganizationID: orgID,
			CreatedBy:      createdBy,
		}
		student, rowErr := s.validateImportRow(req)
		if rowErr != nil {
			results.Failed++
			results.Errors = append(results.Errors, models.BulkImportError{Row: i + 1, Error: rowErr.Error()})
			continue
		}
		candidates = append(candidates, student)
		candidateRows = append(candidateRows, i+1)
	}

	rollNumbers := make([]string, 0, len(candidates))
	for _, student := range candidates {
		rollNumbers = append(rollNumbers, *student.RollNumber)
	}
	existing, err := s.repo.ExistingRollNumbers(ctx, orgID, rollNumbers)
	if err != nil {
		return nil, internalError(err, "failed to validate roll numbers")
	}
	seen := make(map[string]struct{}, len(existing)+len(candidates))
	for _, roll := range existing {
		seen[roll] = struct{}{}
	}

	accepted := make([]*models.Student, 0, len(candidates))
	for i, student := range candidates {
		roll := *student.RollNumber
		if _, dup := seen[roll]; dup {
			results.Failed++
			results.Errors = append(results.Errors, models.BulkImportError{
				Row:   candidateRows[i],
				Error: fmt.Sprintf("Student with roll number %s already exists", roll),
			})
			continue
		}
		seen[roll] = struct{}{}
		accepted = append(accepted, student)
	}

	if len(accepted) > 0 {
		tx, txErr := s.tx.BeginTxx(ctx, nil)
		if txErr != nil {
			return nil, internalError(txErr, "failed to begin transaction")
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
		for _, student := range accepted {
			if _, err = s.insertWithRootFolder(ctx, tx, student); err != nil {
				return nil, err
			}
		}
		if err = tx.Commit(); err != nil {
			return nil, internalError(err, "failed to commit students")
		}
	}
	results.Success = len(accepted)

	s.logger.Info("bulk student import processed",
		zap.String("organization_id", orgID),
		zap.Int("records", len(rows)),
		zap.Int("success", results.Success),
		zap.Int("failed", results.Failed),
	)
	return &models.BulkImportResponse{
		Success: true,
		Message: fmt.Sprintf("Processed %d records. %d students added with folders, %d failed.", len(rows), results.Success, results.Failed),
		Results: results,
	}, nil
}

func (s *StudentService) validateImportRow(req CreateStudentRequest) (*models.Student, error) {
	switch {
	case req.FullName == "":
		return nil, errors.New("fullName: Full name is required")
	case req.RollNumber == "":
		return nil, errors.New("rollNumber: Roll number is required")
	case req.DateOfBirth == "":
		return nil, errors.New("dateOfBirth: Date must be in YYYY-MM-DD format")
	case req.SessionYear == "":
		return nil, errors.New("sessionYear: Session year is required")
	}
	if req.Email != nil {
		if err := s.validator.Var(*req.Email, "email"); err != nil {
			return nil, errors.New("email: Invalid email format")
		}
	}
	student, err := req.toStudent()
	if err != nil {
		return nil, fmt.Errorf("Invalid date format for dateOfBirth: %s", req.DateOfBirth)
	}
	return student, nil
}

// DocumentTypes returns the document types already uploaded for a student.
func (s *StudentService) DocumentTypes(ctx context.Context, studentID, orgID string) ([]string, error) {
	if orgID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "organizationId is required")
	}
	if _, err := s.repo.FindInOrganization(ctx, nil, studentID, orgID); err != nil {
		return nil, notFoundOr(err, "Student not found", "failed to load student")
	}
	ids, err := s.repo.DocumentTypeIDs(ctx, studentID, orgID)
	if err != nil {
		return nil, internalError(err, "failed to list student document types")
	}
	return ids, nil
}

func (req CreateStudentRequest) toStudent() (*models.Student, error) {
	student := &models.Student{
		FullName:       strings.TrimSpace(req.FullName),
		RollNumber:     stringPtr(strings.TrimSpace(req.RollNumber)),
		SessionYear:    stringPtr(strings.TrimSpace(req.SessionYear)),
		FatherName:     req.FatherName,
		Email:          req.Email,
		Phone:          req.Phone,
		Address:        req.Address,
		NationalID:     req.NationalID,
		PassportNumber: req.PassportNumber,
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		CreatedBy:      stringPtr(req.CreatedBy),
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse(birthDateLayout, req.DateOfBirth)
		if err != nil {
			return nil, err
		}
		student.DateOfBirth = &dob
	}
	return student, nil
}

func csvField(record []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
