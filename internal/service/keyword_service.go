package service

import (
	"context"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/surgebase/porter2"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

const minKeywordLength = 3

type keywordRepository interface {
	Upsert(ctx context.Context, entry *models.DocumentKeywords) error
	List(ctx context.Context, orgID string, filter models.KeywordFilter) ([]models.DocumentKeywords, error)
}

// IndexKeywordsRequest replaces the keyword index of one document.
type IndexKeywordsRequest struct {
	DocumentID     string   `json:"documentId" validate:"required"`
	OrganizationID string   `json:"organizationId"`
	ExtractedText  *string  `json:"extractedText"`
	Keywords       []string `json:"keywords"`
}

// KeywordService maintains the per-document keyword index used by search.
type KeywordService struct {
	repo      keywordRepository
	documents documentFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewKeywordService constructs a KeywordService.
func NewKeywordService(repo keywordRepository, documents documentFinder, validate *validator.Validate, logger *zap.Logger) *KeywordService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordService{repo: repo, documents: documents, validator: validate, logger: logger}
}

// Index upserts the keyword row of an existing document, scoped to OrganizationID when set.
func (s *KeywordService) Index(ctx context.Context, req IndexKeywordsRequest) (*models.DocumentKeywords, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "documentId is required")
	}
	doc, err := s.documents.FindByID(ctx, req.DocumentID)
	if err != nil {
		return nil, notFoundOr(err, "Document not found", "failed to load document")
	}
	if req.OrganizationID != "" && doc.OrganizationID != req.OrganizationID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Document not found")
	}
	entry, err := s.upsert(ctx, doc.ID, doc.StudentID, req.ExtractedText, req.Keywords)
	if err != nil {
		return nil, internalError(err, "failed to index document keywords")
	}
	return entry, nil
}

// IndexPayload runs the keyword indexing task recorded by document creation.
func (s *KeywordService) IndexPayload(ctx context.Context, payload models.IndexKeywordsPayload) error {
	_, err := s.upsert(ctx, payload.DocumentID, payload.StudentID, payload.ExtractedText, payload.Keywords)
	return err
}

// List returns index rows of an organization.
func (s *KeywordService) List(ctx context.Context, orgID string, filter models.KeywordFilter) ([]models.DocumentKeywords, error) {
	if orgID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "organizationId is required")
	}
	entries, err := s.repo.List(ctx, orgID, filter)
	if err != nil {
		return nil, internalError(err, "failed to list document keywords")
	}
	return entries, nil
}

func (s *KeywordService) upsert(ctx context.Context, documentID, studentID string, text *string, keywords []string) (*models.DocumentKeywords, error) {
	if keywords == nil {
		keywords = DeriveKeywords(derefString(text))
	} else {
		keywords = NormaliseKeywords(keywords)
	}
	entry := &models.DocumentKeywords{
		DocumentID:    documentID,
		StudentID:     studentID,
		ExtractedText: text,
		Keywords:      keywords,
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, err
	}
	s.logger.Debug("document keywords indexed", zap.String("document_id", documentID), zap.Int("keywords", len(keywords)))
	return entry, nil
}

// NormaliseKeywords lowercases, trims and deduplicates keywords, keeping first-seen order.
func NormaliseKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if _, ok := seen[keyword]; ok {
			continue
		}
		seen[keyword] = struct{}{}
		out = append(out, keyword)
	}
	return out
}

// DeriveKeywords extracts every word of at least three letters from text along with its stem.
func DeriveKeywords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	candidates := make([]string, 0, len(words)*2)
	for _, word := range words {
		if len([]rune(word)) < minKeywordLength {
			continue
		}
		candidates = append(candidates, word)
		if stem := keywordStem(word); stem != word {
			candidates = append(candidates, stem)
		}
	}
	return NormaliseKeywords(candidates)
}

// keywordStem returns the porter2 stem of an already lowercased word.
func keywordStem(word string) string {
	stem := porter2.Stem(word)
	if stem == "" {
		return word
	}
	return stem
}
