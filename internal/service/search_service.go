package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/export"
)

const (
	// InvalidMetadataSearchMessage is returned when the metadata filter is not a JSON object.
	InvalidMetadataSearchMessage = "Invalid metadata search format. Must be valid JSON."

	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

var searchTracer = otel.Tracer("sma-docs-api.search")

type searchRepository interface {
	KeywordDocumentIDs(ctx context.Context, orgID, term string, exact []string) ([]string, error)
	Search(ctx context.Context, params models.SearchParams, documentIDs []string, limit, offset int) ([]models.DocumentListItem, error)
	Count(ctx context.Context, params models.SearchParams, documentIDs []string) (int, error)
	RecordHistory(ctx context.Context, entry *models.SearchHistory) error
}

type searchExporter interface {
	ContentType() string
	Extension() string
	Render(data export.Dataset, title string) ([]byte, error)
}

// SearchServiceConfig bounds paging and export size.
type SearchServiceConfig struct {
	DefaultLimit  int
	MaxLimit      int
	RecordHistory bool
	ExportMaxRows int
}

// ExportFile is a rendered search export.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SearchService finds documents by metadata, references and indexed keywords.
type SearchService struct {
	repo      searchRepository
	exporters map[string]searchExporter
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       SearchServiceConfig
	now       func() time.Time
}

// NewSearchService constructs a SearchService with CSV and PDF exporters. metrics may be nil.
func NewSearchService(repo searchRepository, metrics *MetricsService, logger *zap.Logger, cfg SearchServiceConfig) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaultSearchLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = maxSearchLimit
	}
	if cfg.ExportMaxRows <= 0 {
		cfg.ExportMaxRows = 1000
	}
	return &SearchService{
		repo: repo,
		exporters: map[string]searchExporter{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// ParseMetadataFilter decodes the metadata query parameter. Values must be non-null.
func ParseMetadataFilter(raw string) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var filter map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &filter); err != nil || filter == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, InvalidMetadataSearchMessage)
	}
	for _, value := range filter {
		if value == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, InvalidMetadataSearchMessage)
		}
	}
	return filter, nil
}

// Search returns one page of matches. actorID, when known, is recorded in the search history.
func (s *SearchService) Search(ctx context.Context, params models.SearchParams, actorID string) (*models.SearchResult, error) {
	if params.OrganizationID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "organizationId is required")
	}
	page, limit, offset := models.PageWindow(params.Page, params.Limit, s.cfg.DefaultLimit, s.cfg.MaxLimit)
	params.Page, params.Limit = page, limit

	ctx, span := searchTracer.Start(ctx, "SearchService.Search", trace.WithAttributes(
		attribute.String("search.organization_id", params.OrganizationID),
		attribute.Bool("search.keyword", params.Keyword != ""),
		attribute.Int("search.metadata_keys", len(params.Metadata)),
		attribute.Int("search.page", page),
	))
	defer span.End()

	docs, total, err := s.run(ctx, params, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.total", total))

	s.recordHistory(ctx, params, actorID)
	return &models.SearchResult{Documents: docs, Pagination: models.NewPagination(page, limit, total)}, nil
}

// Export renders up to ExportMaxRows matches in the requested format.
func (s *SearchService) Export(ctx context.Context, params models.SearchParams, format, actorID string) (*ExportFile, error) {
	if params.OrganizationID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "organizationId is required")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	ctx, span := searchTracer.Start(ctx, "SearchService.Export", trace.WithAttributes(
		attribute.String("search.organization_id", params.OrganizationID),
		attribute.String("export.format", format),
	))
	defer span.End()

	params.Page, params.Limit = 1, s.cfg.ExportMaxRows
	docs, _, err := s.run(ctx, params, s.cfg.ExportMaxRows, 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		return nil, err
	}
	data, err := exporter.Render(searchDataset(docs), "Document search results")
	if err != nil {
		return nil, internalError(err, "failed to render export")
	}

	s.recordHistory(ctx, params, actorID)
	return &ExportFile{
		Filename:    fmt.Sprintf("documents-%s.%s", s.now().UTC().Format("20060102-150405"), exporter.Extension()),
		ContentType: exporter.ContentType(),
		Data:        data,
	}, nil
}

// run applies the keyword prefilter, then fetches the page and the total concurrently.
func (s *SearchService) run(ctx context.Context, params models.SearchParams, limit, offset int) ([]models.DocumentListItem, int, error) {
	var documentIDs []string
	if keyword := strings.TrimSpace(params.Keyword); keyword != "" {
		start := time.Now()
		ids, err := s.repo.KeywordDocumentIDs(ctx, params.OrganizationID, keyword, keywordTerms(keyword))
		s.metrics.ObserveDBQuery("search.keywords", time.Since(start))
		if err != nil {
			return nil, 0, internalError(err, "failed to search keywords")
		}
		if len(ids) == 0 {
			return []models.DocumentListItem{}, 0, nil
		}
		documentIDs = ids
	}

	var (
		docs  []models.DocumentListItem
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		rows, err := s.repo.Search(gctx, params, documentIDs, limit, offset)
		s.metrics.ObserveDBQuery("search.documents", time.Since(start))
		if err != nil {
			return err
		}
		docs = rows
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		count, err := s.repo.Count(gctx, params, documentIDs)
		s.metrics.ObserveDBQuery("search.count", time.Since(start))
		if err != nil {
			return err
		}
		total = count
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, internalError(err, "failed to search documents")
	}
	if docs == nil {
		docs = []models.DocumentListItem{}
	}
	return docs, total, nil
}

func (s *SearchService) recordHistory(ctx context.Context, params models.SearchParams, actorID string) {
	if !s.cfg.RecordHistory || actorID == "" {
		return
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		s.logger.Warn("encode search history params", zap.Error(err))
		return
	}
	entry := &models.SearchHistory{
		SearchTerm:     stringPtr(strings.TrimSpace(params.Keyword)),
		SearchParams:   encoded,
		SearchedBy:     actorID,
		OrganizationID: params.OrganizationID,
	}
	if err := s.repo.RecordHistory(ctx, entry); err != nil {
		s.logger.Warn("record search history failed",
			zap.String("organization_id", params.OrganizationID),
			zap.String("searched_by", actorID),
			zap.Error(err),
		)
	}
}

// keywordTerms returns the lowercased keyword and, when different, its stem.
func keywordTerms(keyword string) []string {
	term := strings.ToLower(keyword)
	terms := []string{term}
	if stem := keywordStem(term); stem != term {
		terms = append(terms, stem)
	}
	return terms
}

func searchDataset(docs []models.DocumentListItem) export.Dataset {
	headers := []string{"Document ID", "Filename", "Student", "Document Type", "Status", "Uploaded At"}
	rows := make([]map[string]string, 0, len(docs))
	for _, doc := range docs {
		typeName := ""
		if doc.DocumentType != nil {
			typeName = doc.DocumentType.Name
		}
		rows = append(rows, map[string]string{
			"Document ID":   doc.ID,
			"Filename":      doc.Filename,
			"Student":       doc.Student.FullName,
			"Document Type": typeName,
			"Status":        string(doc.VerificationStatus),
			"Uploaded At":   doc.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
