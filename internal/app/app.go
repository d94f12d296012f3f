// Package app wires repositories, services and background workers from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/handler"
	"github.com/noah-isme/sma-docs-api/internal/repository"
	"github.com/noah-isme/sma-docs-api/internal/service"
	"github.com/noah-isme/sma-docs-api/pkg/cache"
	"github.com/noah-isme/sma-docs-api/pkg/config"
	"github.com/noah-isme/sma-docs-api/pkg/database"
	"github.com/noah-isme/sma-docs-api/pkg/storage"
)

// Container holds the long-lived dependencies of a process.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sqlx.DB
	Redis   *redis.Client
	Metrics *service.MetricsService
	Store   storage.RemoteStore

	Auth          *service.AuthService
	Organizations *service.OrganizationService
	Users         *service.UserService
	Students      *service.StudentService
	Folders       *service.FolderService
	Documents     *service.DocumentService
	DocumentTypes *service.DocumentTypeService
	Tags          *service.TagService
	Keywords      *service.KeywordService
	Search        *service.SearchService
	Outbox        *service.OutboxProcessor
}

// New connects to Postgres, Redis and the blob store and builds every service.
// Redis is optional: without it the read-through cache is disabled.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, cache disabled", zap.Error(err))
		redisClient = nil
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Redis:   redisClient,
		Metrics: service.NewMetricsService(),
		Store:   store,
	}
	c.build()
	return c, nil
}

func (c *Container) build() {
	cfg, logger, db := c.Config, c.Logger, c.DB
	validate := validator.New()

	var cacheRepo service.CacheRepository
	if c.Redis != nil {
		cacheRepo = repository.NewCacheRepository(c.Redis, logger)
	}
	cacheSvc := service.NewCacheService(cacheRepo, c.Metrics, cfg.Cache.TTL, logger, cfg.Cache.Enabled)

	organizations := repository.NewOrganizationRepository(db)
	users := repository.NewUserRepository(db)
	students := repository.NewStudentRepository(db)
	folders := repository.NewFolderRepository(db)
	documents := repository.NewDocumentRepository(db)
	documentTypes := repository.NewDocumentTypeRepository(db)
	verifications := repository.NewVerificationRepository(db)
	tags := repository.NewTagRepository(db)
	keywords := repository.NewKeywordRepository(db)
	search := repository.NewSearchRepository(db)
	outbox := repository.NewOutboxRepository(db)

	c.Auth = service.NewAuthService(logger, service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	c.Organizations = service.NewOrganizationService(organizations, validate, logger)
	c.Users = service.NewUserService(users, students, db, validate, logger)
	c.Students = service.NewStudentService(students, folders, db, validate, logger)
	c.Folders = service.NewFolderService(folders, documents, students, outbox, cacheSvc, db, validate, logger,
		service.FolderServiceConfig{MaxDepth: cfg.Folders.MaxDepth})
	c.Documents = service.NewDocumentService(documents, verifications, students, folders, documentTypes, outbox, cacheSvc,
		storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL), db, validate, logger,
		service.DocumentServiceConfig{ShareBaseURL: cfg.Storage.PublicBaseURL + cfg.APIPrefix, CountTTL: cfg.Cache.TTL})
	c.DocumentTypes = service.NewDocumentTypeService(documentTypes, cacheSvc, db, validate, logger)
	c.Tags = service.NewTagService(tags, documents, folders, validate, logger)
	c.Keywords = service.NewKeywordService(keywords, documents, validate, logger)
	c.Search = service.NewSearchService(search, c.Metrics, logger, service.SearchServiceConfig{
		DefaultLimit:  cfg.Search.DefaultLimit,
		MaxLimit:      cfg.Search.MaxLimit,
		RecordHistory: cfg.Search.RecordHistory,
		ExportMaxRows: cfg.Search.ExportMaxRows,
	})
	c.Outbox = service.NewOutboxProcessor(outbox, c.Store, c.Keywords, c.Metrics, logger, service.OutboxProcessorConfig{
		Workers:      cfg.Outbox.Workers,
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		RetryDelay:   cfg.Outbox.RetryDelay,
		StaleAfter:   cfg.Outbox.StaleAfter,
	})
}

// Handlers builds the HTTP handlers over the container's services.
func (c *Container) Handlers() handler.Handlers {
	checks := map[string]handler.Pinger{"database": c.DB.PingContext}
	if c.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return c.Redis.Ping(ctx).Err() }
	}
	return handler.Handlers{
		Organizations: handler.NewOrganizationHandler(c.Organizations),
		Users:         handler.NewUserHandler(c.Users),
		Students:      handler.NewStudentHandler(c.Students),
		Folders:       handler.NewFolderHandler(c.Folders),
		Documents:     handler.NewDocumentHandler(c.Documents, c.Config.JWT.Required),
		DocumentTypes: handler.NewDocumentTypeHandler(c.DocumentTypes),
		Tags:          handler.NewTagHandler(c.Tags),
		Keywords:      handler.NewKeywordHandler(c.Keywords),
		Search:        handler.NewSearchHandler(c.Search),
		Metrics:       handler.NewMetricsHandler(c.Metrics, checks),
	}
}

// Close releases the database and Redis connections.
func (c *Container) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}
