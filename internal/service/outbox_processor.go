package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/pkg/jobs"
	"github.com/noah-isme/sma-docs-api/pkg/storage"
)

var errPermanent = errors.New("permanent outbox failure")

type outboxRepository interface {
	ClaimDue(ctx context.Context, limit int, now time.Time) ([]models.OutboxTask, error)
	MarkDone(ctx context.Context, id string) error
	MarkRetry(ctx context.Context, id, lastError string, availableAt time.Time) error
	MarkFailed(ctx context.Context, id, lastError string) error
	RecoverStale(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[models.OutboxStatus]int, error)
}

type keywordIndexer interface {
	IndexPayload(ctx context.Context, payload models.IndexKeywordsPayload) error
}

// OutboxProcessorConfig tunes polling and retry.
type OutboxProcessorConfig struct {
	Workers      int
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	RetryDelay   time.Duration
	StaleAfter   time.Duration
}

// OutboxProcessor claims due outbox tasks and executes them on a worker queue.
type OutboxProcessor struct {
	repo     outboxRepository
	store    storage.RemoteStore
	keywords keywordIndexer
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      OutboxProcessorConfig
	queue    *jobs.Queue
	now      func() time.Time
}

// NewOutboxProcessor constructs a processor. The worker queue starts with Start.
func NewOutboxProcessor(repo outboxRepository, store storage.RemoteStore, keywords keywordIndexer, metrics *MetricsService, logger *zap.Logger, cfg OutboxProcessorConfig) *OutboxProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	p := &OutboxProcessor{
		repo:     repo,
		store:    store,
		keywords: keywords,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
	p.queue = jobs.NewQueue("outbox", p.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BatchSize,
		Logger:     logger,
	})
	return p
}

// Start polls on a ticker until ctx ends, then stops the workers.
func (p *OutboxProcessor) Start(ctx context.Context) {
	p.queue.Start(ctx)
	defer p.queue.Stop()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox processor stopped")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *OutboxProcessor) cycle(ctx context.Context) {
	if _, err := p.RecoverStale(ctx); err != nil {
		p.logger.Warn("outbox stale recovery failed", zap.Error(err))
	}
	if _, err := p.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("outbox poll failed", zap.Error(err))
	}
}

// Poll claims due tasks and hands them to the worker queue.
func (p *OutboxProcessor) Poll(ctx context.Context) (int, error) {
	tasks, err := p.repo.ClaimDue(ctx, p.cfg.BatchSize, p.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("claim outbox tasks: %w", err)
	}
	dispatched := 0
	for _, task := range tasks {
		if err := p.queue.Enqueue(jobs.Job{ID: task.ID, Kind: task.Kind, Payload: task}); err != nil {
			// Release the claim so another poll picks the task up.
			if markErr := p.repo.MarkRetry(ctx, task.ID, err.Error(), p.now().UTC()); markErr != nil {
				p.logger.Error("release outbox task failed", zap.String("task_id", task.ID), zap.Error(markErr))
			}
			continue
		}
		dispatched++
	}
	p.refreshBacklog(ctx)
	return dispatched, nil
}

// Drain runs one claim cycle synchronously and returns how many tasks were executed.
func (p *OutboxProcessor) Drain(ctx context.Context) (int, error) {
	if _, err := p.RecoverStale(ctx); err != nil {
		return 0, err
	}
	tasks, err := p.repo.ClaimDue(ctx, p.cfg.BatchSize, p.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("claim outbox tasks: %w", err)
	}
	for _, task := range tasks {
		p.process(ctx, task)
	}
	p.refreshBacklog(ctx)
	return len(tasks), nil
}

// RecoverStale returns tasks stuck in PROCESSING longer than StaleAfter to PENDING.
func (p *OutboxProcessor) RecoverStale(ctx context.Context) (int64, error) {
	recovered, err := p.repo.RecoverStale(ctx, p.now().UTC().Add(-p.cfg.StaleAfter))
	if err != nil {
		return 0, fmt.Errorf("recover stale outbox tasks: %w", err)
	}
	if recovered > 0 {
		p.logger.Warn("recovered stale outbox tasks", zap.Int64("count", recovered))
	}
	return recovered, nil
}

func (p *OutboxProcessor) handleJob(ctx context.Context, job jobs.Job) error {
	task, ok := job.Payload.(models.OutboxTask)
	if !ok {
		p.logger.Error("unexpected outbox job payload", zap.String("job_id", job.ID))
		return nil
	}
	p.process(ctx, task)
	return nil
}

// process executes a claimed task and records the outcome. Retries are durable, never in memory.
func (p *OutboxProcessor) process(ctx context.Context, task models.OutboxTask) {
	start := p.now()
	execErr := p.execute(ctx, task)
	duration := p.now().Sub(start)

	logger := p.logger.With(zap.String("task_id", task.ID), zap.String("kind", task.Kind), zap.Int("attempt", task.Attempts))
	switch {
	case execErr == nil:
		if err := p.repo.MarkDone(ctx, task.ID); err != nil {
			logger.Error("mark outbox task done failed", zap.Error(err))
		}
		p.metrics.RecordOutboxTask(task.Kind, OutboxOutcomeDone, duration)
	case errors.Is(execErr, errPermanent) || task.Attempts >= p.cfg.MaxAttempts:
		if err := p.repo.MarkFailed(ctx, task.ID, execErr.Error()); err != nil {
			logger.Error("mark outbox task failed failed", zap.Error(err))
		}
		p.metrics.RecordOutboxTask(task.Kind, OutboxOutcomeFailed, duration)
		logger.Error("outbox task dead-lettered", zap.Error(execErr))
	default:
		next := p.now().UTC().Add(p.cfg.RetryDelay * time.Duration(task.Attempts))
		if err := p.repo.MarkRetry(ctx, task.ID, execErr.Error(), next); err != nil {
			logger.Error("schedule outbox retry failed", zap.Error(err))
		}
		p.metrics.RecordOutboxTask(task.Kind, OutboxOutcomeRetry, duration)
		logger.Warn("outbox task failed, retry scheduled", zap.Time("available_at", next), zap.Error(execErr))
	}
}

func (p *OutboxProcessor) execute(ctx context.Context, task models.OutboxTask) error {
	switch task.Kind {
	case models.TaskDeleteStorageFolder:
		var payload models.DeleteFolderPayload
		if err := decodePayload(task, &payload); err != nil {
			return err
		}
		return p.store.DeletePrefix(ctx, payload.StorageFolderID)
	case models.TaskDeleteStorageFile:
		var payload models.DeleteFilePayload
		if err := decodePayload(task, &payload); err != nil {
			return err
		}
		return p.store.Delete(ctx, payload.StorageFileID)
	case models.TaskIndexKeywords:
		var payload models.IndexKeywordsPayload
		if err := decodePayload(task, &payload); err != nil {
			return err
		}
		return p.keywords.IndexPayload(ctx, payload)
	default:
		return fmt.Errorf("%w: unknown kind %q", errPermanent, task.Kind)
	}
}

func (p *OutboxProcessor) refreshBacklog(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	counts, err := p.repo.CountByStatus(ctx)
	if err != nil {
		p.logger.Warn("count outbox backlog failed", zap.Error(err))
		return
	}
	p.metrics.SetOutboxBacklog(counts)
}

func decodePayload(task models.OutboxTask, dest interface{}) error {
	if err := json.Unmarshal(task.Payload, dest); err != nil {
		return fmt.Errorf("%w: decode %s payload: %v", errPermanent, task.Kind, err)
	}
	return nil
}
