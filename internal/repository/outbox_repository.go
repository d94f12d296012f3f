package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

const outboxColumns = `id, kind, payload, status, attempts, last_error, available_at, created_at, updated_at`

// OutboxRepository persists side effects that must survive a crash between commit and execution.
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs an OutboxRepository.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// EnqueueWithTx records tasks in the caller's transaction.
func (r *OutboxRepository) EnqueueWithTx(ctx context.Context, tx *sqlx.Tx, tasks ...*models.OutboxTask) error {
	if len(tasks) == 0 {
		return nil
	}
	const query = `INSERT INTO outbox_tasks (id, kind, payload, status, attempts, available_at, created_at, updated_at)
        VALUES (:id, :kind, :payload, :status, :attempts, :available_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, tasks); err != nil {
		return fmt.Errorf("enqueue outbox tasks: %w", err)
	}
	return nil
}

// ClaimDue moves up to limit due tasks to PROCESSING and returns them. Concurrent claimers skip
// each other's rows.
func (r *OutboxRepository) ClaimDue(ctx context.Context, limit int, now time.Time) ([]models.OutboxTask, error) {
	query := fmt.Sprintf(`UPDATE outbox_tasks SET status = $1, attempts = attempts + 1, updated_at = $2
        WHERE id IN (
            SELECT id FROM outbox_tasks WHERE status = $3 AND available_at <= $2
            ORDER BY available_at ASC LIMIT $4 FOR UPDATE SKIP LOCKED
        ) RETURNING %s`, outboxColumns)
	tasks := []models.OutboxTask{}
	if err := r.db.SelectContext(ctx, &tasks, query, models.OutboxProcessing, now, models.OutboxPending, limit); err != nil {
		return nil, fmt.Errorf("claim outbox tasks: %w", err)
	}
	return tasks, nil
}

// MarkDone completes a task.
func (r *OutboxRepository) MarkDone(ctx context.Context, id string) error {
	const query = `UPDATE outbox_tasks SET status = $2, last_error = NULL, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.OutboxDone, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark outbox task done: %w", err)
	}
	return nil
}

// MarkRetry returns a task to PENDING, due at availableAt.
func (r *OutboxRepository) MarkRetry(ctx context.Context, id, lastError string, availableAt time.Time) error {
	const query = `UPDATE outbox_tasks SET status = $2, last_error = $3, available_at = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.OutboxPending, lastError, availableAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark outbox task retry: %w", err)
	}
	return nil
}

// MarkFailed parks a task that exhausted its attempts.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id, lastError string) error {
	const query = `UPDATE outbox_tasks SET status = $2, last_error = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.OutboxFailed, lastError, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark outbox task failed: %w", err)
	}
	return nil
}

// RecoverStale releases tasks stuck in PROCESSING since before cutoff, typically after a crash.
func (r *OutboxRepository) RecoverStale(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `UPDATE outbox_tasks SET status = $1, updated_at = $3 WHERE status = $2 AND updated_at < $4`
	res, err := r.db.ExecContext(ctx, query, models.OutboxPending, models.OutboxProcessing, time.Now().UTC(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("recover stale outbox tasks: %w", err)
	}
	return res.RowsAffected()
}

// CountByStatus reports queue depth per status.
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[models.OutboxStatus]int, error) {
	var rows []struct {
		Status models.OutboxStatus `db:"status"`
		Total  int                 `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS total FROM outbox_tasks GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count outbox tasks: %w", err)
	}
	counts := make(map[models.OutboxStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
