package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/satpugnet/shopify-visiontags-ai/internal/platform/logger"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
	"github.com/satpugnet/shopify-visiontags-ai/internal/task"
)

// PostgresTaskStore implements the task.TaskStore interface
// using a PostgreSQL database as the storage backend.
//
// Task IDs are deterministic, so admission dedup is a single
// INSERT ... ON CONFLICT DO NOTHING: the second submission of the same
// logical work inserts nothing and surfaces store.ErrDuplicateTask.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements task.TaskStore interface
var _ task.TaskStore = (*PostgresTaskStore)(nil)

// WithTx returns a new store instance that uses the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) *PostgresTaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// SaveTask implements task.TaskStore.SaveTask
// Returns store.ErrDuplicateTask if a task with the same ID was already
// admitted.
func (s *PostgresTaskStore) SaveTask(ctx context.Context, t task.Task) error {
	log := logger.FromContext(ctx)

	now := time.Now().UTC()
	query := `
		INSERT INTO tasks (id, type, payload, status, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, '', $5, $5)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		t.ID(),
		t.Type(),
		t.Payload(),
		task.TaskStatusPending,
		now,
	)
	if err != nil {
		log.Error("failed to save task",
			slog.String("error", err.Error()),
			slog.String("task_id", t.ID()),
			slog.String("task_type", t.Type()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		log.Debug("task already admitted",
			slog.String("task_id", t.ID()))
		return store.ErrDuplicateTask
	}

	log.Debug("task saved",
		slog.String("task_id", t.ID()),
		slog.String("task_type", t.Type()))
	return nil
}

// UpdateTaskStatus implements task.TaskStore.UpdateTaskStatus
func (s *PostgresTaskStore) UpdateTaskStatus(ctx context.Context, id string, status task.TaskStatus, errorMsg string, attempts int) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET status = $1, last_error = $2, attempts = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := s.db.ExecContext(ctx, query, status, errorMsg, attempts, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update task status",
			slog.String("error", err.Error()),
			slog.String("task_id", id),
			slog.String("status", string(status)))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrNotFound); err != nil {
		return err
	}

	log.Debug("task status updated",
		slog.String("task_id", id),
		slog.String("status", string(status)),
		slog.Int("attempts", attempts))
	return nil
}

// GetPendingTasks implements task.TaskStore.GetPendingTasks
func (s *PostgresTaskStore) GetPendingTasks(ctx context.Context) ([]*task.TaskRecord, error) {
	query := `
		SELECT id, type, payload, status, attempts, last_error, created_at, updated_at
		FROM tasks
		WHERE status = $1
		ORDER BY created_at
	`
	return s.queryTasks(ctx, query, task.TaskStatusPending)
}

// GetProcessingTasks implements task.TaskStore.GetProcessingTasks
func (s *PostgresTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*task.TaskRecord, error) {
	if olderThan <= 0 {
		query := `
			SELECT id, type, payload, status, attempts, last_error, created_at, updated_at
			FROM tasks
			WHERE status = $1
			ORDER BY created_at
		`
		return s.queryTasks(ctx, query, task.TaskStatusProcessing)
	}

	query := `
		SELECT id, type, payload, status, attempts, last_error, created_at, updated_at
		FROM tasks
		WHERE status = $1 AND updated_at < $2
		ORDER BY created_at
	`
	cutoff := time.Now().UTC().Add(-olderThan)
	return s.queryTasks(ctx, query, task.TaskStatusProcessing, cutoff)
}

// PruneSettled implements task.TaskStore.PruneSettled
// It deletes completed and failed task records beyond the most recent keep
// rows.
func (s *PostgresTaskStore) PruneSettled(ctx context.Context, keep int) error {
	log := logger.FromContext(ctx)

	if keep < 0 {
		keep = 0
	}

	query := `
		DELETE FROM tasks
		WHERE status IN ($1, $2)
		  AND id NOT IN (
		      SELECT id FROM tasks
		      WHERE status IN ($1, $2)
		      ORDER BY updated_at DESC
		      LIMIT $3
		  )
	`
	result, err := s.db.ExecContext(ctx, query, task.TaskStatusCompleted, task.TaskStatusFailed, keep)
	if err != nil {
		log.Error("failed to prune settled tasks",
			slog.String("error", err.Error()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		log.Info("pruned settled task records",
			slog.Int64("deleted", rowsAffected),
			slog.Int("kept", keep))
	}
	return nil
}

// queryTasks runs a task query and scans all rows.
func (s *PostgresTaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]*task.TaskRecord, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	records := []*task.TaskRecord{}
	for rows.Next() {
		var record task.TaskRecord
		var status string

		err := rows.Scan(
			&record.ID,
			&record.Type,
			&record.Payload,
			&status,
			&record.Attempts,
			&record.LastError,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			log.Error("failed to scan task row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}

		record.Status = task.TaskStatus(status)
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return records, nil
}
