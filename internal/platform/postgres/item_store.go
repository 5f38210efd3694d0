package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/platform/logger"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
)

// PostgresItemStore implements the store.ItemStore interface
// using a PostgreSQL database as the storage backend.
//
// Settlement methods guard the UPDATE with the item's required current
// status. A transition that already happened matches zero rows, and the
// second writer gets store.ErrConflict. That single property is what makes
// duplicate task deliveries and concurrent settlement idempotent.
type PostgresItemStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresItemStore creates a new PostgreSQL implementation of the
// ItemStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresItemStore(db store.DBTX, logger *slog.Logger) *PostgresItemStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresItemStore{
		db:     db,
		logger: logger.With(slog.String("component", "item_store")),
	}
}

// Ensure PostgresItemStore implements store.ItemStore interface
var _ store.ItemStore = (*PostgresItemStore)(nil)

// WithTx implements store.ItemStore.WithTx
func (s *PostgresItemStore) WithTx(tx *sql.Tx) store.ItemStore {
	return &PostgresItemStore{
		db:     tx,
		logger: s.logger,
	}
}

// CreateBatch implements store.ItemStore.CreateBatch
func (s *PostgresItemStore) CreateBatch(ctx context.Context, items []*domain.Item) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO items
			(id, job_id, tenant_id, title, source_image_ref, current_attributes,
			 status, suggested_fields, suggested_labels, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	for _, item := range items {
		if err := item.Validate(); err != nil {
			log.Warn("item validation failed during batch create",
				slog.String("error", err.Error()),
				slog.String("item_id", item.ID))
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}

		currentAttrs, err := marshalStringMap(item.CurrentAttributes)
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
		suggestedFields, err := marshalStringMap(item.SuggestedFields)
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
		suggestedLabels, err := marshalStringSlice(item.SuggestedLabels)
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}

		_, err = s.db.ExecContext(
			ctx,
			query,
			item.ID,
			item.JobID,
			item.TenantID,
			item.Title,
			item.SourceImageRef,
			currentAttrs,
			item.Status,
			suggestedFields,
			suggestedLabels,
			item.LastError,
			item.CreatedAt,
			item.UpdatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("%w: item %s", store.ErrDuplicate, item.ID)
			}
			log.Error("failed to create item",
				slog.String("error", err.Error()),
				slog.String("item_id", item.ID))
			return MapError(err)
		}
	}

	log.Info("item batch created",
		slog.Int("count", len(items)))
	return nil
}

// GetByID implements store.ItemStore.GetByID
// Returns store.ErrItemNotFound if the item does not exist.
func (s *PostgresItemStore) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, job_id, tenant_id, title, source_image_ref, current_attributes,
		       status, suggested_fields, suggested_labels, synced_at, last_error,
		       created_at, updated_at
		FROM items
		WHERE id = $1
	`

	item, err := scanItem(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrItemNotFound
		}
		log.Error("failed to get item by ID",
			slog.String("error", err.Error()),
			slog.String("item_id", id))
		return nil, MapError(err)
	}

	return item, nil
}

// ListByJob implements store.ItemStore.ListByJob
func (s *PostgresItemStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Item, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, job_id, tenant_id, title, source_image_ref, current_attributes,
		       status, suggested_fields, suggested_labels, synced_at, last_error,
		       created_at, updated_at
		FROM items
		WHERE job_id = $1
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		log.Error("failed to list items by job",
			slog.String("error", err.Error()),
			slog.String("job_id", jobID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	items := []*domain.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			log.Error("failed to scan item row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return items, nil
}

// MarkAnalyzed implements store.ItemStore.MarkAnalyzed
// Returns store.ErrConflict if the item is not pending.
func (s *PostgresItemStore) MarkAnalyzed(ctx context.Context, id string, fields map[string]string, labels []string) error {
	suggestedFields, err := marshalStringMap(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	suggestedLabels, err := marshalStringSlice(labels)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE items
		SET status = $1, suggested_fields = $2, suggested_labels = $3,
		    last_error = '', updated_at = $4
		WHERE id = $5 AND status = $6
	`
	return s.guardedUpdate(ctx, "mark analyzed", id, query,
		domain.ItemStatusAnalyzed, suggestedFields, suggestedLabels, time.Now().UTC(), id, domain.ItemStatusPending)
}

// MarkError implements store.ItemStore.MarkError
// Returns store.ErrConflict if the item is not pending.
func (s *PostgresItemStore) MarkError(ctx context.Context, id string, reason string) error {
	query := `
		UPDATE items
		SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return s.guardedUpdate(ctx, "mark error", id, query,
		domain.ItemStatusError, reason, time.Now().UTC(), id, domain.ItemStatusPending)
}

// MarkSynced implements store.ItemStore.MarkSynced
// Returns store.ErrConflict if the item is not analyzed.
func (s *PostgresItemStore) MarkSynced(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := `
		UPDATE items
		SET status = $1, synced_at = $2, last_error = '', updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return s.guardedUpdate(ctx, "mark synced", id, query,
		domain.ItemStatusSynced, now, now, id, domain.ItemStatusAnalyzed)
}

// RecordSyncFailure implements store.ItemStore.RecordSyncFailure
// Returns store.ErrConflict if the item is not analyzed.
func (s *PostgresItemStore) RecordSyncFailure(ctx context.Context, id string, reason string) error {
	query := `
		UPDATE items
		SET last_error = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	return s.guardedUpdate(ctx, "record sync failure", id, query,
		reason, time.Now().UTC(), id, domain.ItemStatusAnalyzed)
}

// guardedUpdate runs a status-guarded UPDATE. Zero affected rows means the
// item either does not exist (ErrItemNotFound) or is not in the state the
// guard requires (ErrConflict).
func (s *PostgresItemStore) guardedUpdate(ctx context.Context, op, id, query string, args ...any) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("item update failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
			slog.String("item_id", id))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)`, id).Scan(&exists)
		if err != nil {
			return MapError(err)
		}
		if !exists {
			return store.ErrItemNotFound
		}

		log.Debug("item transition rejected by status guard",
			slog.String("operation", op),
			slog.String("item_id", id))
		return store.ErrConflict
	}

	log.Debug("item updated",
		slog.String("operation", op),
		slog.String("item_id", id))
	return nil
}

// scanItem reads one item row, decoding the JSONB columns.
func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	var status string
	var currentAttrs, suggestedFields, suggestedLabels []byte
	var syncedAt sql.NullTime

	err := row.Scan(
		&item.ID,
		&item.JobID,
		&item.TenantID,
		&item.Title,
		&item.SourceImageRef,
		&currentAttrs,
		&status,
		&suggestedFields,
		&suggestedLabels,
		&syncedAt,
		&item.LastError,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Status = domain.ItemStatus(status)
	if syncedAt.Valid {
		t := syncedAt.Time
		item.SyncedAt = &t
	}

	if len(currentAttrs) > 0 {
		if err := json.Unmarshal(currentAttrs, &item.CurrentAttributes); err != nil {
			return nil, fmt.Errorf("failed to decode current attributes: %w", err)
		}
	}
	if len(suggestedFields) > 0 {
		if err := json.Unmarshal(suggestedFields, &item.SuggestedFields); err != nil {
			return nil, fmt.Errorf("failed to decode suggested fields: %w", err)
		}
	}
	if len(suggestedLabels) > 0 {
		if err := json.Unmarshal(suggestedLabels, &item.SuggestedLabels); err != nil {
			return nil, fmt.Errorf("failed to decode suggested labels: %w", err)
		}
	}

	return &item, nil
}

// marshalStringMap encodes a map for a JSONB column, storing NULL for nil.
func marshalStringMap(m map[string]string) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// marshalStringSlice encodes a slice for a JSONB column, storing NULL for nil.
func marshalStringSlice(s []string) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}
