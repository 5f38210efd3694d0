package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
)

// ItemStore defines the interface for item persistence.
//
// The settlement methods are guarded by the item's current status so that a
// transition can only ever happen once: a second writer observes zero
// affected rows and receives ErrConflict. This is what makes duplicate task
// deliveries and concurrent sibling settlement safe.
type ItemStore interface {
	// CreateBatch saves a batch of pending items. Callers that need the
	// batch to be atomic with job creation run this under WithTx.
	CreateBatch(ctx context.Context, items []*domain.Item) error

	// GetByID retrieves an item by its ID.
	// Returns ErrItemNotFound if the item does not exist.
	GetByID(ctx context.Context, id string) (*domain.Item, error)

	// ListByJob returns all items belonging to the given job.
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Item, error)

	// MarkAnalyzed settles a pending item with the analyzer's suggestions.
	// Returns ErrConflict if the item is not pending.
	MarkAnalyzed(ctx context.Context, id string, fields map[string]string, labels []string) error

	// MarkError settles a pending item with a terminal failure reason.
	// Returns ErrConflict if the item is not pending.
	MarkError(ctx context.Context, id string, reason string) error

	// MarkSynced transitions an analyzed item to synced, stamping synced_at.
	// Returns ErrConflict if the item is not analyzed.
	MarkSynced(ctx context.Context, id string) error

	// RecordSyncFailure leaves an analyzed item analyzed but records why the
	// last sync attempt failed. Returns ErrConflict if the item is not
	// analyzed.
	RecordSyncFailure(ctx context.Context, id string, reason string) error

	// WithTx returns a new store instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ItemStore
}
