package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
)

// JobStore defines the interface for job persistence.
type JobStore interface {
	// Create saves a new job to the store.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// RefreshProgress recomputes the job's processed count from its item
	// rows (items no longer pending) and derives the job status from it in
	// a single conditional statement. The recompute is order-independent,
	// so concurrent settlement of sibling items never loses an update.
	// Returns the refreshed job, or ErrJobNotFound.
	RefreshProgress(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// ListByTenant returns the tenant's jobs, newest first, up to limit.
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]*domain.Job, error)

	// WithTx returns a new store instance that uses the provided transaction.
	WithTx(tx *sql.Tx) JobStore
}
