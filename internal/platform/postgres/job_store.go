package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/platform/logger"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
)

// PostgresJobStore implements the store.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the
// JobStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// WithTx implements store.JobStore.WithTx
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.JobStore.Create
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContext(ctx)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO jobs (id, tenant_id, status, total_items, processed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.TenantID,
		job.Status,
		job.TotalItems,
		job.Processed,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return MapError(err)
	}

	log.Info("job created successfully",
		slog.String("job_id", job.ID.String()),
		slog.String("tenant_id", job.TenantID.String()),
		slog.Int("total_items", job.TotalItems))
	return nil
}

// GetByID implements store.JobStore.GetByID
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, tenant_id, status, total_items, processed, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to get job by ID",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, MapError(err)
	}

	return job, nil
}

// RefreshProgress implements store.JobStore.RefreshProgress
//
// Progress is recomputed from the item rows rather than incremented, so the
// result is the same no matter which order sibling settlements land in. The
// status is derived by domain.RollupStatus: completed exactly when every
// item has settled, even when every item errored. The write is guarded so
// progress only ever moves forward; when a sibling settlement already
// advanced past this recompute, its result is kept.
func (s *PostgresJobStore) RefreshProgress(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	log := logger.FromContext(ctx)

	countQuery := `
		SELECT j.total_items, j.status,
		       (SELECT COUNT(*) FROM items i WHERE i.job_id = j.id AND i.status <> 'pending') AS settled
		FROM jobs j
		WHERE j.id = $1
	`

	var totalItems, settled int
	var current domain.JobStatus
	if err := s.db.QueryRowContext(ctx, countQuery, id).Scan(&totalItems, &current, &settled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to count settled items",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, MapError(err)
	}

	next := domain.RollupStatus(settled, totalItems, current)

	updateQuery := `
		UPDATE jobs
		SET processed = $2, status = $3, updated_at = $4
		WHERE id = $1 AND processed <= $2
		RETURNING id, tenant_id, status, total_items, processed, created_at, updated_at
	`

	job, err := scanJob(s.db.QueryRowContext(ctx, updateQuery, id, settled, next, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// A concurrent rollup wrote a higher count between the read and
			// the guarded write; return the converged row.
			return s.GetByID(ctx, id)
		}
		log.Error("failed to refresh job progress",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, MapError(err)
	}

	log.Debug("job progress refreshed",
		slog.String("job_id", id.String()),
		slog.String("status", string(job.Status)),
		slog.Int("processed", job.Processed),
		slog.Int("total_items", job.TotalItems))
	return job, nil
}

// ListByTenant implements store.JobStore.ListByTenant
func (s *PostgresJobStore) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]*domain.Job, error) {
	log := logger.FromContext(ctx)

	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, tenant_id, status, total_items, processed, created_at, updated_at
		FROM jobs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		log.Error("failed to list jobs by tenant",
			slog.String("error", err.Error()),
			slog.String("tenant_id", tenantID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	jobs := []*domain.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			log.Error("failed to scan job row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return jobs, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads one job row.
func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var status string

	err := row.Scan(
		&job.ID,
		&job.TenantID,
		&status,
		&job.TotalItems,
		&job.Processed,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = domain.JobStatus(status)
	return &job, nil
}
