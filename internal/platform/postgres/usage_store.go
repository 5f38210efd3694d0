package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/platform/logger"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
)

// PostgresUsageStore implements the store.UsageStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUsageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUsageStore creates a new PostgreSQL implementation of the
// UsageStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresUsageStore(db store.DBTX, logger *slog.Logger) *PostgresUsageStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUsageStore{
		db:     db,
		logger: logger.With(slog.String("component", "usage_store")),
	}
}

// Ensure PostgresUsageStore implements store.UsageStore interface
var _ store.UsageStore = (*PostgresUsageStore)(nil)

// WithTx implements store.UsageStore.WithTx
func (s *PostgresUsageStore) WithTx(tx *sql.Tx) store.UsageStore {
	return &PostgresUsageStore{
		db:     tx,
		logger: s.logger,
	}
}

// Append implements store.UsageStore.Append
func (s *PostgresUsageStore) Append(ctx context.Context, record *domain.UsageRecord) error {
	log := logger.FromContext(ctx)

	if err := record.Validate(); err != nil {
		log.Warn("usage record validation failed",
			slog.String("error", err.Error()),
			slog.String("tenant_id", record.TenantID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO usage_records (id, tenant_id, period_start, units, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.TenantID,
		record.PeriodStart,
		record.Units,
		record.RecordedAt,
	)
	if err != nil {
		log.Error("failed to append usage record",
			slog.String("error", err.Error()),
			slog.String("tenant_id", record.TenantID.String()))
		return MapError(err)
	}

	log.Debug("usage record appended",
		slog.String("tenant_id", record.TenantID.String()),
		slog.Int("units", record.Units))
	return nil
}

// TotalForPeriod implements store.UsageStore.TotalForPeriod
func (s *PostgresUsageStore) TotalForPeriod(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) (int, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT COALESCE(SUM(units), 0)
		FROM usage_records
		WHERE tenant_id = $1 AND period_start = $2
	`

	var total int
	err := s.db.QueryRowContext(ctx, query, tenantID, periodStart).Scan(&total)
	if err != nil {
		log.Error("failed to total usage for period",
			slog.String("error", err.Error()),
			slog.String("tenant_id", tenantID.String()))
		return 0, MapError(err)
	}

	return total, nil
}
