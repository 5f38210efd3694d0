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

// PostgresLedgerStore implements the store.LedgerStore interface
// using a PostgreSQL database as the storage backend.
type PostgresLedgerStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresLedgerStore creates a new PostgreSQL implementation of the
// LedgerStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresLedgerStore(db store.DBTX, logger *slog.Logger) *PostgresLedgerStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresLedgerStore{
		db:     db,
		logger: logger.With(slog.String("component", "ledger_store")),
	}
}

// Ensure PostgresLedgerStore implements store.LedgerStore interface
var _ store.LedgerStore = (*PostgresLedgerStore)(nil)

// WithTx implements store.LedgerStore.WithTx
func (s *PostgresLedgerStore) WithTx(tx *sql.Tx) store.LedgerStore {
	return &PostgresLedgerStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.LedgerStore.Create
// Returns store.ErrDuplicate if the tenant already has a ledger.
func (s *PostgresLedgerStore) Create(ctx context.Context, ledger *domain.CreditLedger) error {
	log := logger.FromContext(ctx)

	if err := ledger.Validate(); err != nil {
		log.Warn("ledger validation failed during create",
			slog.String("error", err.Error()),
			slog.String("tenant_id", ledger.TenantID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO credit_ledgers
			(tenant_id, plan_tier, credits_used, credit_limit, billing_period_start,
			 overage_enabled, overage_price_per_unit, overage_cap_amount, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		ledger.TenantID,
		ledger.PlanTier,
		ledger.CreditsUsed,
		ledger.CreditLimit,
		ledger.BillingPeriodStart,
		ledger.OverageEnabled,
		ledger.OveragePricePerUnit,
		ledger.OverageCapAmount,
		ledger.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: ledger for tenant %s", store.ErrDuplicate, ledger.TenantID)
		}
		log.Error("failed to create ledger",
			slog.String("error", err.Error()),
			slog.String("tenant_id", ledger.TenantID.String()))
		return MapError(err)
	}

	log.Info("ledger created successfully",
		slog.String("tenant_id", ledger.TenantID.String()),
		slog.String("plan_tier", string(ledger.PlanTier)))
	return nil
}

// GetByTenant implements store.LedgerStore.GetByTenant
// Returns store.ErrLedgerNotFound if the tenant has no ledger.
func (s *PostgresLedgerStore) GetByTenant(ctx context.Context, tenantID uuid.UUID) (*domain.CreditLedger, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT tenant_id, plan_tier, credits_used, credit_limit, billing_period_start,
		       overage_enabled, overage_price_per_unit, overage_cap_amount, updated_at
		FROM credit_ledgers
		WHERE tenant_id = $1
	`

	var ledger domain.CreditLedger
	var planTier string

	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(
		&ledger.TenantID,
		&planTier,
		&ledger.CreditsUsed,
		&ledger.CreditLimit,
		&ledger.BillingPeriodStart,
		&ledger.OverageEnabled,
		&ledger.OveragePricePerUnit,
		&ledger.OverageCapAmount,
		&ledger.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrLedgerNotFound
		}
		log.Error("failed to get ledger",
			slog.String("error", err.Error()),
			slog.String("tenant_id", tenantID.String()))
		return nil, MapError(err)
	}

	ledger.PlanTier = domain.PlanTier(planTier)
	return &ledger, nil
}

// ApplyConsumption implements store.LedgerStore.ApplyConsumption
//
// The update is conditional on credits_used still holding the value the
// caller observed when it made the admission decision. A concurrent writer
// that consumed in between makes the WHERE clause match nothing, and the
// caller gets store.ErrConflict instead of a silent overshoot.
func (s *PostgresLedgerStore) ApplyConsumption(ctx context.Context, tenantID uuid.UUID, units, expectedUsed int) error {
	log := logger.FromContext(ctx)

	if units <= 0 {
		return fmt.Errorf("%w: consumption units must be positive", store.ErrInvalidEntity)
	}

	query := `
		UPDATE credit_ledgers
		SET credits_used = credits_used + $1, updated_at = $2
		WHERE tenant_id = $3 AND credits_used = $4
	`
	result, err := s.db.ExecContext(ctx, query, units, time.Now().UTC(), tenantID, expectedUsed)
	if err != nil {
		log.Error("failed to apply consumption",
			slog.String("error", err.Error()),
			slog.String("tenant_id", tenantID.String()),
			slog.Int("units", units))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		log.Warn("consumption lost compare-and-swap race",
			slog.String("tenant_id", tenantID.String()),
			slog.Int("units", units),
			slog.Int("expected_used", expectedUsed))
		return store.ErrConflict
	}

	log.Info("consumption applied",
		slog.String("tenant_id", tenantID.String()),
		slog.Int("units", units),
		slog.Int("credits_used", expectedUsed+units))
	return nil
}

// Reset implements store.LedgerStore.Reset
// Returns store.ErrLedgerNotFound if the tenant has no ledger.
func (s *PostgresLedgerStore) Reset(ctx context.Context, ledger *domain.CreditLedger) error {
	log := logger.FromContext(ctx)

	if err := ledger.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE credit_ledgers
		SET plan_tier = $1,
		    credits_used = $2,
		    credit_limit = $3,
		    billing_period_start = $4,
		    overage_enabled = $5,
		    overage_price_per_unit = $6,
		    overage_cap_amount = $7,
		    updated_at = $8
		WHERE tenant_id = $9
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		ledger.PlanTier,
		ledger.CreditsUsed,
		ledger.CreditLimit,
		ledger.BillingPeriodStart,
		ledger.OverageEnabled,
		ledger.OveragePricePerUnit,
		ledger.OverageCapAmount,
		ledger.UpdatedAt,
		ledger.TenantID,
	)
	if err != nil {
		log.Error("failed to reset ledger",
			slog.String("error", err.Error()),
			slog.String("tenant_id", ledger.TenantID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrLedgerNotFound); err != nil {
		return err
	}

	log.Info("ledger reset",
		slog.String("tenant_id", ledger.TenantID.String()),
		slog.String("plan_tier", string(ledger.PlanTier)))
	return nil
}
