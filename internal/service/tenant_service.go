package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
)

// ErrAutoTagNotIncluded indicates the tenant's plan does not include
// auto-tagging, so the setting cannot be turned on.
// API layer should map this to HTTP 403 Forbidden.
var ErrAutoTagNotIncluded = errors.New("plan does not include auto-tagging")

// TenantService provides tenant provisioning and settings operations.
type TenantService interface {
	// Install provisions a tenant for a newly installed shop: the tenant
	// row and its credit ledger on the free plan, created atomically.
	// Returns store.ErrDuplicate if the shop is already installed.
	Install(ctx context.Context, shopDomain string) (*domain.Tenant, error)

	// GetByShopDomain returns the tenant for the given shop.
	GetByShopDomain(ctx context.Context, shopDomain string) (*domain.Tenant, error)

	// SetAutoTagging toggles automatic analysis of newly created products.
	// Enabling requires a plan that includes the feature; returns
	// ErrAutoTagNotIncluded otherwise. Disabling is always allowed.
	SetAutoTagging(ctx context.Context, tenantID uuid.UUID, enabled bool) error
}

// tenantServiceImpl implements the TenantService interface.
type tenantServiceImpl struct {
	db          *sql.DB
	tenantStore store.TenantStore
	ledgerStore store.LedgerStore
	logger      *slog.Logger
}

// NewTenantService creates a new TenantService.
// It returns an error if any of the required dependencies are nil.
func NewTenantService(
	db *sql.DB,
	tenantStore store.TenantStore,
	ledgerStore store.LedgerStore,
	logger *slog.Logger,
) (TenantService, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if tenantStore == nil {
		return nil, errors.New("tenantStore cannot be nil")
	}
	if ledgerStore == nil {
		return nil, errors.New("ledgerStore cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &tenantServiceImpl{
		db:          db,
		tenantStore: tenantStore,
		ledgerStore: ledgerStore,
		logger:      logger.With(slog.String("component", "tenant_service")),
	}, nil
}

// Install implements TenantService.Install
func (s *tenantServiceImpl) Install(ctx context.Context, shopDomain string) (*domain.Tenant, error) {
	tenant, err := domain.NewTenant(shopDomain)
	if err != nil {
		return nil, err
	}

	plan, err := domain.PlanByTier(domain.PlanFree)
	if err != nil {
		return nil, err
	}

	ledger, err := domain.NewCreditLedger(tenant.ID, plan)
	if err != nil {
		return nil, err
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.tenantStore.WithTx(tx).Create(ctx, tenant); err != nil {
			return err
		}
		return s.ledgerStore.WithTx(tx).Create(ctx, ledger)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to provision tenant: %w", err)
	}

	s.logger.Info("tenant installed",
		slog.String("tenant_id", tenant.ID.String()),
		slog.String("shop_domain", shopDomain),
		slog.String("plan_tier", string(plan.Tier)))
	return tenant, nil
}

// GetByShopDomain implements TenantService.GetByShopDomain
func (s *tenantServiceImpl) GetByShopDomain(ctx context.Context, shopDomain string) (*domain.Tenant, error) {
	return s.tenantStore.GetByShopDomain(ctx, shopDomain)
}

// SetAutoTagging implements TenantService.SetAutoTagging
func (s *tenantServiceImpl) SetAutoTagging(ctx context.Context, tenantID uuid.UUID, enabled bool) error {
	if enabled {
		ledger, err := s.ledgerStore.GetByTenant(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to load ledger: %w", err)
		}

		plan, err := domain.PlanByTier(ledger.PlanTier)
		if err != nil {
			return err
		}

		if !plan.AutoTagging {
			return ErrAutoTagNotIncluded
		}
	}

	if err := s.tenantStore.SetAutoTagNewProducts(ctx, tenantID, enabled); err != nil {
		return err
	}

	s.logger.Info("auto-tagging setting changed",
		slog.String("tenant_id", tenantID.String()),
		slog.Bool("enabled", enabled))
	return nil
}
