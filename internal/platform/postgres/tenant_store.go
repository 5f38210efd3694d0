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

// PostgresTenantStore implements the store.TenantStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTenantStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTenantStore creates a new PostgreSQL implementation of the
// TenantStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTenantStore(db store.DBTX, logger *slog.Logger) *PostgresTenantStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTenantStore{
		db:     db,
		logger: logger.With(slog.String("component", "tenant_store")),
	}
}

// Ensure PostgresTenantStore implements store.TenantStore interface
var _ store.TenantStore = (*PostgresTenantStore)(nil)

// WithTx implements store.TenantStore.WithTx
func (s *PostgresTenantStore) WithTx(tx *sql.Tx) store.TenantStore {
	return &PostgresTenantStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.TenantStore.Create
// Returns store.ErrDuplicate if a tenant with the same shop domain exists.
func (s *PostgresTenantStore) Create(ctx context.Context, tenant *domain.Tenant) error {
	log := logger.FromContext(ctx)

	if err := tenant.Validate(); err != nil {
		log.Warn("tenant validation failed during create",
			slog.String("error", err.Error()),
			slog.String("tenant_id", tenant.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tenants (id, shop_domain, auto_tag_new_products, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		tenant.ID,
		tenant.ShopDomain,
		tenant.AutoTagNewProducts,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("duplicate shop domain during tenant creation",
				slog.String("shop_domain", tenant.ShopDomain))
			return fmt.Errorf("%w: shop domain %s", store.ErrDuplicate, tenant.ShopDomain)
		}

		log.Error("failed to create tenant",
			slog.String("error", err.Error()),
			slog.String("tenant_id", tenant.ID.String()))
		return MapError(err)
	}

	log.Info("tenant created successfully",
		slog.String("tenant_id", tenant.ID.String()),
		slog.String("shop_domain", tenant.ShopDomain))
	return nil
}

// GetByID implements store.TenantStore.GetByID
// Returns store.ErrTenantNotFound if the tenant does not exist.
func (s *PostgresTenantStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	query := `
		SELECT id, shop_domain, auto_tag_new_products, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	return s.scanTenant(ctx, query, id)
}

// GetByShopDomain implements store.TenantStore.GetByShopDomain
// Returns store.ErrTenantNotFound if the tenant does not exist.
func (s *PostgresTenantStore) GetByShopDomain(ctx context.Context, shopDomain string) (*domain.Tenant, error) {
	query := `
		SELECT id, shop_domain, auto_tag_new_products, created_at, updated_at
		FROM tenants
		WHERE shop_domain = $1
	`
	return s.scanTenant(ctx, query, shopDomain)
}

// scanTenant runs a single-row tenant query and maps the result.
func (s *PostgresTenantStore) scanTenant(ctx context.Context, query string, arg any) (*domain.Tenant, error) {
	log := logger.FromContext(ctx)

	var tenant domain.Tenant
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&tenant.ID,
		&tenant.ShopDomain,
		&tenant.AutoTagNewProducts,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTenantNotFound
		}
		log.Error("failed to get tenant",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return &tenant, nil
}

// SetAutoTagNewProducts implements store.TenantStore.SetAutoTagNewProducts
// Returns store.ErrTenantNotFound if the tenant does not exist.
func (s *PostgresTenantStore) SetAutoTagNewProducts(ctx context.Context, id uuid.UUID, enabled bool) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tenants
		SET auto_tag_new_products = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, enabled, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update auto-tag setting",
			slog.String("error", err.Error()),
			slog.String("tenant_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrTenantNotFound); err != nil {
		return err
	}

	log.Info("auto-tag setting updated",
		slog.String("tenant_id", id.String()),
		slog.Bool("enabled", enabled))
	return nil
}
