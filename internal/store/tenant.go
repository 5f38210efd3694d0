package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
)

// TenantStore defines the interface for tenant data persistence.
type TenantStore interface {
	// Create saves a new tenant to the store.
	// Returns ErrDuplicate if a tenant with the same shop domain exists.
	Create(ctx context.Context, tenant *domain.Tenant) error

	// GetByID retrieves a tenant by its unique ID.
	// Returns ErrTenantNotFound if the tenant does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)

	// GetByShopDomain retrieves a tenant by its shop domain.
	// Returns ErrTenantNotFound if the tenant does not exist.
	GetByShopDomain(ctx context.Context, shopDomain string) (*domain.Tenant, error)

	// SetAutoTagNewProducts toggles the tenant's auto-tagging setting.
	// Returns ErrTenantNotFound if the tenant does not exist.
	SetAutoTagNewProducts(ctx context.Context, id uuid.UUID, enabled bool) error

	// WithTx returns a new store instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TenantStore
}
