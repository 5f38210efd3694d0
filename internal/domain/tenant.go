package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Tenant
var (
	ErrEmptyTenantID   = errors.New("tenant ID cannot be empty")
	ErrEmptyShopDomain = errors.New("tenant shop domain cannot be empty")
)

// Tenant represents a single app installation (one shop). Every ledger,
// job, and item in the system is scoped to exactly one tenant.
type Tenant struct {
	ID         uuid.UUID `json:"id"`
	ShopDomain string    `json:"shop_domain"`

	// AutoTagNewProducts enables automatic single-item job creation when the
	// platform reports a newly created product. It is forced off when the
	// tenant downgrades to a plan that does not include the feature.
	AutoTagNewProducts bool `json:"auto_tag_new_products"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTenant creates a new Tenant for the given shop domain.
// Returns an error if validation fails.
func NewTenant(shopDomain string) (*Tenant, error) {
	now := time.Now().UTC()
	tenant := &Tenant{
		ID:                 uuid.New(),
		ShopDomain:         shopDomain,
		AutoTagNewProducts: false,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	return tenant, nil
}

// Validate checks if the Tenant has valid data.
func (t *Tenant) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTenantID
	}

	if t.ShopDomain == "" {
		return ErrEmptyShopDomain
	}

	return nil
}
