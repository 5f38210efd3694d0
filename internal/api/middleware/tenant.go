package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/satpugnet/shopify-visiontags-ai/internal/api/shared"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
)

// ShopDomainHeader is the request header carrying the calling shop's domain.
// The embedded app proxy sets it after verifying the session.
const ShopDomainHeader = "X-Shop-Domain"

// TenantResolver resolves a shop domain to its tenant.
type TenantResolver interface {
	GetByShopDomain(ctx context.Context, shopDomain string) (*domain.Tenant, error)
}

// TenantMiddleware resolves the calling shop into a tenant and stores the
// tenant ID in the request context. Requests without a resolvable shop are
// rejected before reaching any handler.
func TenantMiddleware(resolver TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			shopDomain := r.Header.Get(ShopDomainHeader)
			if shopDomain == "" {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Missing shop domain")
				return
			}

			tenant, err := resolver.GetByShopDomain(r.Context(), shopDomain)
			if err != nil {
				if errors.Is(err, store.ErrTenantNotFound) {
					shared.RespondWithError(w, r, http.StatusUnauthorized, "Unknown shop")
					return
				}
				slog.Error("failed to resolve tenant",
					slog.String("shop_domain", shopDomain),
					slog.String("error", err.Error()))
				shared.RespondWithError(w, r, http.StatusInternalServerError, "An unexpected error occurred")
				return
			}

			ctx := context.WithValue(r.Context(), shared.TenantIDContextKey, tenant.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
