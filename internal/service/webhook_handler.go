package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/events"
	"github.com/satpugnet/shopify-visiontags-ai/internal/ledger"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
)

// ProductCreatedPayload is the event payload for a newly created product.
type ProductCreatedPayload struct {
	ProductID  string            `json:"product_id"`
	Title      string            `json:"title"`
	ImageRef   string            `json:"image_ref"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SubscriptionUpdatedPayload is the event payload for a plan change.
type SubscriptionUpdatedPayload struct {
	PlanTier domain.PlanTier `json:"plan_tier"`
}

// WebhookHandler reacts to platform events: it schedules a single-item scan
// when a product is created in a shop with auto-tagging on, and resets the
// shop's ledger when its subscription changes.
//
// It implements events.EventHandler and is registered on the emitter by the
// composition root.
type WebhookHandler struct {
	tenantStore store.TenantStore
	scans       ScanService
	credits     ledger.Service
	logger      *slog.Logger
}

// Ensure WebhookHandler implements events.EventHandler interface
var _ events.EventHandler = (*WebhookHandler)(nil)

// NewWebhookHandler creates a new WebhookHandler.
// It returns an error if any of the required dependencies are nil.
func NewWebhookHandler(
	tenantStore store.TenantStore,
	scans ScanService,
	credits ledger.Service,
	logger *slog.Logger,
) (*WebhookHandler, error) {
	if tenantStore == nil {
		return nil, errors.New("tenantStore cannot be nil")
	}
	if scans == nil {
		return nil, errors.New("scans cannot be nil")
	}
	if credits == nil {
		return nil, errors.New("credits cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &WebhookHandler{
		tenantStore: tenantStore,
		scans:       scans,
		credits:     credits,
		logger:      logger.With(slog.String("component", "webhook_handler")),
	}, nil
}

// HandleEvent implements events.EventHandler.HandleEvent
func (h *WebhookHandler) HandleEvent(ctx context.Context, event *events.PlatformEvent) error {
	switch event.Type {
	case events.EventTypeProductCreated:
		return h.handleProductCreated(ctx, event)
	case events.EventTypeSubscriptionUpdated:
		return h.handleSubscriptionUpdated(ctx, event)
	default:
		h.logger.Debug("ignoring event of unknown type",
			slog.String("event_type", event.Type))
		return nil
	}
}

// handleProductCreated schedules a single-item analysis job for shops with
// auto-tagging enabled. The job goes through the same credit admission as a
// manual scan; a denial is logged and swallowed, since failing the webhook
// would only make the platform redeliver a request that will be denied
// again.
func (h *WebhookHandler) handleProductCreated(ctx context.Context, event *events.PlatformEvent) error {
	var payload ProductCreatedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("failed to decode product created payload: %w", err)
	}

	tenant, err := h.tenantStore.GetByShopDomain(ctx, event.ShopDomain)
	if err != nil {
		if errors.Is(err, store.ErrTenantNotFound) {
			h.logger.Warn("product created event for unknown shop",
				slog.String("shop_domain", event.ShopDomain))
			return nil
		}
		return fmt.Errorf("failed to load tenant: %w", err)
	}

	if !tenant.AutoTagNewProducts {
		h.logger.Debug("auto-tagging disabled, ignoring new product",
			slog.String("shop_domain", event.ShopDomain),
			slog.String("product_id", payload.ProductID))
		return nil
	}

	if payload.ImageRef == "" {
		h.logger.Debug("new product has no image, nothing to analyze",
			slog.String("product_id", payload.ProductID))
		return nil
	}

	job, err := h.scans.StartScan(ctx, tenant.ID, []ProductInput{{
		ID:                payload.ProductID,
		Title:             payload.Title,
		ImageRef:          payload.ImageRef,
		CurrentAttributes: payload.Attributes,
	}})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			h.logger.Info("auto-tag scan denied by credit admission",
				slog.String("tenant_id", tenant.ID.String()),
				slog.String("product_id", payload.ProductID))
			return nil
		}
		return fmt.Errorf("failed to start auto-tag scan: %w", err)
	}

	h.logger.Info("auto-tag scan scheduled for new product",
		slog.String("tenant_id", tenant.ID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("product_id", payload.ProductID))
	return nil
}

// handleSubscriptionUpdated resets the tenant's ledger to the new plan's
// terms.
func (h *WebhookHandler) handleSubscriptionUpdated(ctx context.Context, event *events.PlatformEvent) error {
	var payload SubscriptionUpdatedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("failed to decode subscription updated payload: %w", err)
	}

	tenant, err := h.tenantStore.GetByShopDomain(ctx, event.ShopDomain)
	if err != nil {
		if errors.Is(err, store.ErrTenantNotFound) {
			h.logger.Warn("subscription event for unknown shop",
				slog.String("shop_domain", event.ShopDomain))
			return nil
		}
		return fmt.Errorf("failed to load tenant: %w", err)
	}

	if err := h.credits.ChangePlan(ctx, tenant.ID, payload.PlanTier); err != nil {
		return fmt.Errorf("failed to apply plan change: %w", err)
	}

	h.logger.Info("subscription change applied",
		slog.String("tenant_id", tenant.ID.String()),
		slog.String("plan_tier", string(payload.PlanTier)))
	return nil
}
