package api

import (
	"log/slog"
	"net/http"

	"github.com/satpugnet/shopify-visiontags-ai/internal/api/middleware"
	"github.com/satpugnet/shopify-visiontags-ai/internal/api/shared"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/events"
	"github.com/satpugnet/shopify-visiontags-ai/internal/service"
)

// WebhookHandler receives platform webhooks and turns them into events.
// Scheduling and ledger work happens in the registered event handlers, not
// here; the webhook endpoint's job is to acknowledge quickly.
type WebhookHandler struct {
	emitter events.EventEmitter
	logger  *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler with the given dependencies.
func NewWebhookHandler(emitter events.EventEmitter, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &WebhookHandler{
		emitter: emitter,
		logger:  logger.With(slog.String("component", "webhook_api_handler")),
	}
}

// ProductCreated handles POST /webhooks/products/create
func (h *WebhookHandler) ProductCreated(w http.ResponseWriter, r *http.Request) {
	shopDomain := r.Header.Get(middleware.ShopDomainHeader)
	if shopDomain == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing shop domain")
		return
	}

	var payload ProductWebhookPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	event, err := events.NewPlatformEvent(events.EventTypeProductCreated, shopDomain, service.ProductCreatedPayload{
		ProductID:  payload.ID,
		Title:      payload.Title,
		ImageRef:   payload.ImageRef,
		Attributes: payload.Attributes,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.emitter.EmitEvent(r.Context(), event); err != nil {
		// The webhook is acknowledged anyway: the platform retries
		// delivery on 5xx, and a handler failure here is not something a
		// redelivery of the same payload would fix.
		h.logger.Error("product created event handling failed",
			slog.String("shop_domain", shopDomain),
			slog.String("error", err.Error()))
	}

	w.WriteHeader(http.StatusOK)
}

// SubscriptionUpdated handles POST /webhooks/app_subscriptions/update
func (h *WebhookHandler) SubscriptionUpdated(w http.ResponseWriter, r *http.Request) {
	shopDomain := r.Header.Get(middleware.ShopDomainHeader)
	if shopDomain == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing shop domain")
		return
	}

	var payload SubscriptionWebhookPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	if err := shared.ValidateRequest(payload); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid webhook payload: "+err.Error())
		return
	}

	event, err := events.NewPlatformEvent(events.EventTypeSubscriptionUpdated, shopDomain, service.SubscriptionUpdatedPayload{
		PlanTier: domain.PlanTier(payload.PlanTier),
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.emitter.EmitEvent(r.Context(), event); err != nil {
		// A failed plan change must be retried by the platform; unlike a
		// product event, acknowledging it would leave billing state wrong.
		HandleAPIError(w, r, err, "Failed to apply subscription change")
		return
	}

	w.WriteHeader(http.StatusOK)
}
