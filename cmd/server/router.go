package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/satpugnet/shopify-visiontags-ai/internal/api"
	apiMiddleware "github.com/satpugnet/shopify-visiontags-ai/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware. Returns the configured router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	// Create API handlers using the application's services
	scanHandler := api.NewScanHandler(app.scanService, app.itemStore, app.logger)
	syncHandler := api.NewSyncHandler(app.syncService, app.logger)
	tenantHandler := api.NewTenantHandler(app.tenantService, app.creditService, app.logger)
	webhookHandler := api.NewWebhookHandler(app.eventEmitter, app.logger)

	tenantMiddleware := apiMiddleware.TenantMiddleware(app.tenantStore)

	// Register routes
	r.Route("/api", func(r chi.Router) {
		// Installation endpoint (the tenant does not exist yet)
		r.Post("/install", tenantHandler.Install)

		// Tenant-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(tenantMiddleware)

			// Scan and job endpoints
			r.Post("/scans", scanHandler.StartScan)
			r.Get("/jobs", scanHandler.ListJobs)
			r.Get("/jobs/{id}", scanHandler.GetJob)
			r.Get("/jobs/{id}/items", scanHandler.GetJobItems)

			// Sync endpoint
			r.Post("/sync", syncHandler.Sync)

			// Credits and settings
			r.Get("/credits", tenantHandler.GetCredits)
			r.Put("/settings", tenantHandler.UpdateSettings)
		})
	})

	// Platform webhooks (authenticated by the platform's HMAC proxy, not
	// the tenant middleware)
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/products/create", webhookHandler.ProductCreated)
		r.Post("/app_subscriptions/update", webhookHandler.SubscriptionUpdated)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
