package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/events"
	"github.com/satpugnet/shopify-visiontags-ai/internal/ledger"
	"github.com/satpugnet/shopify-visiontags-ai/internal/service"
)

// fakeScanService records StartScan calls for the webhook handler tests.
type fakeScanService struct {
	mu       sync.Mutex
	scans    [][]service.ProductInput
	scanErr  error
	tenantID uuid.UUID
}

func (f *fakeScanService) StartScan(ctx context.Context, tenantID uuid.UUID, products []service.ProductInput) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	f.tenantID = tenantID
	f.scans = append(f.scans, products)
	return domain.NewJob(tenantID, len(products))
}

func (f *fakeScanService) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*domain.Job, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeScanService) ListJobs(ctx context.Context, tenantID uuid.UUID, limit int) ([]*domain.Job, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeScanService) scanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scans)
}

type webhookFixture struct {
	handler *service.WebhookHandler
	tenants *fakeTenantStore
	scans   *fakeScanService
	credits *fakeCreditService
	tenant  *domain.Tenant
}

func newWebhookFixture(t *testing.T, autoTag bool) *webhookFixture {
	t.Helper()

	tenants := newFakeTenantStore()
	scans := &fakeScanService{}
	credits := newFakeCreditService()

	tenant, err := domain.NewTenant("example.myshopify.com")
	require.NoError(t, err)
	tenant.AutoTagNewProducts = autoTag
	require.NoError(t, tenants.Create(context.Background(), tenant))

	handler, err := service.NewWebhookHandler(tenants, scans, credits, newTestLogger())
	require.NoError(t, err)

	return &webhookFixture{
		handler: handler,
		tenants: tenants,
		scans:   scans,
		credits: credits,
		tenant:  tenant,
	}
}

func productCreatedEvent(t *testing.T, shopDomain string, payload service.ProductCreatedPayload) *events.PlatformEvent {
	t.Helper()
	event, err := events.NewPlatformEvent(events.EventTypeProductCreated, shopDomain, payload)
	require.NoError(t, err)
	return event
}

func TestWebhookProductCreatedSchedulesScan(t *testing.T) {
	fixture := newWebhookFixture(t, true)

	event := productCreatedEvent(t, "example.myshopify.com", service.ProductCreatedPayload{
		ProductID:  "gid://shopify/Product/555",
		Title:      "Wool Scarf",
		ImageRef:   "https://cdn.example.com/scarf.jpg",
		Attributes: map[string]string{"color": "gray"},
	})

	err := fixture.handler.HandleEvent(context.Background(), event)
	require.NoError(t, err)

	require.Equal(t, 1, fixture.scans.scanCount())
	assert.Equal(t, fixture.tenant.ID, fixture.scans.tenantID)

	products := fixture.scans.scans[0]
	require.Len(t, products, 1)
	assert.Equal(t, "gid://shopify/Product/555", products[0].ID)
	assert.Equal(t, "https://cdn.example.com/scarf.jpg", products[0].ImageRef)
	assert.Equal(t, "gray", products[0].CurrentAttributes["color"])
}

func TestWebhookProductCreatedAutoTagDisabled(t *testing.T) {
	fixture := newWebhookFixture(t, false)

	event := productCreatedEvent(t, "example.myshopify.com", service.ProductCreatedPayload{
		ProductID: "gid://shopify/Product/555",
		ImageRef:  "https://cdn.example.com/scarf.jpg",
	})

	err := fixture.handler.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 0, fixture.scans.scanCount())
}

func TestWebhookProductCreatedUnknownShop(t *testing.T) {
	fixture := newWebhookFixture(t, true)

	event := productCreatedEvent(t, "stranger.myshopify.com", service.ProductCreatedPayload{
		ProductID: "gid://shopify/Product/555",
		ImageRef:  "https://cdn.example.com/scarf.jpg",
	})

	// Unknown shops are logged and acknowledged, not failed: the platform
	// would otherwise redeliver forever.
	err := fixture.handler.HandleEvent(context.Background(), event)
	assert.NoError(t, err)
	assert.Equal(t, 0, fixture.scans.scanCount())
}

func TestWebhookProductCreatedWithoutImage(t *testing.T) {
	fixture := newWebhookFixture(t, true)

	event := productCreatedEvent(t, "example.myshopify.com", service.ProductCreatedPayload{
		ProductID: "gid://shopify/Product/555",
	})

	err := fixture.handler.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 0, fixture.scans.scanCount())
}

func TestWebhookProductCreatedSwallowsCreditDenial(t *testing.T) {
	fixture := newWebhookFixture(t, true)
	fixture.scans.scanErr = ledger.ErrInsufficientCredits

	event := productCreatedEvent(t, "example.myshopify.com", service.ProductCreatedPayload{
		ProductID: "gid://shopify/Product/555",
		ImageRef:  "https://cdn.example.com/scarf.jpg",
	})

	// A denied auto-tag scan is not a webhook failure.
	err := fixture.handler.HandleEvent(context.Background(), event)
	assert.NoError(t, err)
}

func TestWebhookProductCreatedPropagatesOtherScanErrors(t *testing.T) {
	fixture := newWebhookFixture(t, true)
	fixture.scans.scanErr = errors.New("database down")

	event := productCreatedEvent(t, "example.myshopify.com", service.ProductCreatedPayload{
		ProductID: "gid://shopify/Product/555",
		ImageRef:  "https://cdn.example.com/scarf.jpg",
	})

	err := fixture.handler.HandleEvent(context.Background(), event)
	assert.Error(t, err)
}

func TestWebhookSubscriptionUpdated(t *testing.T) {
	fixture := newWebhookFixture(t, true)

	event, err := events.NewPlatformEvent(
		events.EventTypeSubscriptionUpdated,
		"example.myshopify.com",
		service.SubscriptionUpdatedPayload{PlanTier: domain.PlanPro},
	)
	require.NoError(t, err)

	err = fixture.handler.HandleEvent(context.Background(), event)
	require.NoError(t, err)

	require.Len(t, fixture.credits.planChanges, 1)
	assert.Equal(t, domain.PlanPro, fixture.credits.planChanges[0])
}

func TestWebhookSubscriptionUpdatedUnknownShop(t *testing.T) {
	fixture := newWebhookFixture(t, true)

	event, err := events.NewPlatformEvent(
		events.EventTypeSubscriptionUpdated,
		"stranger.myshopify.com",
		service.SubscriptionUpdatedPayload{PlanTier: domain.PlanGrowth},
	)
	require.NoError(t, err)

	err = fixture.handler.HandleEvent(context.Background(), event)
	assert.NoError(t, err)
	assert.Empty(t, fixture.credits.planChanges)
}

func TestWebhookIgnoresUnknownEventType(t *testing.T) {
	fixture := newWebhookFixture(t, true)

	event, err := events.NewPlatformEvent("order_created", "example.myshopify.com", map[string]string{})
	require.NoError(t, err)

	err = fixture.handler.HandleEvent(context.Background(), event)
	assert.NoError(t, err)
	assert.Equal(t, 0, fixture.scans.scanCount())
}
