package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/satpugnet/shopify-visiontags-ai/internal/api/shared"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/ledger"
	"github.com/satpugnet/shopify-visiontags-ai/internal/service"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withTenant injects a resolved tenant ID the way the tenant middleware
// does, so handlers can be tested without the full middleware chain.
func withTenant(tenantID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), shared.TenantIDContextKey, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// fakeScanService implements service.ScanService with canned results.
type fakeScanService struct {
	job     *domain.Job
	jobs    []*domain.Job
	scanErr error
	getErr  error
}

func (f *fakeScanService) StartScan(ctx context.Context, tenantID uuid.UUID, products []service.ProductInput) (*domain.Job, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	if f.job != nil {
		return f.job, nil
	}
	return domain.NewJob(tenantID, len(products))
}

func (f *fakeScanService) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*domain.Job, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.job != nil && f.job.ID == jobID && f.job.TenantID == tenantID {
		return f.job, nil
	}
	return nil, store.ErrJobNotFound
}

func (f *fakeScanService) ListJobs(ctx context.Context, tenantID uuid.UUID, limit int) ([]*domain.Job, error) {
	return f.jobs, nil
}

// fakeSyncService implements service.SyncService with canned results.
type fakeSyncService struct {
	result *service.SyncResult
	err    error
}

func (f *fakeSyncService) Sync(ctx context.Context, tenantID uuid.UUID, itemIDs []string, fieldGroups []string) (*service.SyncResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeTenantService implements service.TenantService with canned results.
type fakeTenantService struct {
	tenant     *domain.Tenant
	installErr error
	settingErr error
}

func (f *fakeTenantService) Install(ctx context.Context, shopDomain string) (*domain.Tenant, error) {
	if f.installErr != nil {
		return nil, f.installErr
	}
	return f.tenant, nil
}

func (f *fakeTenantService) GetByShopDomain(ctx context.Context, shopDomain string) (*domain.Tenant, error) {
	if f.tenant == nil {
		return nil, store.ErrTenantNotFound
	}
	return f.tenant, nil
}

func (f *fakeTenantService) SetAutoTagging(ctx context.Context, tenantID uuid.UUID, enabled bool) error {
	return f.settingErr
}

// fakeCreditService implements ledger.Service with a canned ledger.
type fakeCreditService struct {
	ledger        *domain.CreditLedger
	recordedUnits int
	err           error
}

func (f *fakeCreditService) CheckAvailability(ctx context.Context, tenantID uuid.UUID, requestedUnits int) (*ledger.Availability, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCreditService) Authorize(ctx context.Context, tenantID uuid.UUID, units int) (*ledger.Availability, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCreditService) ChangePlan(ctx context.Context, tenantID uuid.UUID, tier domain.PlanTier) error {
	return f.err
}

func (f *fakeCreditService) GetLedger(ctx context.Context, tenantID uuid.UUID) (*domain.CreditLedger, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ledger, nil
}

func (f *fakeCreditService) RecordedUsage(ctx context.Context, tenantID uuid.UUID) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.recordedUnits, nil
}

// fakeItemLister is the minimal store.ItemStore the scan handler needs.
type fakeItemLister struct {
	items []*domain.Item
}

func (f *fakeItemLister) CreateBatch(ctx context.Context, items []*domain.Item) error {
	return errors.New("not implemented")
}

func (f *fakeItemLister) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	return nil, store.ErrItemNotFound
}

func (f *fakeItemLister) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Item, error) {
	return f.items, nil
}

func (f *fakeItemLister) MarkAnalyzed(ctx context.Context, id string, fields map[string]string, labels []string) error {
	return errors.New("not implemented")
}

func (f *fakeItemLister) MarkError(ctx context.Context, id string, reason string) error {
	return errors.New("not implemented")
}

func (f *fakeItemLister) MarkSynced(ctx context.Context, id string) error {
	return errors.New("not implemented")
}

func (f *fakeItemLister) RecordSyncFailure(ctx context.Context, id string, reason string) error {
	return errors.New("not implemented")
}

func (f *fakeItemLister) WithTx(tx *sql.Tx) store.ItemStore { return f }

// newTenantRouter mounts the given route behind the tenant injection
// middleware, mirroring the production router shape.
func newTenantRouter(tenantID uuid.UUID, register func(r chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(withTenant(tenantID))
		register(r)
	})
	return r
}
