package service_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/ledger"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
	"github.com/satpugnet/shopify-visiontags-ai/internal/task"
)

// stubDriver backs a *sql.DB whose transactions begin, commit, and roll back
// without a database. The fakes below ignore the *sql.Tx they are handed.
type stubDriver struct{}

func (stubDriver) Open(name string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(query string) (driver.Stmt, error) { return nil, io.EOF }
func (stubConn) Close() error                              { return nil }
func (stubConn) Begin() (driver.Tx, error)                 { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

func init() {
	sql.Register("servicetest", stubDriver{})
}

func newStubDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("servicetest", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeItemStore is an in-memory store.ItemStore with the same status-guarded
// settlement semantics as the real one.
type fakeItemStore struct {
	mu        sync.Mutex
	items     map[string]*domain.Item
	createErr error
	syncErr   map[string]error
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{
		items:   map[string]*domain.Item{},
		syncErr: map[string]error{},
	}
}

func (f *fakeItemStore) CreateBatch(ctx context.Context, items []*domain.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, item := range items {
		if _, ok := f.items[item.ID]; ok {
			return store.ErrDuplicate
		}
	}
	for _, item := range items {
		copied := *item
		f.items[item.ID] = &copied
	}
	return nil
}

func (f *fakeItemStore) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, store.ErrItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (f *fakeItemStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Item
	for _, item := range f.items {
		if item.JobID == jobID {
			copied := *item
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeItemStore) MarkAnalyzed(ctx context.Context, id string, fields map[string]string, labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return store.ErrItemNotFound
	}
	if item.Status != domain.ItemStatusPending {
		return store.ErrConflict
	}
	item.Status = domain.ItemStatusAnalyzed
	item.SuggestedFields = fields
	item.SuggestedLabels = labels
	return nil
}

func (f *fakeItemStore) MarkError(ctx context.Context, id string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return store.ErrItemNotFound
	}
	if item.Status != domain.ItemStatusPending {
		return store.ErrConflict
	}
	item.Status = domain.ItemStatusError
	item.LastError = reason
	return nil
}

func (f *fakeItemStore) MarkSynced(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.syncErr[id]; ok {
		return err
	}
	item, ok := f.items[id]
	if !ok {
		return store.ErrItemNotFound
	}
	if item.Status != domain.ItemStatusAnalyzed {
		return store.ErrConflict
	}
	now := time.Now().UTC()
	item.Status = domain.ItemStatusSynced
	item.SyncedAt = &now
	item.LastError = ""
	return nil
}

func (f *fakeItemStore) RecordSyncFailure(ctx context.Context, id string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return store.ErrItemNotFound
	}
	if item.Status != domain.ItemStatusAnalyzed {
		return store.ErrConflict
	}
	item.LastError = reason
	return nil
}

func (f *fakeItemStore) WithTx(tx *sql.Tx) store.ItemStore { return f }

func (f *fakeItemStore) get(id string) *domain.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil
	}
	copied := *item
	return &copied
}

func (f *fakeItemStore) put(item *domain.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *item
	f.items[item.ID] = &copied
}

func (f *fakeItemStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// fakeJobStore is an in-memory store.JobStore.
type fakeJobStore struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]*domain.Job
	createErr error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[uuid.UUID]*domain.Job{}}
}

func (f *fakeJobStore) Create(ctx context.Context, job *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobStore) RefreshProgress(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeJobStore) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Job
	for _, job := range f.jobs {
		if job.TenantID == tenantID {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeJobStore) WithTx(tx *sql.Tx) store.JobStore { return f }

func (f *fakeJobStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

// fakeCreditService implements ledger.Service with canned admission results.
type fakeCreditService struct {
	mu            sync.Mutex
	authorizeErr  error
	availability  *ledger.Availability
	authorized    []int
	planChanges   []domain.PlanTier
	changePlanErr error
}

func newFakeCreditService() *fakeCreditService {
	return &fakeCreditService{
		availability: &ledger.Availability{Allowed: true, Remaining: 100},
	}
}

func (f *fakeCreditService) CheckAvailability(ctx context.Context, tenantID uuid.UUID, requestedUnits int) (*ledger.Availability, error) {
	return f.availability, nil
}

func (f *fakeCreditService) Authorize(ctx context.Context, tenantID uuid.UUID, units int) (*ledger.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.authorizeErr != nil {
		return nil, f.authorizeErr
	}
	f.authorized = append(f.authorized, units)
	return f.availability, nil
}

func (f *fakeCreditService) ChangePlan(ctx context.Context, tenantID uuid.UUID, tier domain.PlanTier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.changePlanErr != nil {
		return f.changePlanErr
	}
	f.planChanges = append(f.planChanges, tier)
	return nil
}

func (f *fakeCreditService) GetLedger(ctx context.Context, tenantID uuid.UUID) (*domain.CreditLedger, error) {
	return nil, ledger.ErrLedgerNotFound
}

func (f *fakeCreditService) RecordedUsage(ctx context.Context, tenantID uuid.UUID) (int, error) {
	return 0, ledger.ErrLedgerNotFound
}

// fakeEnqueuer records enqueued tasks and can inject per-call errors.
type fakeEnqueuer struct {
	mu         sync.Mutex
	enqueued   []task.Task
	enqueueErr error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, t task.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.enqueued = append(f.enqueued, t)
	return nil
}

func (f *fakeEnqueuer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enqueued)
}

// stubAnalysisTask is a minimal task.Task carrying only its deterministic ID.
type stubAnalysisTask struct {
	id string
}

func (s *stubAnalysisTask) ID() string                                  { return s.id }
func (s *stubAnalysisTask) Type() string                                { return task.TaskTypeAnalyzeItem }
func (s *stubAnalysisTask) Payload() []byte                             { return nil }
func (s *stubAnalysisTask) Execute(ctx context.Context) error           { return nil }
func (s *stubAnalysisTask) Fail(ctx context.Context, cause error) error { return nil }

// fakeTaskCreator builds stub tasks with real deterministic IDs.
type fakeTaskCreator struct {
	createErr error
}

func (f *fakeTaskCreator) CreateForItem(item *domain.Item) (task.Task, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &stubAnalysisTask{id: task.AnalysisTaskID(item.JobID, item.ID)}, nil
}

// fakeCatalog implements catalog.Store with per-item, per-group error
// injection and call recording.
type fakeCatalog struct {
	mu          sync.Mutex
	fieldsErr   map[string]error
	labelsErr   map[string]error
	fieldWrites []string
	labelWrites []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		fieldsErr: map[string]error{},
		labelsErr: map[string]error{},
	}
}

func (f *fakeCatalog) WriteFields(ctx context.Context, itemID string, fields map[string]string, categoryHint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fieldsErr[itemID]; ok {
		return err
	}
	f.fieldWrites = append(f.fieldWrites, itemID)
	return nil
}

func (f *fakeCatalog) WriteLabels(ctx context.Context, itemID string, labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.labelsErr[itemID]; ok {
		return err
	}
	f.labelWrites = append(f.labelWrites, itemID)
	return nil
}

// fakeTenantStore is an in-memory store.TenantStore.
type fakeTenantStore struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*domain.Tenant
	byDomain  map[string]*domain.Tenant
	createErr error
}

func newFakeTenantStore() *fakeTenantStore {
	return &fakeTenantStore{
		byID:     map[uuid.UUID]*domain.Tenant{},
		byDomain: map[string]*domain.Tenant{},
	}
}

func (f *fakeTenantStore) Create(ctx context.Context, tenant *domain.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byDomain[tenant.ShopDomain]; ok {
		return store.ErrDuplicate
	}
	copied := *tenant
	f.byID[tenant.ID] = &copied
	f.byDomain[tenant.ShopDomain] = &copied
	return nil
}

func (f *fakeTenantStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tenant, ok := f.byID[id]
	if !ok {
		return nil, store.ErrTenantNotFound
	}
	copied := *tenant
	return &copied, nil
}

func (f *fakeTenantStore) GetByShopDomain(ctx context.Context, shopDomain string) (*domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tenant, ok := f.byDomain[shopDomain]
	if !ok {
		return nil, store.ErrTenantNotFound
	}
	copied := *tenant
	return &copied, nil
}

func (f *fakeTenantStore) SetAutoTagNewProducts(ctx context.Context, id uuid.UUID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tenant, ok := f.byID[id]
	if !ok {
		return store.ErrTenantNotFound
	}
	tenant.AutoTagNewProducts = enabled
	return nil
}

func (f *fakeTenantStore) WithTx(tx *sql.Tx) store.TenantStore { return f }

// fakeLedgerStore is the minimal store.LedgerStore the tenant service needs.
type fakeLedgerStore struct {
	mu      sync.Mutex
	ledgers map[uuid.UUID]*domain.CreditLedger
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{ledgers: map[uuid.UUID]*domain.CreditLedger{}}
}

func (f *fakeLedgerStore) Create(ctx context.Context, l *domain.CreditLedger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ledgers[l.TenantID]; ok {
		return store.ErrDuplicate
	}
	copied := *l
	f.ledgers[l.TenantID] = &copied
	return nil
}

func (f *fakeLedgerStore) GetByTenant(ctx context.Context, tenantID uuid.UUID) (*domain.CreditLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.ledgers[tenantID]
	if !ok {
		return nil, store.ErrLedgerNotFound
	}
	copied := *l
	return &copied, nil
}

func (f *fakeLedgerStore) ApplyConsumption(ctx context.Context, tenantID uuid.UUID, units, expectedUsed int) error {
	return nil
}

func (f *fakeLedgerStore) Reset(ctx context.Context, l *domain.CreditLedger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *l
	f.ledgers[l.TenantID] = &copied
	return nil
}

func (f *fakeLedgerStore) WithTx(tx *sql.Tx) store.LedgerStore { return f }
