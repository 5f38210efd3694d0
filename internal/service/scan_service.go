package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/ledger"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
	"github.com/satpugnet/shopify-visiontags-ai/internal/task"
)

// ScanServiceError is a custom error type for scan service errors.
type ScanServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ScanServiceError.
func (e *ScanServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scan service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("scan service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ScanServiceError) Unwrap() error {
	return e.Err
}

// ProductInput is one product submitted for analysis.
type ProductInput struct {
	// ID is the product's identifier in the external catalog.
	ID string

	// Title is the product's display title, carried for operator-facing
	// listings.
	Title string

	// ImageRef is the URI of the product image to analyze.
	ImageRef string

	// CurrentAttributes are the product's existing attribute values, shown
	// next to the suggestions for review.
	CurrentAttributes map[string]string
}

// TaskEnqueuer is the slice of the queue the scan service needs.
type TaskEnqueuer interface {
	// Enqueue persists and schedules a task. Returns task.ErrDuplicateTask
	// when the same logical work was already admitted.
	Enqueue(ctx context.Context, t task.Task) error
}

// AnalysisTaskCreator builds the analysis task for one item.
type AnalysisTaskCreator interface {
	// CreateForItem creates the analysis task for one item of a job.
	CreateForItem(item *domain.Item) (task.Task, error)
}

// ScanService starts analysis jobs: credit admission, atomic job/item
// creation, and per-item task submission.
type ScanService interface {
	// StartScan admits the batch against the tenant's credit ledger, creates
	// the job with its items atomically, and enqueues one analysis task per
	// item.
	//
	// Admission is all-or-nothing; a denied batch returns
	// ledger.ErrInsufficientCredits and creates nothing. After the job is
	// created, enqueue failures do not abort the scan: a duplicate task
	// means the work is already admitted, and a full queue is recovered
	// from the persisted task rows.
	StartScan(ctx context.Context, tenantID uuid.UUID, products []ProductInput) (*domain.Job, error)

	// GetJob returns a job with its current progress. A job owned by a
	// different tenant is reported as store.ErrJobNotFound, so foreign job
	// IDs are indistinguishable from absent ones.
	GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*domain.Job, error)

	// ListJobs returns the tenant's jobs, newest first.
	ListJobs(ctx context.Context, tenantID uuid.UUID, limit int) ([]*domain.Job, error)
}

// scanServiceImpl implements the ScanService interface.
type scanServiceImpl struct {
	db        *sql.DB
	jobStore  store.JobStore
	itemStore store.ItemStore
	credits   ledger.Service
	queue     TaskEnqueuer
	tasks     AnalysisTaskCreator
	logger    *slog.Logger
}

// NewScanService creates a new ScanService.
// It returns an error if any of the required dependencies are nil.
func NewScanService(
	db *sql.DB,
	jobStore store.JobStore,
	itemStore store.ItemStore,
	credits ledger.Service,
	queue TaskEnqueuer,
	tasks AnalysisTaskCreator,
	logger *slog.Logger,
) (ScanService, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if jobStore == nil {
		return nil, errors.New("jobStore cannot be nil")
	}
	if itemStore == nil {
		return nil, errors.New("itemStore cannot be nil")
	}
	if credits == nil {
		return nil, errors.New("credits cannot be nil")
	}
	if queue == nil {
		return nil, errors.New("queue cannot be nil")
	}
	if tasks == nil {
		return nil, errors.New("tasks cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &scanServiceImpl{
		db:        db,
		jobStore:  jobStore,
		itemStore: itemStore,
		credits:   credits,
		queue:     queue,
		tasks:     tasks,
		logger:    logger.With(slog.String("component", "scan_service")),
	}, nil
}

// StartScan implements ScanService.StartScan
func (s *scanServiceImpl) StartScan(ctx context.Context, tenantID uuid.UUID, products []ProductInput) (*domain.Job, error) {
	if len(products) == 0 {
		return nil, ErrEmptyScan
	}

	// One credit per item, admitted as a whole before anything is created.
	avail, err := s.credits.Authorize(ctx, tenantID, len(products))
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			s.logger.Info("scan denied by credit admission",
				slog.String("tenant_id", tenantID.String()),
				slog.Int("requested_units", len(products)))
			return nil, err
		}
		return nil, &ScanServiceError{
			Operation: "start_scan",
			Message:   "credit admission failed",
			Err:       err,
		}
	}

	job, err := domain.NewJob(tenantID, len(products))
	if err != nil {
		return nil, &ScanServiceError{
			Operation: "start_scan",
			Message:   "invalid job",
			Err:       err,
		}
	}

	items := make([]*domain.Item, 0, len(products))
	for _, p := range products {
		item, err := domain.NewItem(p.ID, job.ID, tenantID, p.Title, p.ImageRef, p.CurrentAttributes)
		if err != nil {
			return nil, &ScanServiceError{
				Operation: "start_scan",
				Message:   fmt.Sprintf("invalid product %q", p.ID),
				Err:       err,
			}
		}
		items = append(items, item)
	}

	// The job and its items land together or not at all; a job without its
	// items would report progress against phantom work.
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.jobStore.WithTx(tx).Create(ctx, job); err != nil {
			return err
		}
		return s.itemStore.WithTx(tx).CreateBatch(ctx, items)
	})
	if err != nil {
		return nil, &ScanServiceError{
			Operation: "start_scan",
			Message:   "failed to create job",
			Err:       err,
		}
	}

	s.logger.Info("scan job created",
		slog.String("job_id", job.ID.String()),
		slog.String("tenant_id", tenantID.String()),
		slog.Int("total_items", job.TotalItems),
		slog.Bool("use_overage", avail.UseOverage),
		slog.Int("overage_units", avail.OverageUnits))

	s.enqueueItems(ctx, job, items)
	return job, nil
}

// enqueueItems submits one analysis task per item. The job row already
// exists, so failures here never abort the scan: duplicates are already
// admitted work, and anything else is left for startup recovery to replay
// from the persisted task rows.
func (s *scanServiceImpl) enqueueItems(ctx context.Context, job *domain.Job, items []*domain.Item) {
	for _, item := range items {
		t, err := s.tasks.CreateForItem(item)
		if err != nil {
			s.logger.Error("failed to create analysis task",
				slog.String("job_id", job.ID.String()),
				slog.String("item_id", item.ID),
				slog.String("error", err.Error()))
			continue
		}

		if err := s.queue.Enqueue(ctx, t); err != nil {
			if errors.Is(err, task.ErrDuplicateTask) {
				s.logger.Debug("analysis task already admitted",
					slog.String("job_id", job.ID.String()),
					slog.String("item_id", item.ID))
				continue
			}
			s.logger.Error("failed to enqueue analysis task",
				slog.String("job_id", job.ID.String()),
				slog.String("item_id", item.ID),
				slog.String("error", err.Error()))
		}
	}
}

// GetJob implements ScanService.GetJob
func (s *scanServiceImpl) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.jobStore.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, &ScanServiceError{
			Operation: "get_job",
			Message:   "failed to load job",
			Err:       err,
		}
	}

	if job.TenantID != tenantID {
		return nil, store.ErrJobNotFound
	}

	return job, nil
}

// ListJobs implements ScanService.ListJobs
func (s *scanServiceImpl) ListJobs(ctx context.Context, tenantID uuid.UUID, limit int) ([]*domain.Job, error) {
	jobs, err := s.jobStore.ListByTenant(ctx, tenantID, limit)
	if err != nil {
		return nil, &ScanServiceError{
			Operation: "list_jobs",
			Message:   "failed to list jobs",
			Err:       err,
		}
	}
	return jobs, nil
}
