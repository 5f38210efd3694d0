package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/satpugnet/shopify-visiontags-ai/internal/analysis"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
)

// Common errors
var (
	ErrNilAnalyzer  = errors.New("analyzer cannot be nil")
	ErrNilItemStore = errors.New("item store cannot be nil")
	ErrNilJobStore  = errors.New("job store cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
)

// ItemSettler is the slice of the item store the analyze task needs:
// settling one item exactly once.
type ItemSettler interface {
	// MarkAnalyzed settles a pending item with suggestions.
	MarkAnalyzed(ctx context.Context, id string, fields map[string]string, labels []string) error

	// MarkError settles a pending item with a terminal failure reason.
	MarkError(ctx context.Context, id string, reason string) error
}

// JobProgress rolls a job's progress up from its item rows.
type JobProgress interface {
	// RefreshProgress recomputes processed and derives the job status.
	RefreshProgress(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
}

// analyzePayload is the serialized task data: everything a worker needs to
// analyze one item without reloading the job.
type analyzePayload struct {
	JobID     uuid.UUID `json:"job_id"`
	ItemID    string    `json:"item_id"`
	SourceRef string    `json:"source_ref"`
	TenantID  uuid.UUID `json:"tenant_id"`
}

// AnalyzeTask implements the Task interface for analyzing one item's image
// and settling the outcome.
type AnalyzeTask struct {
	id       string
	payload  analyzePayload
	analyzer analysis.Analyzer
	items    ItemSettler
	jobs     JobProgress
	logger   *slog.Logger
}

// newAnalyzeTask wires an AnalyzeTask from an already-validated payload.
func newAnalyzeTask(
	payload analyzePayload,
	analyzer analysis.Analyzer,
	items ItemSettler,
	jobs JobProgress,
	logger *slog.Logger,
) *AnalyzeTask {
	return &AnalyzeTask{
		id:       AnalysisTaskID(payload.JobID, payload.ItemID),
		payload:  payload,
		analyzer: analyzer,
		items:    items,
		jobs:     jobs,
		logger: logger.With(
			"task_type", TaskTypeAnalyzeItem,
			"job_id", payload.JobID,
			"item_id", payload.ItemID,
		),
	}
}

// ID returns the task's deterministic identifier.
func (t *AnalyzeTask) ID() string {
	return t.id
}

// Type returns the task type identifier.
func (t *AnalyzeTask) Type() string {
	return TaskTypeAnalyzeItem
}

// Payload returns the task data as a byte slice.
func (t *AnalyzeTask) Payload() []byte {
	data, err := json.Marshal(t.payload)
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}
	return data
}

// Execute calls the analyzer and, on success, settles the item as analyzed
// and rolls the job's progress up. Failures are returned unchanged for the
// worker pool to classify; Execute never settles a failure itself.
func (t *AnalyzeTask) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", analysis.ErrTransient, err)
	}

	suggestion, err := t.analyzer.Analyze(ctx, t.payload.SourceRef)
	if err != nil {
		return fmt.Errorf("failed to analyze item: %w", err)
	}

	err = t.items.MarkAnalyzed(ctx, t.payload.ItemID, suggestion.Fields, suggestion.Labels)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			// A duplicate delivery found the item already settled. The
			// first settlement stands.
			t.logger.Warn("item already settled, ignoring duplicate analysis result")
			return nil
		}
		return fmt.Errorf("failed to persist analysis result: %w", err)
	}

	t.logger.Info("item analyzed",
		"field_count", len(suggestion.Fields),
		"label_count", len(suggestion.Labels))

	t.rollUp(ctx)
	return nil
}

// Fail settles the item as terminally errored. Safe to call on a duplicate
// delivery: a conflict means the item already settled and is left alone.
func (t *AnalyzeTask) Fail(ctx context.Context, cause error) error {
	err := t.items.MarkError(ctx, t.payload.ItemID, cause.Error())
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			t.logger.Warn("item already settled, ignoring terminal failure")
			return nil
		}
		return fmt.Errorf("failed to persist item error: %w", err)
	}

	t.logger.Info("item settled with terminal error", "cause", cause)

	t.rollUp(ctx)
	return nil
}

// rollUp refreshes the parent job's progress after a settlement. Rollup
// errors are logged, not propagated: the item's settlement is the durable
// fact, and the recompute is repeated on the next sibling settlement.
func (t *AnalyzeTask) rollUp(ctx context.Context) {
	job, err := t.jobs.RefreshProgress(ctx, t.payload.JobID)
	if err != nil {
		t.logger.Error("failed to refresh job progress", "error", err)
		return
	}

	if job.Status == domain.JobStatusCompleted {
		t.logger.Info("job completed",
			"total_items", job.TotalItems,
			"processed", job.Processed)
	}
}

// AnalyzeTaskFactory creates and hydrates AnalyzeTask instances.
type AnalyzeTaskFactory struct {
	analyzer analysis.Analyzer
	items    ItemSettler
	jobs     JobProgress
	logger   *slog.Logger
}

// NewAnalyzeTaskFactory creates a factory for analyze tasks.
// It returns an error if any of the required dependencies are nil.
func NewAnalyzeTaskFactory(
	analyzer analysis.Analyzer,
	items ItemSettler,
	jobs JobProgress,
	logger *slog.Logger,
) (*AnalyzeTaskFactory, error) {
	if analyzer == nil {
		return nil, ErrNilAnalyzer
	}
	if items == nil {
		return nil, ErrNilItemStore
	}
	if jobs == nil {
		return nil, ErrNilJobStore
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &AnalyzeTaskFactory{
		analyzer: analyzer,
		items:    items,
		jobs:     jobs,
		logger:   logger.With("component", "analyze_task_factory"),
	}, nil
}

// Type returns the task type this factory builds.
func (f *AnalyzeTaskFactory) Type() string {
	return TaskTypeAnalyzeItem
}

// CreateForItem creates the analysis task for one item of a job.
func (f *AnalyzeTaskFactory) CreateForItem(item *domain.Item) (Task, error) {
	if item == nil {
		return nil, errors.New("item cannot be nil")
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	payload := analyzePayload{
		JobID:     item.JobID,
		ItemID:    item.ID,
		SourceRef: item.SourceImageRef,
		TenantID:  item.TenantID,
	}
	return newAnalyzeTask(payload, f.analyzer, f.items, f.jobs, f.logger), nil
}

// Hydrate reconstructs an analyze task from its persisted payload.
func (f *AnalyzeTaskFactory) Hydrate(data []byte) (Task, error) {
	var payload analyzePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analyze task payload: %w", err)
	}
	if payload.ItemID == "" || payload.JobID == uuid.Nil {
		return nil, errors.New("analyze task payload is incomplete")
	}
	return newAnalyzeTask(payload, f.analyzer, f.items, f.jobs, f.logger), nil
}
