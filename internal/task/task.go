package task

import (
	"context"
	"time"
)

// TaskStatus represents the current state of a task record.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task type constants
const (
	// TaskTypeAnalyzeItem is the task type for analyzing one item's image.
	TaskTypeAnalyzeItem = "analyze_item"
)

// Task represents a unit of background work to be processed.
//
// IDs are deterministic strings (see AnalysisTaskID) so that submitting the
// same logical work twice collapses into one queued task.
type Task interface {
	// ID returns the task's unique identifier.
	ID() string

	// Type returns the task type identifier.
	Type() string

	// Payload returns the task data as a byte slice.
	Payload() []byte

	// Execute runs the task logic. A transient error (per the analysis
	// error taxonomy) tells the pool to retry; any other error is terminal.
	// Execute must not settle its item on failure; that is Fail's job.
	Execute(ctx context.Context) error

	// Fail settles the task's item with a terminal failure. Called by the
	// worker pool exactly when no (further) retry will happen, whether the
	// failure was terminal outright or retries were exhausted.
	Fail(ctx context.Context, cause error) error
}

// TaskRecord is a task row as persisted, used for recovery and observability.
type TaskRecord struct {
	ID        string
	Type      string
	Payload   []byte
	Status    TaskStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskStore defines the interface for persisting tasks.
type TaskStore interface {
	// SaveTask persists a new pending task. Returns store.ErrDuplicateTask
	// when a record with the same ID was already admitted, making
	// submission idempotent.
	SaveTask(ctx context.Context, t Task) error

	// UpdateTaskStatus updates a task's status, last error, and attempt
	// count.
	UpdateTaskStatus(ctx context.Context, id string, status TaskStatus, errorMsg string, attempts int) error

	// GetPendingTasks retrieves all tasks with "pending" status.
	GetPendingTasks(ctx context.Context) ([]*TaskRecord, error)

	// GetProcessingTasks retrieves tasks with "processing" status. If
	// olderThan is non-zero, only tasks that have sat in that state longer
	// are returned.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*TaskRecord, error)

	// PruneSettled deletes completed/failed task records beyond the most
	// recent keep rows. Retention is for observability, not correctness.
	PruneSettled(ctx context.Context, keep int) error
}

// Factory hydrates a concrete Task from a persisted record, giving recovered
// tasks their execution logic back.
type Factory interface {
	// Type returns the task type this factory builds.
	Type() string

	// Hydrate reconstructs a Task from its persisted payload.
	Hydrate(payload []byte) (Task, error)
}
