package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
)

// Common errors returned by the Queue.
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")

	// ErrDuplicateTask is returned when a task with the same ID was already
	// admitted. Callers treat it as a successful no-op.
	ErrDuplicateTask = errors.New("task already admitted")
)

// queued is one dispatchable delivery of a task, carrying its attempt number
// (1-based).
type queued struct {
	task    Task
	attempt int
}

// Queue is the durable, de-duplicated analysis queue. Every admitted task is
// persisted before it is dispatched, so a crashed process can recover its
// backlog; admission is keyed by the task's deterministic ID.
//
// The Queue is constructed explicitly and owned by the composition root;
// there is no process-global instance.
type Queue struct {
	store  TaskStore
	tasks  chan queued
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewQueue creates a task queue with the specified dispatch buffer size.
func NewQueue(taskStore TaskStore, size int, logger *slog.Logger) *Queue {
	return &Queue{
		store:  taskStore,
		tasks:  make(chan queued, size),
		logger: logger.With("component", "analysis_queue"),
	}
}

// Enqueue persists the task and schedules its first delivery.
// Returns ErrDuplicateTask when the task ID was admitted before (the
// original delivery stands), ErrQueueFull when the dispatch buffer cannot
// take the task right now (the persisted row is picked up by recovery), and
// ErrQueueClosed after Close.
func (q *Queue) Enqueue(ctx context.Context, t Task) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrQueueClosed
	}

	if err := q.store.SaveTask(ctx, t); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			q.logger.Debug("duplicate task submission suppressed",
				"task_id", t.ID(),
				"task_type", t.Type())
			return ErrDuplicateTask
		}
		return fmt.Errorf("failed to save task: %w", err)
	}

	if !q.dispatch(queued{task: t, attempt: 1}) {
		return fmt.Errorf("%w: capacity %d reached", ErrQueueFull, cap(q.tasks))
	}

	q.logger.Debug("task enqueued",
		"task_id", t.ID(),
		"task_type", t.Type(),
		"queue_len", len(q.tasks),
		"queue_cap", cap(q.tasks))
	return nil
}

// dispatch pushes an already-persisted delivery onto the channel without
// touching the store. Used for first delivery, retries, and recovery.
// Reports whether the channel accepted it.
func (q *Queue) dispatch(d queued) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}

	select {
	case q.tasks <- d:
		return true
	default:
		return false
	}
}

// Chan returns the read-only dispatch channel consumed by the worker pool.
func (q *Queue) Chan() <-chan queued {
	return q.tasks
}

// Close stops admission and closes the dispatch channel. Workers drain what
// is already buffered.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
	q.logger.Info("task queue closed")
}
