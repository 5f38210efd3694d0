package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/satpugnet/shopify-visiontags-ai/internal/analysis"
)

// WorkerPoolConfig holds configuration options for the worker pool.
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start.
	// If zero or negative, defaults to 1.
	WorkerCount int

	// MaxAttempts is the delivery ceiling per task, counting the first
	// attempt. Transient failures are retried until this is reached.
	MaxAttempts int

	// RetryBaseDelay is the delay before the first retry; each further
	// retry doubles it.
	RetryBaseDelay time.Duration

	// DispatchesPerWindow caps how many task executions may start per
	// RateWindow, process-wide, independent of worker concurrency. This
	// protects the external analyzer's rate limit.
	DispatchesPerWindow int

	// RateWindow is the length of the dispatch rate window.
	RateWindow time.Duration

	// RetainedTaskRecords bounds how many settled task rows are kept.
	RetainedTaskRecords int

	// PruneInterval is how often settled task records are pruned.
	// If zero, defaults to 10 minutes.
	PruneInterval time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with the reference
// settings: 2 workers, 3 attempts, 5s backoff base, 10 dispatches per
// 60-second window.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:         2,
		MaxAttempts:         3,
		RetryBaseDelay:      5 * time.Second,
		DispatchesPerWindow: 10,
		RateWindow:          60 * time.Second,
		RetainedTaskRecords: 500,
		PruneInterval:       10 * time.Minute,
	}
}

// WorkerPool manages the bounded set of workers consuming the analysis
// queue. It owns retry scheduling, the global dispatch rate limit, crash
// recovery, and graceful shutdown (stop pulling, let in-flight work finish).
type WorkerPool struct {
	queue     *Queue
	store     TaskStore
	config    WorkerPoolConfig
	limiter   *rate.Limiter
	logger    *slog.Logger
	factories map[string]Factory

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	retryWG sync.WaitGroup
}

// NewWorkerPool creates a worker pool reading from the given queue.
func NewWorkerPool(queue *Queue, taskStore TaskStore, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.PruneInterval == 0 {
		config.PruneInterval = 10 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queue:     queue,
		store:     taskStore,
		config:    config,
		limiter:   newDispatchLimiter(config.DispatchesPerWindow, config.RateWindow),
		logger:    logger.With("component", "worker_pool"),
		factories: map[string]Factory{},
		ctx:       ctx,
		cancel:    cancel,
	}
}

// newDispatchLimiter builds the process-wide dispatch limiter: one token
// every window/dispatches with a burst of one, so the dispatch count inside
// any rolling window stays at or under the budget.
func newDispatchLimiter(dispatches int, window time.Duration) *rate.Limiter {
	if dispatches <= 0 || window <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(window/time.Duration(dispatches)), 1)
}

// RegisterFactory makes a task type recoverable: records of that type found
// at startup are hydrated back into executable tasks.
func (p *WorkerPool) RegisterFactory(f Factory) {
	p.factories[f.Type()] = f
}

// Start recovers unfinished tasks from previous runs and launches the
// workers and the prune loop.
func (p *WorkerPool) Start() error {
	if err := p.recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.wg.Add(1)
	go p.pruneLoop()

	p.logger.Info("worker pool started",
		"worker_count", p.config.WorkerCount,
		"max_attempts", p.config.MaxAttempts,
		"dispatches_per_window", p.config.DispatchesPerWindow,
		"rate_window", p.config.RateWindow)
	return nil
}

// Stop shuts the pool down gracefully: workers stop pulling new tasks,
// in-flight executions run to completion, and pending retries are abandoned
// (their task rows stay pending for the next start's recovery).
func (p *WorkerPool) Stop() {
	p.cancel()
	p.retryWG.Wait()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// recover re-dispatches pending task rows and resets rows stuck in
// processing by a crashed process. Deduplicated task IDs make this safe to
// run against a backlog that was partially dispatched.
func (p *WorkerPool) recover() error {
	ctx := context.Background()

	pending, err := p.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	processing, err := p.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	p.logger.Info("recovering unfinished tasks",
		"pending_count", len(pending),
		"processing_count", len(processing))

	for _, rec := range processing {
		if err := p.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusPending, "reset after recovery", rec.Attempts); err != nil {
			p.logger.Error("failed to reset processing task",
				"task_id", rec.ID,
				"error", err)
			continue
		}
		pending = append(pending, rec)
	}

	for _, rec := range pending {
		factory, ok := p.factories[rec.Type]
		if !ok {
			p.logger.Error("no factory registered for recovered task type",
				"task_id", rec.ID,
				"task_type", rec.Type)
			continue
		}

		t, err := factory.Hydrate(rec.Payload)
		if err != nil {
			p.logger.Error("failed to hydrate recovered task",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
			continue
		}

		attempt := rec.Attempts + 1
		if attempt < 1 {
			attempt = 1
		}
		if !p.queue.dispatch(queued{task: t, attempt: attempt}) {
			p.logger.Error("failed to requeue recovered task, queue is full",
				"task_id", rec.ID)
		}
	}

	return nil
}

// worker pulls deliveries until shutdown or queue close.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return

		case d, ok := <-p.queue.Chan():
			if !ok {
				p.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			p.process(d, id)
		}
	}
}

// process executes one delivery: waits for a dispatch token, runs the task,
// and routes the outcome to completion, retry, or terminal settlement.
//
// Persistence and execution use a background context so that an in-flight
// task finishes cleanly during shutdown.
func (p *WorkerPool) process(d queued, workerID int) {
	// The rate limit gates dispatches, not completions. A shutdown while
	// waiting leaves the task pending for recovery.
	if err := p.limiter.Wait(p.ctx); err != nil {
		p.logger.Debug("dispatch cancelled while rate limited",
			"task_id", d.task.ID())
		return
	}

	ctx := context.Background()
	logger := p.logger.With(
		"task_id", d.task.ID(),
		"task_type", d.task.Type(),
		"attempt", d.attempt,
		"worker_id", workerID,
	)

	if err := p.store.UpdateTaskStatus(ctx, d.task.ID(), TaskStatusProcessing, "", d.attempt); err != nil {
		logger.Error("failed to update task status to processing", "error", err)
		return
	}

	logger.Info("processing task")

	err := d.task.Execute(ctx)
	if err == nil {
		logger.Info("task completed successfully")
		if updateErr := p.store.UpdateTaskStatus(ctx, d.task.ID(), TaskStatusCompleted, "", d.attempt); updateErr != nil {
			logger.Error("failed to update task status to completed", "error", updateErr)
		}
		return
	}

	if analysis.IsTransient(err) && d.attempt < p.config.MaxAttempts {
		delay := p.retryDelay(d.attempt)
		logger.Warn("transient task failure, scheduling retry",
			"error", err,
			"retry_delay", delay)

		if updateErr := p.store.UpdateTaskStatus(ctx, d.task.ID(), TaskStatusPending, err.Error(), d.attempt); updateErr != nil {
			logger.Error("failed to update task status for retry", "error", updateErr)
		}

		p.scheduleRetry(d, delay)
		return
	}

	cause := err
	if analysis.IsTransient(err) {
		cause = fmt.Errorf("retries exhausted after %d attempts: %w", d.attempt, err)
	}

	logger.Error("task failed terminally", "error", cause)

	if failErr := d.task.Fail(ctx, cause); failErr != nil {
		logger.Error("failed to settle item for failed task", "error", failErr)
	}

	if updateErr := p.store.UpdateTaskStatus(ctx, d.task.ID(), TaskStatusFailed, cause.Error(), d.attempt); updateErr != nil {
		logger.Error("failed to update task status to failed", "error", updateErr)
	}
}

// retryDelay returns the backoff before attempt+1: base doubled per prior
// attempt (5s, 10s, 20s, ...).
func (p *WorkerPool) retryDelay(attempt int) time.Duration {
	delay := p.config.RetryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// scheduleRetry re-dispatches the task after the backoff delay, unless the
// pool shuts down first (recovery re-dispatches it on next start).
func (p *WorkerPool) scheduleRetry(d queued, delay time.Duration) {
	p.retryWG.Add(1)
	go func() {
		defer p.retryWG.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-p.ctx.Done():
			return
		case <-timer.C:
		}

		next := queued{task: d.task, attempt: d.attempt + 1}
		if !p.queue.dispatch(next) {
			p.logger.Error("failed to requeue task for retry, queue unavailable",
				"task_id", d.task.ID(),
				"attempt", next.attempt)
		}
	}()
}

// pruneLoop periodically trims settled task records down to the configured
// retention ceiling.
func (p *WorkerPool) pruneLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return

		case <-ticker.C:
			if err := p.store.PruneSettled(context.Background(), p.config.RetainedTaskRecords); err != nil {
				p.logger.Error("failed to prune settled task records", "error", err)
			}
		}
	}
}
