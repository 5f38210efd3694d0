package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/satpugnet/shopify-visiontags-ai/internal/config"
	"github.com/satpugnet/shopify-visiontags-ai/internal/events"
	"github.com/satpugnet/shopify-visiontags-ai/internal/ledger"
	"github.com/satpugnet/shopify-visiontags-ai/internal/platform/postgres"
	"github.com/satpugnet/shopify-visiontags-ai/internal/platform/shopify"
	"github.com/satpugnet/shopify-visiontags-ai/internal/platform/vision"
	"github.com/satpugnet/shopify-visiontags-ai/internal/service"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
	"github.com/satpugnet/shopify-visiontags-ai/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	tenantStore store.TenantStore
	ledgerStore store.LedgerStore
	jobStore    store.JobStore
	itemStore   store.ItemStore
	usageStore  store.UsageStore
	taskStore   task.TaskStore

	// Service interfaces
	creditService ledger.Service
	scanService   service.ScanService
	syncService   service.SyncService
	tenantService service.TenantService

	// Event system
	eventEmitter events.EventEmitter

	// Task handling
	queue      *task.Queue
	workerPool *task.WorkerPool
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize stores
	app.tenantStore = postgres.NewPostgresTenantStore(db, logger)
	app.ledgerStore = postgres.NewPostgresLedgerStore(db, logger)
	app.jobStore = postgres.NewPostgresJobStore(db, logger)
	app.itemStore = postgres.NewPostgresItemStore(db, logger)
	app.usageStore = postgres.NewPostgresUsageStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)

	// Create the vision analyzer
	analyzer, err := vision.NewAnalyzer(ctx, logger.With("component", "vision_analyzer"), cfg.Vision)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vision analyzer: %w", err)
	}
	logger.Info("Vision analyzer initialized", "model", cfg.Vision.ModelName)

	// Create the catalog client
	catalogClient, err := shopify.NewClient(cfg.Catalog, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog client: %w", err)
	}

	// Initialize the credit ledger service
	app.creditService, err = ledger.NewService(db, app.ledgerStore, app.usageStore, app.tenantStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create credit service: %w", err)
	}

	// Initialize the analysis queue and worker pool
	app.queue = task.NewQueue(app.taskStore, cfg.Queue.BufferSize, logger)

	taskFactory, err := task.NewAnalyzeTaskFactory(analyzer, app.itemStore, app.jobStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyze task factory: %w", err)
	}

	app.workerPool = task.NewWorkerPool(app.queue, app.taskStore, task.WorkerPoolConfig{
		WorkerCount:         cfg.Queue.WorkerCount,
		MaxAttempts:         cfg.Queue.MaxAttempts,
		RetryBaseDelay:      time.Duration(cfg.Queue.RetryBaseDelaySeconds) * time.Second,
		DispatchesPerWindow: cfg.Queue.DispatchesPerWindow,
		RateWindow:          time.Duration(cfg.Queue.RateWindowSeconds) * time.Second,
		RetainedTaskRecords: cfg.Queue.RetainedTaskRecords,
	}, logger)
	app.workerPool.RegisterFactory(taskFactory)

	if err := app.workerPool.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	// Initialize application services
	app.scanService, err = service.NewScanService(
		db,
		app.jobStore,
		app.itemStore,
		app.creditService,
		app.queue,
		taskFactory,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan service: %w", err)
	}

	app.syncService, err = service.NewSyncService(app.itemStore, catalogClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync service: %w", err)
	}

	app.tenantService, err = service.NewTenantService(db, app.tenantStore, app.ledgerStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant service: %w", err)
	}

	// Initialize the event emitter and register the webhook handler
	emitter := events.NewInMemoryEventEmitter(logger)

	webhookHandler, err := service.NewWebhookHandler(app.tenantStore, app.scanService, app.creditService, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook handler: %w", err)
	}
	emitter.RegisterHandler(webhookHandler)

	app.eventEmitter = emitter

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources: the queue
// stops admitting, in-flight analyses finish, and the database connection
// closes last.
func (app *application) cleanup() {
	if app.queue != nil {
		app.queue.Close()
	}

	if app.workerPool != nil {
		app.workerPool.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
