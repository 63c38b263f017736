// Package worker polls the run queue and executes diagnostic runs in the
// background.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hivehq/hive-api/internal/models"
	"github.com/hivehq/hive-api/internal/repository"
)

// RunExecutor executes a claimed diagnostic run.
type RunExecutor interface {
	Execute(ctx context.Context, run *models.DiagnosticRun) error
}

// Worker processes queued diagnostic runs.
type Worker struct {
	diagnostics  repository.DiagnosticRepository
	executor     RunExecutor
	pollInterval time.Duration
	concurrency  int
	stop         chan struct{}
	wg           sync.WaitGroup
	active       int64
	logger       *slog.Logger
}

// Config holds worker configuration.
type Config struct {
	PollInterval time.Duration
	Concurrency  int
}

// New creates a new worker.
func New(diagnostics repository.DiagnosticRepository, executor RunExecutor, cfg Config, logger *slog.Logger) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		diagnostics:  diagnostics,
		executor:     executor,
		pollInterval: cfg.PollInterval,
		concurrency:  cfg.Concurrency,
		stop:         make(chan struct{}),
		logger:       logger.With("component", "worker"),
	}
}

// Start begins processing runs.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting", "concurrency", w.concurrency, "poll_interval", w.pollInterval)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.runLoop(ctx, i)
	}
}

// Stop gracefully stops the worker, waiting for in-flight runs.
func (w *Worker) Stop() {
	w.logger.Info("stopping")
	close(w.stop)
	w.wg.Wait()
	w.logger.Info("stopped")
}

// Busy reports whether any run is currently being processed. Used to hold
// off idle shutdown while work is in flight.
func (w *Worker) Busy() bool {
	return atomic.LoadInt64(&w.active) > 0
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processNextRun(ctx, workerID)
		}
	}
}

func (w *Worker) processNextRun(ctx context.Context, workerID int) {
	run, err := w.diagnostics.ClaimQueuedRun(ctx)
	if err != nil {
		w.logger.Error("failed to claim run", "worker_id", workerID, "error", err)
		return
	}
	if run == nil {
		return // queue empty
	}

	atomic.AddInt64(&w.active, 1)
	defer atomic.AddInt64(&w.active, -1)

	w.logger.Info("processing run", "worker_id", workerID, "run_id", run.ID, "company_id", run.CompanyID)

	if err := w.executor.Execute(ctx, run); err != nil {
		// Execute records the failure on the run itself; log and move on.
		w.logger.Error("run failed", "worker_id", workerID, "run_id", run.ID, "error", err)
		return
	}

	w.logger.Info("run completed", "worker_id", workerID, "run_id", run.ID)
}
