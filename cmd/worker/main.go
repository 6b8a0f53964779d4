package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"csreply-backend/internal/bootstrap"
	"csreply-backend/internal/shared/config"
	"csreply-backend/internal/shared/telemetry"
	"csreply-backend/internal/workerproc"
	"csreply-backend/internal/workflow"
)

const defaultShutdownTimeout = 30 * time.Second

type batchRunner interface {
	RunBatch(ctx context.Context, limit int) (workflow.BatchReport, error)
}

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWorker(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	if app.Watcher != nil {
		go app.Watcher.Run(ctx)
	}

	log.Printf("worker started queue=%s concurrency=%d batch_interval=%s", cfg.QueueBackend, cfg.WorkerConcurrency, cfg.BatchInterval)

	var wg sync.WaitGroup
	if app.Consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workerproc.Run(ctx, app.Consumer, app.Workflow, workerproc.Options{
				Concurrency:     cfg.WorkerConcurrency,
				ShutdownTimeout: defaultShutdownTimeout,
			})
		}()
	}
	if cfg.BatchInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweepLoop(ctx, app.Workflow, cfg.BatchInterval, cfg.BatchSize)
		}()
	}

	wg.Wait()
	log.Printf("worker stopped")
}

// sweepLoop runs a batch immediately and then every interval. Pending
// inquiries the queue never delivered (lost messages, intake before the
// worker existed) are picked up here.
func sweepLoop(ctx context.Context, runner batchRunner, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		sweep(ctx, runner, limit)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sweep(ctx context.Context, runner batchRunner, limit int) {
	if ctx.Err() != nil {
		return
	}
	report, err := runner.RunBatch(ctx, limit)
	if err != nil {
		telemetry.Error("worker.sweep_failed", map[string]any{"error": err.Error()})
		return
	}
	if report.Counters.Collected == 0 {
		return
	}
	telemetry.Info("worker.sweep_completed", map[string]any{
		"run_id":    report.RunID,
		"collected": report.Counters.Collected,
		"errors":    report.Counters.Errors,
		"cancelled": report.Cancelled,
	})
}
