package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"csreply-backend/internal/bootstrap"
	"csreply-backend/internal/queue"
	"csreply-backend/internal/shared/config"
	"csreply-backend/internal/shared/server"
	"csreply-backend/internal/shared/storage/db"
	"csreply-backend/internal/workerproc"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	if app.DB != nil {
		if err := db.RunMigrations(ctx, app.DB); err != nil {
			log.Fatalf("run migrations: %v", err)
		}
	}

	if app.Watcher != nil {
		go app.Watcher.Run(ctx)
	}

	// With an in-process queue nothing else can consume intake messages.
	consumerDone := make(chan struct{})
	if mq, ok := app.Consumer.(*queue.MemoryQueue); ok {
		log.Printf("in-memory queue: processing inquiries in the API process")
		go func() {
			defer close(consumerDone)
			workerproc.Run(ctx, mq, app.Workflow, workerproc.Options{Concurrency: cfg.WorkerConcurrency})
		}()
	} else {
		close(consumerDone)
	}

	addr := server.Addr(cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("Starting API server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	<-consumerDone
}
