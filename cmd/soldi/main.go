package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"soldi/internal/amqp"
	"soldi/internal/cache"
	"soldi/internal/config"
	apphttp "soldi/internal/http"
	applog "soldi/internal/log"
	"soldi/internal/reports"
	"soldi/internal/storage"
	"soldi/internal/worker"
)

// amqpDispatcher forwards rebuild requests to the message broker.
type amqpDispatcher struct {
	client *amqp.Client
}

func (d *amqpDispatcher) DispatchRebuild(ctx context.Context, ownerID int64, reason string) error {
	return d.client.PublishRebuildRequest(ctx, ownerID, reason)
}

// inlineDispatcher rebuilds in-process when no broker is configured.
type inlineDispatcher struct {
	worker *worker.RebuildWorker
}

func (d *inlineDispatcher) DispatchRebuild(ctx context.Context, ownerID int64, reason string) error {
	return d.worker.HandleRebuildRequest(ctx, amqp.NewRebuildRequestMessage(ownerID, reason))
}

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	service := reports.New(repo, repo, repo)
	rebuilder := reports.NewRebuilder(repo, repo)

	var dispatcher apphttp.RebuildDispatcher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		dispatcher = &amqpDispatcher{client: amqpClient}
		logger.Info("Rebuild requests dispatched via AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		dispatcher = &inlineDispatcher{worker: worker.NewRebuildWorker(rebuilder)}
		logger.Info("No AMQP URL configured, rebuilds run inline")
	}

	srv := apphttp.NewServer(":"+cfg.Port, service, dispatcher, cfg.ReportCacheSize, cfg.ReportCacheTTL)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	cacheManager := cache.NewManager()
	cacheManager.Register(srv.ReportCache())
	cacheManager.StartCleanup(cfg.CacheCleanupInterval)
	defer cacheManager.Stop()

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting soldi server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
