package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/loanspur/paymentvalut-sub005/internal/config"
	"github.com/loanspur/paymentvalut-sub005/internal/data/postgres"
	"github.com/loanspur/paymentvalut-sub005/internal/logger"
	"github.com/loanspur/paymentvalut-sub005/internal/mpesa"
	"github.com/loanspur/paymentvalut-sub005/internal/platform/messaging/producers"
	"github.com/loanspur/paymentvalut-sub005/internal/platform/persistence"
	"github.com/loanspur/paymentvalut-sub005/internal/scheduler"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("retry_scheduler")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Retry Scheduler",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	disbursementRepo := postgres.NewDisbursementRepository(log, postgresDB)

	statusProducer, err := producers.NewStatusEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize status event producer", "error", err)
		os.Exit(1)
	}
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured; the scheduler is nil-safe

	gatewayClient := mpesa.NewClient(log, &cfg.Gateway)

	dispatcher, err := scheduler.NewDispatcher(cfg.WorkerPool.Size, log)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	retryScheduler := scheduler.NewScheduler(
		disbursementRepo,
		gatewayClient,
		dispatcher,
		statusProducer,
		dlqProducer,
		&cfg.Retry,
		log,
	)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting retry scan loop",
			"interval", cfg.Retry.ScanInterval.String(),
			"batch_size", cfg.Retry.BatchSize,
		)
		retryScheduler.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	<-quit
	log.Info("Shutdown signal received")

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("Retry scan loop stopped")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	log.Info("Shutting down worker pool", "running_workers", dispatcher.Running())
	dispatcher.Shutdown()

	if err = statusProducer.Close(); err != nil {
		log.Error("Error closing status event producer", "error", err)
	}
	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ producer", "error", err)
		}
	}

	postgresDB.Close()

	log.Info("Retry scheduler shutdown completed")
}
