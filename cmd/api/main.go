package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/loanspur/paymentvalut-sub005/internal/api"
	"github.com/loanspur/paymentvalut-sub005/internal/api/handler"
	"github.com/loanspur/paymentvalut-sub005/internal/api/service"
	"github.com/loanspur/paymentvalut-sub005/internal/config"
	"github.com/loanspur/paymentvalut-sub005/internal/data/mongo"
	"github.com/loanspur/paymentvalut-sub005/internal/data/postgres"
	"github.com/loanspur/paymentvalut-sub005/internal/inbound"
	"github.com/loanspur/paymentvalut-sub005/internal/logger"
	"github.com/loanspur/paymentvalut-sub005/internal/mpesa"
	"github.com/loanspur/paymentvalut-sub005/internal/platform/messaging/producers"
	"github.com/loanspur/paymentvalut-sub005/internal/platform/persistence"
	"github.com/loanspur/paymentvalut-sub005/internal/reconcile"
	"github.com/loanspur/paymentvalut-sub005/internal/scheduler"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Kafka producers for terminal status events, with DLQ fallback
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
	// dlqProducer is nil when DLQTopic is not configured; consumers are nil-safe

	// Repositories
	disbursementRepo := postgres.NewDisbursementRepository(log, postgresDB)
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	c2bRepo := postgres.NewC2BRepository(log, postgresDB)
	partnerRepo := postgres.NewPartnerRepository(log, postgresDB)
	balanceRepo := postgres.NewBalanceRepository(log, postgresDB)
	callbackRepo := mongo.NewCallbackRepository(log, mongoDB.Database())

	// Gateway client and core processors
	gatewayClient := mpesa.NewClient(log, &cfg.Gateway)
	reconciler := reconcile.NewReconciler(
		postgresDB,
		disbursementRepo,
		walletRepo,
		balanceRepo,
		callbackRepo,
		statusProducer,
		dlqProducer,
		&cfg.Retry,
		log,
	)
	inboundProcessor := inbound.NewProcessor(
		postgresDB,
		c2bRepo,
		partnerRepo,
		walletRepo,
		&cfg.Paybill,
		log,
	)

	// The manual retry endpoint shares the scheduler's re-submission path
	dispatcher, err := scheduler.NewDispatcher(cfg.WorkerPool.Size, log)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}
	retrier := scheduler.NewScheduler(
		disbursementRepo,
		gatewayClient,
		dispatcher,
		statusProducer,
		dlqProducer,
		&cfg.Retry,
		log,
	)

	// Services and handlers
	disbursementService := service.NewDisbursementService(log, disbursementRepo, gatewayClient, retrier, statusProducer, &cfg.Retry)
	walletService := service.NewWalletService(walletRepo)
	balanceService := service.NewBalanceService(log, balanceRepo, gatewayClient)
	c2bService := service.NewC2BService(log, postgresDB, c2bRepo, partnerRepo, walletRepo)

	handlers := api.Handlers{
		Disbursement: handler.NewDisbursementHandler(log, disbursementService),
		Callback:     handler.NewCallbackHandler(log, reconciler),
		Inbound:      handler.NewInboundHandler(log, inboundProcessor),
		Wallet:       handler.NewWalletHandler(log, walletService),
		Balance:      handler.NewBalanceHandler(log, balanceService),
		C2B:          handler.NewC2BHandler(log, c2bService),
	}

	server := api.NewServer(log, cfg, partnerRepo, handlers)
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	dispatcher.Shutdown()
	postgresDB.Close()

	if err = statusProducer.Close(); err != nil {
		log.Error("Error closing status event producer", "error", err)
	}
	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ producer", "error", err)
		}
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
