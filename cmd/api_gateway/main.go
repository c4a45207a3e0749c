package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/receiptflow-ledger/internal/api_gateway"
	"github.com/receiptflow-ledger/internal/api_gateway/service"
	"github.com/receiptflow-ledger/internal/config"
	"github.com/receiptflow-ledger/internal/data/mongo"
	"github.com/receiptflow-ledger/internal/data/postgres"
	"github.com/receiptflow-ledger/internal/domain/auditlog"
	"github.com/receiptflow-ledger/internal/fxrate"
	"github.com/receiptflow-ledger/internal/ledgersink"
	"github.com/receiptflow-ledger/internal/lifecycle"
	"github.com/receiptflow-ledger/internal/logger"
	"github.com/receiptflow-ledger/internal/platform/messaging/producers"
	"github.com/receiptflow-ledger/internal/platform/persistence"
	"github.com/receiptflow-ledger/internal/resolver"
	"github.com/receiptflow-ledger/internal/validation"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
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

	// Initialize Kafka producers (intake topic and auxiliary record topic)
	intakeProducer, err := producers.NewExtractionMessageProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize intake Kafka producer", "error", err)
		os.Exit(1)
	}

	recordProducer, err := producers.NewRecordEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize record Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	receiptRepo := postgres.NewPendingReceiptRepository(log, postgresDB)
	statsRepo := postgres.NewUserStatsRepository(log, postgresDB)
	sheetConfigRepo := postgres.NewSheetConfigRepository(log, postgresDB)
	fxCacheRepo := postgres.NewFxCacheRepository(log, postgresDB)
	auditRepo := mongo.NewAuditLogRepository(log, mongoDB.Database())
	recordArchive := mongo.NewRecordRepository(log, mongoDB.Database())

	auditor := auditlog.NewRecorder(auditRepo, log)

	// Initialize the finalization pipeline collaborators
	rateService := fxrate.NewService(fxCacheRepo, fxrate.NewHTTPProvider(log, &cfg.FxRate), cfg.FxRate.CacheTTL, log)
	destResolver := resolver.New(sheetConfigRepo, resolver.LegacyDestination{
		SheetIdentifier: cfg.Sheets.LegacySpreadsheet,
		Tab:             cfg.Sheets.LegacyTab,
	}, auditor, log)
	validator := validation.NewEngine(cfg.Validation.Categories)

	sheetsSink, err := ledgersink.NewSheetsSink(appCtx, log, &cfg.Sheets)
	if err != nil {
		log.Error("Failed to initialize spreadsheet sink", "error", err)
		os.Exit(1)
	}
	auxSink := ledgersink.NewKafkaSink(log, recordProducer)

	engine := lifecycle.NewEngine(
		log,
		receiptRepo,
		recordArchive,
		statsRepo,
		rateService,
		destResolver,
		validator,
		sheetsSink,
		auxSink,
		sheetConfigRepo,
		auditor,
		cfg.FxRate.BaseCurrency,
	)

	// Initialize services
	receiptService := service.NewReceiptService(log, receiptRepo, recordArchive, statsRepo, engine, intakeProducer)
	sheetConfigService := service.NewSheetConfigService(log, sheetConfigRepo, auditor)
	logService := service.NewLogService(log, auditRepo)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, receiptService, sheetConfigService, logService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = intakeProducer.Close(); err != nil {
		log.Error("Error closing intake Kafka producer", "error", err)
	}
	if err = recordProducer.Close(); err != nil {
		log.Error("Error closing record Kafka producer", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
