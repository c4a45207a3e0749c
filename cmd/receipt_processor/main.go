package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/receiptflow-ledger/internal/config"
	"github.com/receiptflow-ledger/internal/data/mongo"
	"github.com/receiptflow-ledger/internal/data/postgres"
	"github.com/receiptflow-ledger/internal/domain/auditlog"
	"github.com/receiptflow-ledger/internal/fxrate"
	"github.com/receiptflow-ledger/internal/ledgersink"
	"github.com/receiptflow-ledger/internal/lifecycle"
	"github.com/receiptflow-ledger/internal/logger"
	"github.com/receiptflow-ledger/internal/platform/messaging/consumers"
	"github.com/receiptflow-ledger/internal/platform/messaging/producers"
	"github.com/receiptflow-ledger/internal/platform/persistence"
	"github.com/receiptflow-ledger/internal/receipt_processor/components"
	"github.com/receiptflow-ledger/internal/receipt_processor/consumer"
	"github.com/receiptflow-ledger/internal/receipt_processor/service"
	"github.com/receiptflow-ledger/internal/resolver"
	"github.com/receiptflow-ledger/internal/validation"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("receipt_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Receipt Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	// Initialize repositories
	receiptRepo := postgres.NewPendingReceiptRepository(log, postgresDB)
	statsRepo := postgres.NewUserStatsRepository(log, postgresDB)
	sheetConfigRepo := postgres.NewSheetConfigRepository(log, postgresDB)
	fxCacheRepo := postgres.NewFxCacheRepository(log, postgresDB)
	auditRepo := mongo.NewAuditLogRepository(log, mongoDB.Database())
	recordArchive := mongo.NewRecordRepository(log, mongoDB.Database())

	auditor := auditlog.NewRecorder(auditRepo, log)

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured. Handler should be nil-safe.

	// Initialize auxiliary record producer
	recordProducer, err := producers.NewRecordEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize record Kafka producer", "error", err)
		os.Exit(1)
	}

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

	// Initialize processing service backed by the worker pool
	processingService := components.CreateProcessingService(
		receiptRepo,
		engine,
		log,
		cfg,
	)

	// Initialize extraction event handler
	extractionEventHandler := consumer.NewExtractionEventHandler(
		log,
		processingService,
		dlqProducer,
	)

	// Create error channel for service errors
	errChan := make(chan error, 1)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.ExtractionTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.ExtractionTopic, cfg.Kafka.ConsumerGroup, extractionEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Shutdown the worker pool if it's a WorkerPoolProcessingService
	if wpService, ok := processingService.(*service.WorkerPoolProcessingService); ok {
		log.Info("Shutting down worker pool", "running_workers", wpService.Running())
		wpService.Shutdown()
	}

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close DLQ Kafka producer
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Close auxiliary record producer
	if err = recordProducer.Close(); err != nil {
		log.Error("Error closing record Kafka producer", "error", err)
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Receipt Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Receipt Processor shutdown completed with errors")
	} else {
		log.Info("Receipt Processor shutdown completed successfully")
	}
}
