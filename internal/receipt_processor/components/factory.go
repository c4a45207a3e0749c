package components

import (
	"log/slog"

	"github.com/receiptflow-ledger/internal/config"
	"github.com/receiptflow-ledger/internal/domain/receipt"
	"github.com/receiptflow-ledger/internal/receipt_processor/service"
)

// CreateProcessingService creates a new ProcessingService with all its dependencies.
func CreateProcessingService(
	receipts receipt.Repository,
	registrar service.ExtractionRegistrar,
	logger *slog.Logger,
	cfg *config.Config,
) service.ProcessingService {
	baseService := service.NewProcessingService(receipts, registrar, logger)

	workerPoolService, err := service.NewWorkerPoolProcessingService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)

	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool processing service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
