package service

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/receiptflow-ledger/internal/domain/shared"
)

// WorkerPoolProcessingService implements the ProcessingService interface
type WorkerPoolProcessingService struct {
	baseService ProcessingService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolProcessingService(
	baseService ProcessingService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProcessingService, error) {
	// Create a new worker pool with the specified size
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolProcessingService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// ProcessExtraction submits an extraction message to the worker pool and
// blocks until the worker reports back, so the caller keeps the same
// synchronous contract as the base service.
func (s *WorkerPoolProcessingService) ProcessExtraction(ctx context.Context, msg *shared.ExtractionMessage) error {
	logger := s.logger
	if msg.CorrelationID != "" {
		logger = s.logger.With("correlation_id", msg.CorrelationID)
	}

	logger.Info("Submitting extraction to worker pool",
		"receipt_id", msg.ReceiptID.String(),
		"user_id", msg.UserID.String(),
	)

	resultChan := make(chan error, 1)

	// Create a copy of the message to avoid data races
	msgCopy := *msg

	err := s.pool.Submit(func() {
		resultChan <- s.baseService.ProcessExtraction(ctx, &msgCopy)
	})

	if err != nil {
		logger.Error("Failed to submit extraction to worker pool",
			"receipt_id", msg.ReceiptID.String(),
			"error", err,
		)
		return err
	}

	return <-resultChan
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolProcessingService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolProcessingService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolProcessingService) Capacity() int {
	return s.pool.Cap()
}
