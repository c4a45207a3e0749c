package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/receiptflow-ledger/internal/domain/receipt"
	"github.com/receiptflow-ledger/internal/domain/shared"
)

type ProcessingServiceImpl struct {
	receipts  receipt.Repository
	registrar ExtractionRegistrar
	logger    *slog.Logger
}

func NewProcessingService(
	receipts receipt.Repository,
	registrar ExtractionRegistrar,
	logger *slog.Logger,
) ProcessingService {
	return &ProcessingServiceImpl{
		receipts:  receipts,
		registrar: registrar,
		logger:    logger,
	}
}

// ProcessExtraction handles one extraction message: an idempotency check
// against redelivered messages, then registration through the lifecycle
// engine. Errors propagate so the consumer withholds the offset and Kafka
// retries.
func (s *ProcessingServiceImpl) ProcessExtraction(ctx context.Context, msg *shared.ExtractionMessage) error {
	logger := s.logger
	if msg.CorrelationID != "" {
		logger = s.logger.With("correlation_id", msg.CorrelationID)
	}

	logger.Info("Processing extraction message",
		"receipt_id", msg.ReceiptID.String(),
		"user_id", msg.UserID.String(),
		"file_name", msg.FileName,
	)

	// Idempotency: a redelivered message for an already-registered receipt is
	// acknowledged without side effects.
	existing, err := s.receipts.GetByID(ctx, msg.ReceiptID)
	if err != nil && !errors.Is(err, receipt.ErrReceiptNotFound{}) {
		return fmt.Errorf("idempotency check for receipt %s failed: %w", msg.ReceiptID.String(), err)
	}
	if existing != nil {
		logger.Info("Receipt already registered, skipping", "receipt_id", msg.ReceiptID.String())
		return nil
	}

	if err := s.registrar.RegisterExtraction(ctx, msg); err != nil {
		logger.Error("Failed to register extraction",
			"receipt_id", msg.ReceiptID.String(),
			"error", err,
		)
		return fmt.Errorf("processing extraction %s failed: %w", msg.ReceiptID.String(), err)
	}

	logger.Info("Successfully processed extraction", "receipt_id", msg.ReceiptID.String())
	return nil
}
