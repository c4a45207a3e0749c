package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/receiptflow-ledger/internal/domain/shared"
	"github.com/receiptflow-ledger/internal/platform/messaging/producers"
	"github.com/receiptflow-ledger/internal/receipt_processor/service"
)

// ExtractionEventHandler handles incoming extraction messages from Kafka
type ExtractionEventHandler struct {
	processingService service.ProcessingService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewExtractionEventHandler creates a new handler
func NewExtractionEventHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	producer producers.DeadLetterPublisher,
) *ExtractionEventHandler {
	return &ExtractionEventHandler{
		processingService: processingService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage processes Kafka messages
func (h *ExtractionEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var msg shared.ExtractionMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal extraction message from Kafka"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Send to DLQ if available
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
				// Return original error if DLQ fails
			} else {
				h.logger.Info("Successfully published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	// Add correlation ID to logger
	logger := h.logger
	if msg.CorrelationID != "" {
		logger = h.logger.With("correlation_id", msg.CorrelationID)
	}

	logger.Info("Received extraction message for processing",
		"receipt_id", msg.ReceiptID.String(),
		"user_id", msg.UserID.String(),
		"file_name", msg.FileName,
	)

	if err := h.processingService.ProcessExtraction(ctx, &msg); err != nil {
		logger.Error("Failed to process extraction",
			"receipt_id", msg.ReceiptID.String(),
			"user_id", msg.UserID.String(),
			"error", err,
		)
		return fmt.Errorf("processing extraction %s failed: %w", msg.ReceiptID.String(), err)
	}

	logger.Info("Successfully processed extraction", "receipt_id", msg.ReceiptID.String())
	return nil // Success, commit offset
}
