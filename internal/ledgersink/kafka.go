package ledgersink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/receiptflow-ledger/internal/domain/receipt"
	"github.com/receiptflow-ledger/internal/domain/routing"
	"github.com/receiptflow-ledger/internal/platform/messaging/producers"
)

// KafkaSink publishes finalized records to the auxiliary record topic, an
// accountant-readable duplicate stream. Failures here are non-fatal by
// contract; the caller only logs a warning.
type KafkaSink struct {
	producer producers.MessagePublisher
	logger   *slog.Logger
}

// NewKafkaSink wraps a record-topic producer as a secondary sink
func NewKafkaSink(logger *slog.Logger, producer producers.MessagePublisher) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		logger:   logger,
	}
}

// recordEvent is the published payload: the record plus its resolved destination
type recordEvent struct {
	Destination routing.Destination             `json:"destination"`
	Record      *receipt.CanonicalReceiptRecord `json:"record"`
}

// AppendRow publishes the record keyed by its receipt id
func (s *KafkaSink) AppendRow(ctx context.Context, dest routing.Destination, record *receipt.CanonicalReceiptRecord) error {
	event := recordEvent{Destination: dest, Record: record}
	if err := s.producer.Publish(ctx, record.ReceiptID.String(), event); err != nil {
		return fmt.Errorf("failed to publish record to auxiliary sink: %w", err)
	}

	s.logger.Debug("Published record to auxiliary sink", "receipt_id", record.ReceiptID.String())
	return nil
}
