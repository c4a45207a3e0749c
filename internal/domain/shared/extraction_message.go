package shared

import (
	"time"

	"github.com/google/uuid"

	"github.com/receiptflow-ledger/internal/domain/receipt"
)

// ExtractionMessage defines a Kafka message carrying an untrusted AI
// extraction into the receipt processor
type ExtractionMessage struct {
	ReceiptID     uuid.UUID             `json:"receipt_id"`
	UserID        uuid.UUID             `json:"user_id"`
	FileName      string                `json:"file_name"`
	Extraction    receipt.RawExtraction `json:"extraction"`
	CorrelationID string                `json:"correlation_id"`
	Timestamp     time.Time             `json:"timestamp"`
}
