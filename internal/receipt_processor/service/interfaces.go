package service

import (
	"context"

	"github.com/receiptflow-ledger/internal/domain/shared"
)

// ProcessingService defines the interface for processing incoming extraction messages.
type ProcessingService interface {
	ProcessExtraction(ctx context.Context, msg *shared.ExtractionMessage) error
}

// ExtractionRegistrar registers an extraction and drives it through the lifecycle
type ExtractionRegistrar interface {
	RegisterExtraction(ctx context.Context, msg *shared.ExtractionMessage) error
}
