package lifecycle

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/receiptflow-ledger/internal/domain/receipt"
	"github.com/receiptflow-ledger/internal/domain/routing"
	"github.com/receiptflow-ledger/internal/validation"
)

// RateSource resolves a conversion rate for a currency pair. A nil result
// means no conversion is available and the amount stays unconverted.
type RateSource interface {
	GetRate(ctx context.Context, from, to string) *decimal.Decimal
}

// DestinationResolver maps a user to the ledger destination their finalized
// receipts are routed to
type DestinationResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) routing.Destination
	Entity(ctx context.Context, userID uuid.UUID) string
}

// Validator evaluates validation rules over a merged extraction
type Validator interface {
	Validate(ext receipt.RawExtraction) validation.Result
}
