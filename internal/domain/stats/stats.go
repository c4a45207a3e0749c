package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserStats is the per-user aggregate. It is never recomputed by scanning
// receipts at read time; every mutation goes through an atomic counter update.
type UserStats struct {
	UserID               uuid.UUID       `json:"user_id"`
	TotalReceipts        int64           `json:"total_receipts"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	PendingReceipts      int64           `json:"pending_receipts"`
	LastUpdated          time.Time       `json:"last_updated"`
	LastReceiptProcessed *uuid.UUID      `json:"last_receipt_processed,omitempty"`
}

// Repository defines atomic counter operations on user aggregates. Every
// implementation must perform each mutation as a single conditional
// read-modify-write (one UPDATE/UPSERT statement, or an equivalent
// compare-and-swap) so that concurrent finalizations never lose updates.
type Repository interface {
	Get(ctx context.Context, userID uuid.UUID) (*UserStats, error)

	// AddFinalized increments total receipt count and amount in one statement
	AddFinalized(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, receiptID uuid.UUID) error

	// IncrementPending adds one to the pending counter when a receipt enters the pending set
	IncrementPending(ctx context.Context, userID uuid.UUID) error

	// DecrementPending removes one from the pending counter; callers invoke it
	// exactly once per receipt, when the receipt leaves the pending set
	DecrementPending(ctx context.Context, userID uuid.UUID) error
}
