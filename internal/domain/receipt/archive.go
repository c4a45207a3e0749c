package receipt

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Archive is the durable store for finalized canonical records. Records are
// immutable once archived; corrections after finalization are not supported.
type Archive interface {
	Store(ctx context.Context, record *CanonicalReceiptRecord) error
	GetByReceiptID(ctx context.Context, receiptID uuid.UUID) (*CanonicalReceiptRecord, error)
	GetByUser(ctx context.Context, userID uuid.UUID, from, to time.Time, limit, offset int) ([]*CanonicalReceiptRecord, error)
}

// ErrRecordNotFound indicates a missing canonical record
type ErrRecordNotFound struct {
	ReceiptID uuid.UUID
}

func (e ErrRecordNotFound) Error() string {
	return "canonical receipt record not found: " + e.ReceiptID.String()
}

// Is matches any ErrRecordNotFound when the target carries a nil ID
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	if t.ReceiptID == uuid.Nil {
		return true
	}
	return e.ReceiptID == t.ReceiptID
}
