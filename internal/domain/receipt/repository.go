package receipt

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a pending-receipt listing
type ListFilter struct {
	UserID   *uuid.UUID
	Statuses []Status
	Limit    int
	Offset   int
}

// Repository defines pending receipt persistence operations. TransitionStatus
// is a conditional write: it succeeds only if the receipt is currently in one
// of the expected prior states, which is the guard against double-finalization.
type Repository interface {
	Create(ctx context.Context, rec *PendingReceipt) error
	GetByID(ctx context.Context, id uuid.UUID) (*PendingReceipt, error)
	List(ctx context.Context, filter ListFilter) ([]*PendingReceipt, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, errs, warns []string, reason string) error
}

// ErrReceiptNotFound indicates the referenced pending receipt is absent
type ErrReceiptNotFound struct {
	ReceiptID uuid.UUID
}

func (e ErrReceiptNotFound) Error() string {
	return "pending receipt not found: " + e.ReceiptID.String()
}

// Is matches any ErrReceiptNotFound when the target carries a nil ID
func (e ErrReceiptNotFound) Is(target error) bool {
	t, ok := target.(ErrReceiptNotFound)
	if !ok {
		return false
	}
	if t.ReceiptID == uuid.Nil {
		return true
	}
	return e.ReceiptID == t.ReceiptID
}

// ErrCorruptRecord indicates a receipt exists but its extraction payload is missing
type ErrCorruptRecord struct {
	ReceiptID uuid.UUID
}

func (e ErrCorruptRecord) Error() string {
	return "pending receipt has no extraction payload: " + e.ReceiptID.String()
}

// Is matches any ErrCorruptRecord when the target carries a nil ID
func (e ErrCorruptRecord) Is(target error) bool {
	t, ok := target.(ErrCorruptRecord)
	if !ok {
		return false
	}
	if t.ReceiptID == uuid.Nil {
		return true
	}
	return e.ReceiptID == t.ReceiptID
}

// ErrInvalidTransition indicates the conditional status write matched no row:
// the receipt was not in any of the expected prior states (for example it was
// already finalized by a concurrent caller).
type ErrInvalidTransition struct {
	ReceiptID uuid.UUID
	To        Status
}

func (e ErrInvalidTransition) Error() string {
	return "invalid status transition to " + string(e.To) + " for receipt: " + e.ReceiptID.String()
}

// Is matches any ErrInvalidTransition when the target carries a nil ID
func (e ErrInvalidTransition) Is(target error) bool {
	t, ok := target.(ErrInvalidTransition)
	if !ok {
		return false
	}
	if t.ReceiptID == uuid.Nil {
		return true
	}
	return e.ReceiptID == t.ReceiptID
}
