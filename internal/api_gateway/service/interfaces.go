package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/receiptflow-ledger/internal/domain/auditlog"
	"github.com/receiptflow-ledger/internal/domain/receipt"
	"github.com/receiptflow-ledger/internal/domain/routing"
	"github.com/receiptflow-ledger/internal/domain/stats"
)

// LifecycleEngine is the slice of the lifecycle engine the gateway depends on
type LifecycleEngine interface {
	Finalize(ctx context.Context, receiptID uuid.UUID, actor receipt.Actor, performedBy uuid.UUID, corrections *receipt.Corrections) (*receipt.CanonicalReceiptRecord, error)
	AdminReject(ctx context.Context, receiptID, adminID uuid.UUID, reason string) error
	ListPendingReview(ctx context.Context, filter receipt.ListFilter) ([]*receipt.PendingReceipt, error)
}

// ReceiptService defines the interface for receipt intake and lifecycle operations
type ReceiptService interface {
	// SubmitExtraction accepts an untrusted extraction and queues it for
	// asynchronous processing; returns the receipt ID assigned at intake
	SubmitExtraction(ctx context.Context, userID uuid.UUID, fileName string, ext receipt.RawExtraction, correlationID string) (uuid.UUID, error)

	// FinalizeReceipt applies user corrections and finalizes the receipt.
	// Returns *lifecycle.ValidationError when blocking failures remain.
	FinalizeReceipt(ctx context.Context, receiptID, userID uuid.UUID, corrections *receipt.Corrections) (*receipt.CanonicalReceiptRecord, error)

	// ApproveReceipt finalizes on an admin's authority, overriding blocking failures
	ApproveReceipt(ctx context.Context, receiptID, adminID uuid.UUID, corrections *receipt.Corrections) (*receipt.CanonicalReceiptRecord, error)

	// RejectReceipt terminally rejects a receipt with a reason
	RejectReceipt(ctx context.Context, receiptID, adminID uuid.UUID, reason string) error

	// GetReceipt retrieves a pending receipt by ID
	GetReceipt(ctx context.Context, receiptID uuid.UUID) (*receipt.PendingReceipt, error)

	// GetRecord retrieves the finalized canonical record for a receipt
	GetRecord(ctx context.Context, receiptID uuid.UUID) (*receipt.CanonicalReceiptRecord, error)

	// ListPending lists receipts awaiting review, optionally scoped to a user
	ListPending(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]*receipt.PendingReceipt, error)

	// GetUserStats retrieves the per-user aggregate counters
	GetUserStats(ctx context.Context, userID uuid.UUID) (*stats.UserStats, error)

	// GetUserRecords retrieves finalized records for a user in a time range
	GetUserRecords(ctx context.Context, userID uuid.UUID, from, to time.Time, limit, offset int) ([]*receipt.CanonicalReceiptRecord, error)
}

// SheetConfigService defines the interface for destination ledger configuration
type SheetConfigService interface {
	CreateConfig(ctx context.Context, cfg *routing.SheetConfig) error
	UpdateConfig(ctx context.Context, cfg *routing.SheetConfig) error
	GetConfig(ctx context.Context, id uuid.UUID) (*routing.SheetConfig, error)
	ListConfigs(ctx context.Context) ([]*routing.SheetConfig, error)

	// SetDefault promotes one config to system default, demoting all others
	SetDefault(ctx context.Context, id uuid.UUID) error

	// SetStatus activates or deactivates a config; never a hard delete
	SetStatus(ctx context.Context, id uuid.UUID, status routing.ConfigStatus) error

	AssignToUser(ctx context.Context, id, userID uuid.UUID) error
	AssignToEntity(ctx context.Context, id uuid.UUID, entityID string) error
}

// LogService defines the interface for querying the audit log
type LogService interface {
	QueryLogs(ctx context.Context, filter auditlog.QueryFilter) ([]*auditlog.Entry, error)
}
