// Package lifecycle drives a receipt from untrusted extraction to finalized
// canonical record. The engine owns every status transition, the atomic
// per-user counters, and the ordering guarantees around sink delivery:
// finalization commits before any sink write, and a sink failure flags the
// record instead of rolling the lifecycle back.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/receiptflow-ledger/internal/domain/auditlog"
	"github.com/receiptflow-ledger/internal/domain/receipt"
	"github.com/receiptflow-ledger/internal/domain/routing"
	"github.com/receiptflow-ledger/internal/domain/shared"
	"github.com/receiptflow-ledger/internal/domain/stats"
	"github.com/receiptflow-ledger/internal/ledgersink"
)

// ValidationError is returned when blocking validation failures prevent
// finalization. The receipt stays in (or moves to) a review state; the caller
// reports the failures, it does not retry.
type ValidationError struct {
	ReceiptID uuid.UUID
	Errors    []string
	Warnings  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("receipt %s failed validation: %s", e.ReceiptID, strings.Join(e.Errors, "; "))
}

// Engine coordinates the receipt lifecycle across persistence, validation,
// currency normalization, routing and sink delivery.
type Engine struct {
	receipts  receipt.Repository
	archive   receipt.Archive
	stats     stats.Repository
	rates     RateSource
	resolver  DestinationResolver
	validator Validator
	primary   ledgersink.Sink
	auxiliary ledgersink.Sink
	routes    routing.Repository
	auditor   *auditlog.Recorder
	logger    *slog.Logger

	baseCurrency string
	now          func() time.Time
}

// NewEngine wires the lifecycle engine. The auxiliary sink may be nil when
// the duplicate record stream is disabled.
func NewEngine(
	logger *slog.Logger,
	receipts receipt.Repository,
	archive receipt.Archive,
	statsRepo stats.Repository,
	rates RateSource,
	resolver DestinationResolver,
	validator Validator,
	primary ledgersink.Sink,
	auxiliary ledgersink.Sink,
	routes routing.Repository,
	auditor *auditlog.Recorder,
	baseCurrency string,
) *Engine {
	return &Engine{
		receipts:     receipts,
		archive:      archive,
		stats:        statsRepo,
		rates:        rates,
		resolver:     resolver,
		validator:    validator,
		primary:      primary,
		auxiliary:    auxiliary,
		routes:       routes,
		auditor:      auditor,
		logger:       logger,
		baseCurrency: strings.ToUpper(baseCurrency),
		now:          time.Now,
	}
}

// WithClock overrides the time source, used by tests
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RegisterExtraction persists an incoming extraction as a pending receipt,
// bumps the pending counter and attempts automatic finalization. A blocking
// validation failure leaves the receipt pending with its failures recorded
// and is not an error from the caller's perspective: the message is consumed,
// the receipt waits for the user.
func (e *Engine) RegisterExtraction(ctx context.Context, msg *shared.ExtractionMessage) error {
	now := e.now().UTC()
	ext := msg.Extraction
	pending := &receipt.PendingReceipt{
		ID:            msg.ReceiptID,
		UserID:        msg.UserID,
		FileName:      msg.FileName,
		Extraction:    &ext,
		Status:        receipt.StatusPending,
		CorrelationID: msg.CorrelationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.receipts.Create(ctx, pending); err != nil {
		return fmt.Errorf("failed to register pending receipt %s: %w", msg.ReceiptID, err)
	}

	if err := e.stats.IncrementPending(ctx, msg.UserID); err != nil {
		// Counter drift is recoverable; registration is not rolled back.
		e.logger.Error("Failed to increment pending counter", "user_id", msg.UserID.String(), "error", err)
		e.auditor.Log(ctx, auditlog.SeverityError, "register_extraction",
			"pending counter increment failed",
			auditlog.WithUser(msg.UserID), auditlog.WithReceipt(msg.ReceiptID),
		)
	}

	e.auditor.Log(ctx, auditlog.SeverityInfo, "register_extraction", "receipt registered for processing",
		auditlog.WithUser(msg.UserID),
		auditlog.WithReceipt(msg.ReceiptID),
		auditlog.WithContext("file_name", msg.FileName),
	)

	_, err := e.Finalize(ctx, msg.ReceiptID, receipt.ActorSystem, uuid.Nil, nil)
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		// The receipt stays pending for user review; consumption succeeded.
		e.logger.Info("Receipt held for review after validation failure",
			"receipt_id", msg.ReceiptID.String(),
			"errors", vErr.Errors,
		)
		return nil
	}
	return err
}

// Finalize merges corrections onto the stored extraction, re-validates,
// normalizes currency, routes and delivers the canonical record. The status
// transition is a conditional write, so two concurrent finalizations of the
// same receipt cannot both succeed; counters are touched only after the
// transition commits.
//
// Blocking validation failures depend on the actor: the system leaves the
// receipt pending, a user correction escalates it to admin review, an admin
// proceeds with an override.
func (e *Engine) Finalize(ctx context.Context, receiptID uuid.UUID, actor receipt.Actor, performedBy uuid.UUID, corrections *receipt.Corrections) (*receipt.CanonicalReceiptRecord, error) {
	pending, err := e.receipts.GetByID(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if pending.Status.Terminal() {
		return nil, receipt.ErrInvalidTransition{ReceiptID: receiptID, To: receipt.StatusApproved}
	}
	if pending.Extraction == nil {
		e.auditor.Log(ctx, auditlog.SeverityError, "finalize_receipt", "extraction payload missing or corrupt",
			auditlog.WithUser(pending.UserID), auditlog.WithReceipt(receiptID),
		)
		return nil, receipt.ErrCorruptRecord{ReceiptID: receiptID}
	}

	merged := pending.Extraction.Merge(corrections)
	result := e.validator.Validate(merged)

	if result.Blocking() && actor != receipt.ActorAdmin {
		return nil, e.holdForReview(ctx, pending, actor, result.Errors, result.Warnings)
	}

	amounts, normWarns := e.normalizeAmounts(ctx, merged)
	warnings := append(append([]string{}, result.Warnings...), normWarns...)

	record := e.buildRecord(ctx, pending, merged, amounts, actor, warnings, actor == receipt.ActorAdmin)

	dest := e.resolver.Resolve(ctx, pending.UserID)

	// Conditional transition is the double-finalization guard: it only
	// succeeds while the receipt is still in a reviewable state.
	err = e.receipts.TransitionStatus(ctx, receiptID,
		[]receipt.Status{receipt.StatusPending, receipt.StatusNeedsAdminReview},
		receipt.StatusApproved, result.Errors, warnings, "")
	if err != nil {
		if errors.Is(err, receipt.ErrInvalidTransition{}) {
			e.auditor.Log(ctx, auditlog.SeverityWarning, "finalize_receipt", "concurrent finalization attempt rejected",
				auditlog.WithUser(pending.UserID), auditlog.WithReceipt(receiptID),
			)
		}
		return nil, err
	}

	if err := e.stats.AddFinalized(ctx, pending.UserID, record.TotalAmount, receiptID); err != nil {
		e.logger.Error("Failed to update user totals", "receipt_id", receiptID.String(), "error", err)
		e.auditor.Log(ctx, auditlog.SeverityError, "finalize_receipt", "user totals update failed",
			auditlog.WithUser(pending.UserID), auditlog.WithReceipt(receiptID),
		)
	}
	if err := e.stats.DecrementPending(ctx, pending.UserID); err != nil {
		e.logger.Error("Failed to decrement pending counter", "receipt_id", receiptID.String(), "error", err)
	}

	e.deliver(ctx, record, dest)

	if err := e.archive.Store(ctx, record); err != nil {
		e.logger.Error("Failed to archive canonical record", "receipt_id", receiptID.String(), "error", err)
		e.auditor.Log(ctx, auditlog.SeverityError, "finalize_receipt", "canonical record archive failed",
			auditlog.WithUser(pending.UserID), auditlog.WithReceipt(receiptID),
		)
	}

	e.auditor.Log(ctx, auditlog.SeverityInfo, "finalize_receipt", "receipt finalized",
		auditlog.WithUser(pending.UserID),
		auditlog.WithReceipt(receiptID),
		auditlog.WithContext("actor", string(actor)),
		auditlog.WithContext("performed_by", performedBy.String()),
		auditlog.WithContext("total_amount", record.TotalAmount.StringFixed(2)),
		auditlog.WithContext("currency", record.Currency),
		auditlog.WithContext("validation_status", string(record.ValidationStatus)),
	)

	return record, nil
}

// holdForReview parks a receipt that failed blocking validation. A system
// actor leaves it pending for the user; a user correction that still fails
// escalates to admin review.
func (e *Engine) holdForReview(ctx context.Context, pending *receipt.PendingReceipt, actor receipt.Actor, errs, warns []string) error {
	target := receipt.StatusPending
	if actor == receipt.ActorUser {
		target = receipt.StatusNeedsAdminReview
	}

	err := e.receipts.TransitionStatus(ctx, pending.ID,
		[]receipt.Status{receipt.StatusPending, receipt.StatusNeedsAdminReview},
		target, errs, warns, "")
	if err != nil {
		return err
	}

	e.auditor.Log(ctx, auditlog.SeverityWarning, "finalize_receipt", "validation failed, receipt held for review",
		auditlog.WithUser(pending.UserID),
		auditlog.WithReceipt(pending.ID),
		auditlog.WithContext("status", string(target)),
		auditlog.WithContext("errors", errs),
	)

	return &ValidationError{ReceiptID: pending.ID, Errors: errs, Warnings: warns}
}

// buildRecord assembles the canonical record from the merged extraction and
// normalized amounts. Overridden is true when the finalization was settled
// on admin authority, regardless of the validation outcome.
func (e *Engine) buildRecord(ctx context.Context, pending *receipt.PendingReceipt, merged receipt.RawExtraction, amounts normalizedAmounts, actor receipt.Actor, warnings []string, overridden bool) *receipt.CanonicalReceiptRecord {
	record := &receipt.CanonicalReceiptRecord{
		ReceiptID:        pending.ID,
		UserID:           pending.UserID,
		TotalAmount:      amounts.TotalAmount,
		Currency:         amounts.Currency,
		OriginalCurrency: amounts.OriginalCurrency,
		OriginalAmount:   amounts.OriginalAmount,
		ExchangeRate:     amounts.ExchangeRate,
		Timestamp:        e.now().UTC(),
		Entity:           e.resolver.Entity(ctx, pending.UserID),
		ProcessedBy:      actor,
		Warnings:         warnings,
		CorrelationID:    pending.CorrelationID,
	}

	if merged.VendorName != nil {
		record.VendorName = *merged.VendorName
	}
	if merged.TransactionDate != nil {
		record.TransactionDate = *merged.TransactionDate
	}
	if merged.Category != nil {
		record.Category = strings.ToLower(strings.TrimSpace(*merged.Category))
	}
	if merged.SupplierVATNumber != nil {
		record.SupplierVATNumber = *merged.SupplierVATNumber
	}
	record.VATBreakdown = merged.VATBreakdown

	switch {
	case overridden:
		record.ValidationStatus = receipt.ValidationAdminOverride
	case len(warnings) > 0:
		record.ValidationStatus = receipt.ValidationWarning
	default:
		record.ValidationStatus = receipt.ValidationPassed
	}

	return record
}

// deliver appends the record to the resolved primary destination and, when
// configured, the auxiliary stream. Primary failure flags the record and
// raises a critical audit event; it never unwinds the finalization.
func (e *Engine) deliver(ctx context.Context, record *receipt.CanonicalReceiptRecord, dest routing.Destination) {
	if err := e.primary.AppendRow(ctx, dest, record); err != nil {
		record.HasErrors = true
		e.logger.Error("Primary sink append failed",
			"receipt_id", record.ReceiptID.String(),
			"sheet", dest.SheetIdentifier,
			"error", err,
		)
		e.auditor.Log(ctx, auditlog.SeverityCritical, "sink_append", "primary ledger append failed, record flagged",
			auditlog.WithUser(record.UserID),
			auditlog.WithReceipt(record.ReceiptID),
			auditlog.WithContext("sheet", dest.SheetIdentifier),
			auditlog.WithContext("tab", dest.Tab),
			auditlog.WithContext("error", err.Error()),
		)
	} else if dest.ConfigID != nil {
		if err := e.routes.RecordWrite(ctx, *dest.ConfigID); err != nil {
			e.logger.Warn("Failed to record sink write stats", "config_id", dest.ConfigID.String(), "error", err)
		}
	}

	if e.auxiliary == nil {
		return
	}
	if err := e.auxiliary.AppendRow(ctx, dest, record); err != nil {
		e.logger.Warn("Auxiliary sink append failed",
			"receipt_id", record.ReceiptID.String(),
			"error", err,
		)
		e.auditor.Log(ctx, auditlog.SeverityWarning, "sink_append", "auxiliary record stream append failed",
			auditlog.WithReceipt(record.ReceiptID),
		)
	}
}

// AdminReject terminally rejects a receipt. The pending counter is
// decremented exactly once, tied to the conditional transition succeeding.
func (e *Engine) AdminReject(ctx context.Context, receiptID, adminID uuid.UUID, reason string) error {
	pending, err := e.receipts.GetByID(ctx, receiptID)
	if err != nil {
		return err
	}

	err = e.receipts.TransitionStatus(ctx, receiptID,
		[]receipt.Status{receipt.StatusPending, receipt.StatusNeedsAdminReview},
		receipt.StatusRejected, nil, nil, reason)
	if err != nil {
		return err
	}

	if err := e.stats.DecrementPending(ctx, pending.UserID); err != nil {
		e.logger.Error("Failed to decrement pending counter on rejection", "receipt_id", receiptID.String(), "error", err)
	}

	e.auditor.Log(ctx, auditlog.SeverityInfo, "reject_receipt", "receipt rejected by admin",
		auditlog.WithUser(pending.UserID),
		auditlog.WithReceipt(receiptID),
		auditlog.WithContext("admin_id", adminID.String()),
		auditlog.WithContext("reason", reason),
	)

	return nil
}

// ListPendingReview returns receipts awaiting user or admin action
func (e *Engine) ListPendingReview(ctx context.Context, filter receipt.ListFilter) ([]*receipt.PendingReceipt, error) {
	if len(filter.Statuses) == 0 {
		filter.Statuses = []receipt.Status{receipt.StatusPending, receipt.StatusNeedsAdminReview}
	}
	return e.receipts.List(ctx, filter)
}
