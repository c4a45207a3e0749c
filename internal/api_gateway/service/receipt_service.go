package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/receiptflow-ledger/internal/domain/receipt"
	"github.com/receiptflow-ledger/internal/domain/shared"
	"github.com/receiptflow-ledger/internal/domain/stats"
	"github.com/receiptflow-ledger/internal/platform/messaging/producers"
)

// ReceiptServiceImpl implements the ReceiptService interface
type ReceiptServiceImpl struct {
	receipts  receipt.Repository
	archive   receipt.Archive
	statsRepo stats.Repository
	engine    LifecycleEngine
	producer  producers.MessagePublisher
	logger    *slog.Logger
}

// NewReceiptService creates a new receipt service
func NewReceiptService(
	logger *slog.Logger,
	receipts receipt.Repository,
	archive receipt.Archive,
	statsRepo stats.Repository,
	engine LifecycleEngine,
	producer producers.MessagePublisher,
) ReceiptService {
	return &ReceiptServiceImpl{
		receipts:  receipts,
		archive:   archive,
		statsRepo: statsRepo,
		engine:    engine,
		producer:  producer,
		logger:    logger,
	}
}

// SubmitExtraction queues an extraction for asynchronous processing. The
// receipt ID is assigned here so the caller can poll before the processor
// has registered the receipt.
func (s *ReceiptServiceImpl) SubmitExtraction(ctx context.Context, userID uuid.UUID, fileName string, ext receipt.RawExtraction, correlationID string) (uuid.UUID, error) {
	msg := &shared.ExtractionMessage{
		ReceiptID:     uuid.New(),
		UserID:        userID,
		FileName:      fileName,
		Extraction:    ext,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}

	if err := s.producer.Publish(ctx, msg.ReceiptID.String(), msg); err != nil {
		s.logger.Error("Failed to publish extraction message",
			"user_id", userID.String(),
			"file_name", fileName,
			"error", err,
		)
		return uuid.Nil, err
	}

	s.logger.Info("Extraction queued for processing",
		"receipt_id", msg.ReceiptID.String(),
		"user_id", userID.String(),
		"file_name", fileName,
	)

	return msg.ReceiptID, nil
}

// FinalizeReceipt applies user corrections and drives finalization
func (s *ReceiptServiceImpl) FinalizeReceipt(ctx context.Context, receiptID, userID uuid.UUID, corrections *receipt.Corrections) (*receipt.CanonicalReceiptRecord, error) {
	return s.engine.Finalize(ctx, receiptID, receipt.ActorUser, userID, corrections)
}

// ApproveReceipt finalizes on admin authority, overriding blocking failures
func (s *ReceiptServiceImpl) ApproveReceipt(ctx context.Context, receiptID, adminID uuid.UUID, corrections *receipt.Corrections) (*receipt.CanonicalReceiptRecord, error) {
	return s.engine.Finalize(ctx, receiptID, receipt.ActorAdmin, adminID, corrections)
}

// RejectReceipt terminally rejects a receipt
func (s *ReceiptServiceImpl) RejectReceipt(ctx context.Context, receiptID, adminID uuid.UUID, reason string) error {
	return s.engine.AdminReject(ctx, receiptID, adminID, reason)
}

// GetReceipt retrieves a pending receipt. Returns nil if not found.
func (s *ReceiptServiceImpl) GetReceipt(ctx context.Context, receiptID uuid.UUID) (*receipt.PendingReceipt, error) {
	rec, err := s.receipts.GetByID(ctx, receiptID)
	if err != nil {
		if errors.Is(err, receipt.ErrReceiptNotFound{}) {
			s.logger.Info("Receipt not found", "receipt_id", receiptID.String())
			return nil, nil
		}
		s.logger.Error("Failed to get receipt", "receipt_id", receiptID.String(), "error", err)
		return nil, err
	}
	return rec, nil
}

// GetRecord retrieves the finalized canonical record. Returns nil if not found.
func (s *ReceiptServiceImpl) GetRecord(ctx context.Context, receiptID uuid.UUID) (*receipt.CanonicalReceiptRecord, error) {
	record, err := s.archive.GetByReceiptID(ctx, receiptID)
	if err != nil {
		if errors.Is(err, receipt.ErrRecordNotFound{}) {
			s.logger.Info("Canonical record not found", "receipt_id", receiptID.String())
			return nil, nil
		}
		s.logger.Error("Failed to get canonical record", "receipt_id", receiptID.String(), "error", err)
		return nil, err
	}
	return record, nil
}

// ListPending lists receipts awaiting review
func (s *ReceiptServiceImpl) ListPending(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]*receipt.PendingReceipt, error) {
	return s.engine.ListPendingReview(ctx, receipt.ListFilter{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
}

// GetUserStats retrieves the per-user aggregate counters
func (s *ReceiptServiceImpl) GetUserStats(ctx context.Context, userID uuid.UUID) (*stats.UserStats, error) {
	return s.statsRepo.Get(ctx, userID)
}

// GetUserRecords retrieves finalized records for a user in a time range
func (s *ReceiptServiceImpl) GetUserRecords(ctx context.Context, userID uuid.UUID, from, to time.Time, limit, offset int) ([]*receipt.CanonicalReceiptRecord, error) {
	return s.archive.GetByUser(ctx, userID, from, to, limit, offset)
}
