// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the receipt ledger system.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/receiptflow-ledger/internal/domain/receipt"
	"github.com/receiptflow-ledger/internal/platform/persistence"
)

// PendingReceiptRepository implements the receipt.Repository interface for PostgreSQL
type PendingReceiptRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewPendingReceiptRepository creates a new PostgreSQL pending receipt repository
func NewPendingReceiptRepository(logger *slog.Logger, db *persistence.PostgresDB) receipt.Repository {
	return &PendingReceiptRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls.
func (r *PendingReceiptRepository) WithTx(tx pgx.Tx) receipt.Repository {
	return &PendingReceiptRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new pending receipt. The extraction payload is kept as a
// JSONB document since any field beyond the total may be absent.
func (r *PendingReceiptRepository) Create(ctx context.Context, rec *receipt.PendingReceipt) error {
	query := `
		INSERT INTO pending_receipts
			(id, user_id, file_name, extraction, status, validation_errors, validation_warnings, correlation_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	extraction, err := marshalExtraction(rec.Extraction)
	if err != nil {
		return err
	}

	_, err = r.querier.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.FileName,
		extraction,
		rec.Status,
		rec.ValidationErrors,
		rec.ValidationWarnings,
		rec.CorrelationID,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create pending receipt", "id", rec.ID.String(), "error", err)
		return fmt.Errorf("failed to create pending receipt: %w", err)
	}

	return nil
}

// GetByID retrieves a pending receipt by its ID
func (r *PendingReceiptRepository) GetByID(ctx context.Context, id uuid.UUID) (*receipt.PendingReceipt, error) {
	query := `
		SELECT id, user_id, file_name, extraction, status, validation_errors, validation_warnings, rejection_reason, correlation_id, created_at, updated_at
		FROM pending_receipts
		WHERE id = $1
	`

	var rec receipt.PendingReceipt
	var extraction []byte
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.FileName,
		&extraction,
		&rec.Status,
		&rec.ValidationErrors,
		&rec.ValidationWarnings,
		&rec.RejectionReason,
		&rec.CorrelationID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, receipt.ErrReceiptNotFound{ReceiptID: id}
		}
		r.logger.Error("Failed to get pending receipt", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get pending receipt: %w", err)
	}

	if len(extraction) > 0 {
		var ext receipt.RawExtraction
		if err := json.Unmarshal(extraction, &ext); err != nil {
			r.logger.Error("Failed to decode extraction payload", "id", id.String(), "error", err)
			// A payload that no longer decodes is treated the same as a
			// missing one: the receipt record is corrupt.
			rec.Extraction = nil
		} else {
			rec.Extraction = &ext
		}
	}

	return &rec, nil
}

// List retrieves pending receipts matching the filter, newest first
func (r *PendingReceiptRepository) List(ctx context.Context, filter receipt.ListFilter) ([]*receipt.PendingReceipt, error) {
	query := `
		SELECT id, user_id, file_name, extraction, status, validation_errors, validation_warnings, rejection_reason, correlation_id, created_at, updated_at
		FROM pending_receipts
		WHERE ($1::uuid IS NULL OR user_id = $1)
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	statuses := make([]string, 0, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses = append(statuses, string(s))
	}

	rows, err := r.querier.Query(ctx, query, filter.UserID, statuses, limit, filter.Offset)
	if err != nil {
		r.logger.Error("Failed to list pending receipts", "error", err)
		return nil, fmt.Errorf("failed to list pending receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*receipt.PendingReceipt
	for rows.Next() {
		var rec receipt.PendingReceipt
		var extraction []byte
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.FileName,
			&extraction,
			&rec.Status,
			&rec.ValidationErrors,
			&rec.ValidationWarnings,
			&rec.RejectionReason,
			&rec.CorrelationID,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending receipt: %w", err)
		}
		if len(extraction) > 0 {
			var ext receipt.RawExtraction
			if err := json.Unmarshal(extraction, &ext); err == nil {
				rec.Extraction = &ext
			}
		}
		receipts = append(receipts, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending receipts: %w", err)
	}

	return receipts, nil
}

// TransitionStatus moves a receipt to a new status with a conditional write:
// the UPDATE only matches while the receipt is in one of the expected prior
// states, which guards against double-finalization under concurrent callers.
func (r *PendingReceiptRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from []receipt.Status, to receipt.Status, errs, warns []string, reason string) error {
	query := `
		UPDATE pending_receipts
		SET status = $1, validation_errors = $2, validation_warnings = $3, rejection_reason = $4, updated_at = NOW()
		WHERE id = $5 AND status = ANY($6)
	`

	expected := make([]string, 0, len(from))
	for _, s := range from {
		expected = append(expected, string(s))
	}

	result, err := r.querier.Exec(ctx, query, to, errs, warns, reason, id, expected)
	if err != nil {
		r.logger.Error("Failed to transition pending receipt", "id", id.String(), "to", string(to), "error", err)
		return fmt.Errorf("failed to transition pending receipt: %w", err)
	}

	if result.RowsAffected() == 0 {
		return receipt.ErrInvalidTransition{ReceiptID: id, To: to}
	}

	return nil
}

func marshalExtraction(ext *receipt.RawExtraction) ([]byte, error) {
	if ext == nil {
		return nil, nil
	}
	payload, err := json.Marshal(ext)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extraction payload: %w", err)
	}
	return payload, nil
}
