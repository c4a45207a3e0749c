package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/receiptflow-ledger/internal/domain/stats"
	"github.com/receiptflow-ledger/internal/platform/persistence"
)

// UserStatsRepository implements the stats.Repository interface for PostgreSQL.
// Every counter mutation is a single upsert statement so concurrent
// finalizations for the same user never lose updates; there is deliberately
// no read-then-write path anywhere in this repository.
type UserStatsRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewUserStatsRepository creates a new PostgreSQL user stats repository
func NewUserStatsRepository(logger *slog.Logger, db *persistence.PostgresDB) stats.Repository {
	return &UserStatsRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Get retrieves the aggregates for a user. A user with no activity yet gets
// zero-valued stats rather than an error.
func (r *UserStatsRepository) Get(ctx context.Context, userID uuid.UUID) (*stats.UserStats, error) {
	query := `
		SELECT user_id, total_receipts, total_amount, pending_receipts, last_updated, last_receipt_processed
		FROM user_stats
		WHERE user_id = $1
	`

	var s stats.UserStats
	err := r.querier.QueryRow(ctx, query, userID).Scan(
		&s.UserID,
		&s.TotalReceipts,
		&s.TotalAmount,
		&s.PendingReceipts,
		&s.LastUpdated,
		&s.LastReceiptProcessed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &stats.UserStats{UserID: userID, TotalAmount: decimal.Zero}, nil
		}
		r.logger.Error("Failed to get user stats", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	return &s, nil
}

// AddFinalized increments the receipt count and total amount atomically
func (r *UserStatsRepository) AddFinalized(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, receiptID uuid.UUID) error {
	query := `
		INSERT INTO user_stats (user_id, total_receipts, total_amount, pending_receipts, last_updated, last_receipt_processed)
		VALUES ($1, 1, $2, 0, NOW(), $3)
		ON CONFLICT (user_id) DO UPDATE
		SET total_receipts = user_stats.total_receipts + 1,
		    total_amount = user_stats.total_amount + EXCLUDED.total_amount,
		    last_updated = NOW(),
		    last_receipt_processed = EXCLUDED.last_receipt_processed
	`

	if _, err := r.querier.Exec(ctx, query, userID, amount, receiptID); err != nil {
		r.logger.Error("Failed to add finalized receipt to user stats", "user_id", userID.String(), "error", err)
		return fmt.Errorf("failed to add finalized receipt to user stats: %w", err)
	}

	return nil
}

// IncrementPending adds one to the pending counter atomically
func (r *UserStatsRepository) IncrementPending(ctx context.Context, userID uuid.UUID) error {
	query := `
		INSERT INTO user_stats (user_id, total_receipts, total_amount, pending_receipts, last_updated)
		VALUES ($1, 0, 0, 1, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET pending_receipts = user_stats.pending_receipts + 1,
		    last_updated = NOW()
	`

	if _, err := r.querier.Exec(ctx, query, userID); err != nil {
		r.logger.Error("Failed to increment pending counter", "user_id", userID.String(), "error", err)
		return fmt.Errorf("failed to increment pending counter: %w", err)
	}

	return nil
}

// DecrementPending removes one from the pending counter atomically. The
// counter is clamped at zero so an out-of-band repair can never drive it
// negative.
func (r *UserStatsRepository) DecrementPending(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE user_stats
		SET pending_receipts = GREATEST(pending_receipts - 1, 0),
		    last_updated = NOW()
		WHERE user_id = $1
	`

	if _, err := r.querier.Exec(ctx, query, userID); err != nil {
		r.logger.Error("Failed to decrement pending counter", "user_id", userID.String(), "error", err)
		return fmt.Errorf("failed to decrement pending counter: %w", err)
	}

	return nil
}
