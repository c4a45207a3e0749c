package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptflow-ledger/internal/domain/stats"
)

func TestUserStatsRepository_Get(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &UserStatsRepository{querier: mock, logger: logger}
	userID := uuid.New()

	query := regexp.QuoteMeta(`FROM user_stats`)

	t.Run("success", func(t *testing.T) {
		lastReceipt := uuid.New()
		now := time.Now().UTC()
		rows := pgxmock.NewRows([]string{"user_id", "total_receipts", "total_amount", "pending_receipts", "last_updated", "last_receipt_processed"}).
			AddRow(userID, int64(12), decimal.NewFromFloat(340.25), int64(3), now, &lastReceipt)
		mock.ExpectQuery(query).WithArgs(userID).WillReturnRows(rows)

		got, err := repo.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(12), got.TotalReceipts)
		assert.True(t, got.TotalAmount.Equal(decimal.NewFromFloat(340.25)))
		assert.Equal(t, int64(3), got.PendingReceipts)
		require.NotNil(t, got.LastReceiptProcessed)
		assert.Equal(t, lastReceipt, *got.LastReceiptProcessed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user yields zero-valued stats", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(userID).WillReturnError(pgx.ErrNoRows)

		got, err := repo.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, &stats.UserStats{UserID: userID, TotalAmount: decimal.Zero}, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(userID).WillReturnError(errors.New("db error"))

		got, err := repo.Get(ctx, userID)
		assert.Nil(t, got)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserStatsRepository_AddFinalized(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &UserStatsRepository{querier: mock, logger: logger}
	userID := uuid.New()
	receiptID := uuid.New()
	amount := decimal.NewFromFloat(42.50)

	query := regexp.QuoteMeta(`INSERT INTO user_stats`)

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(userID, amount, receiptID).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.AddFinalized(ctx, userID, amount, receiptID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(userID, amount, receiptID).
			WillReturnError(errors.New("db error"))

		err := repo.AddFinalized(ctx, userID, amount, receiptID)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserStatsRepository_IncrementPending(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &UserStatsRepository{querier: mock, logger: logger}
	userID := uuid.New()

	query := regexp.QuoteMeta(`INSERT INTO user_stats`)

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.IncrementPending(ctx, userID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(userID).
			WillReturnError(errors.New("db error"))

		err := repo.IncrementPending(ctx, userID)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserStatsRepository_DecrementPending(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &UserStatsRepository{querier: mock, logger: logger}
	userID := uuid.New()

	query := regexp.QuoteMeta(`UPDATE user_stats`)

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.DecrementPending(ctx, userID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not an error", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.DecrementPending(ctx, userID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(userID).
			WillReturnError(errors.New("db error"))

		err := repo.DecrementPending(ctx, userID)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
