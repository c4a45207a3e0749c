package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/receiptflow-ledger/internal/fxrate"
	"github.com/receiptflow-ledger/internal/platform/persistence"
)

// FxCacheRepository implements the fxrate.Store interface for PostgreSQL.
// Writes are idempotent upserts keyed by (from, to), which makes concurrent
// cache fills for the same pair safe.
type FxCacheRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewFxCacheRepository creates a new PostgreSQL fx cache repository
func NewFxCacheRepository(logger *slog.Logger, db *persistence.PostgresDB) fxrate.Store {
	return &FxCacheRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Get returns the cached entry for a currency pair, expired or not, or nil on
// a miss. Expiry handling belongs to the caller so a stale row can simply be
// overwritten rather than evicted.
func (r *FxCacheRepository) Get(ctx context.Context, from, to string) (*fxrate.CacheEntry, error) {
	query := `
		SELECT from_currency, to_currency, rate, cached_at, expires_at
		FROM fx_rate_cache
		WHERE from_currency = $1 AND to_currency = $2
	`

	var entry fxrate.CacheEntry
	err := r.querier.QueryRow(ctx, query, from, to).Scan(
		&entry.FromCurrency,
		&entry.ToCurrency,
		&entry.Rate,
		&entry.CachedAt,
		&entry.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get cached fx rate", "from", from, "to", to, "error", err)
		return nil, fmt.Errorf("failed to get cached fx rate: %w", err)
	}

	return &entry, nil
}

// Put upserts the rate for a currency pair
func (r *FxCacheRepository) Put(ctx context.Context, from, to string, rate decimal.Decimal, expiresAt time.Time) error {
	query := `
		INSERT INTO fx_rate_cache (from_currency, to_currency, rate, cached_at, expires_at)
		VALUES ($1, $2, $3, NOW(), $4)
		ON CONFLICT (from_currency, to_currency) DO UPDATE
		SET rate = EXCLUDED.rate, cached_at = NOW(), expires_at = EXCLUDED.expires_at
	`

	if _, err := r.querier.Exec(ctx, query, from, to, rate, expiresAt); err != nil {
		r.logger.Error("Failed to cache fx rate", "from", from, "to", to, "error", err)
		return fmt.Errorf("failed to cache fx rate: %w", err)
	}

	return nil
}
