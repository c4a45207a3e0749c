// Package fxrate provides currency-pair conversion rates memoized with a
// time-to-live. A provider failure never propagates: the service signals
// "no conversion available" and leaves the caller to continue unconverted,
// so currency conversion is never a hard dependency for finalizing a receipt.
package fxrate

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// CacheEntry is a memoized conversion rate for a currency pair
type CacheEntry struct {
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	Rate         decimal.Decimal `json:"rate"`
	CachedAt     time.Time       `json:"cached_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

// Expired reports whether the entry is past its time-to-live
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Store persists cache entries. Get returns nil on a miss; Put must be an
// idempotent upsert keyed by the currency pair.
type Store interface {
	Get(ctx context.Context, from, to string) (*CacheEntry, error)
	Put(ctx context.Context, from, to string, rate decimal.Decimal, expiresAt time.Time) error
}

// Provider fetches a live conversion rate from an external source
type Provider interface {
	FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Service resolves conversion rates through the cache, falling back to the
// provider on a miss.
type Service struct {
	store    Store
	provider Provider
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a rate service with the given cache TTL
func NewService(store Store, provider Provider, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		provider: provider,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source, used by tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetRate returns the conversion rate for a currency pair, or nil when no
// conversion is available. Same-currency lookups short-circuit to 1.0 with no
// cache or provider traffic. Provider failures and timeouts degrade to nil
// rather than an error.
func (s *Service) GetRate(ctx context.Context, from, to string) *decimal.Decimal {
	if from == to {
		one := decimal.NewFromInt(1)
		return &one
	}

	now := s.now()

	entry, err := s.store.Get(ctx, from, to)
	if err != nil {
		// A broken cache read is not fatal; the provider can still answer.
		s.logger.Warn("Fx cache read failed", "from", from, "to", to, "error", err)
	}
	if entry != nil && !entry.Expired(now) {
		rate := entry.Rate
		return &rate
	}

	rate, err := s.provider.FetchRate(ctx, from, to)
	if err != nil {
		s.logger.Warn("Fx rate provider unavailable, treating amount as unconverted",
			"from", from,
			"to", to,
			"error", err,
		)
		return nil
	}

	if err := s.store.Put(ctx, from, to, rate, now.Add(s.ttl)); err != nil {
		// The rate is still usable even if memoization failed.
		s.logger.Warn("Failed to cache fx rate", "from", from, "to", to, "error", err)
	}

	return &rate
}
