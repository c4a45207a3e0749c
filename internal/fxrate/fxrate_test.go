package fxrate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, from, to string) (*CacheEntry, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CacheEntry), args.Error(1)
}

func (m *MockStore) Put(ctx context.Context, from, to string, rate decimal.Decimal, expiresAt time.Time) error {
	args := m.Called(ctx, from, to, rate, expiresAt)
	return args.Error(0)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

const testTTL = 24 * time.Hour

func newTestService() (*Service, *MockStore, *MockProvider) {
	store := new(MockStore)
	provider := new(MockProvider)
	svc := NewService(store, provider, testTTL, newTestLogger()).
		WithClock(func() time.Time { return testNow })
	return svc, store, provider
}

func TestService_GetRate(t *testing.T) {
	ctx := context.Background()

	t.Run("same currency short-circuits to one", func(t *testing.T) {
		svc, store, provider := newTestService()

		rate := svc.GetRate(ctx, "GBP", "GBP")

		require.NotNil(t, rate)
		assert.True(t, rate.Equal(decimal.NewFromInt(1)))
		store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
		provider.AssertNotCalled(t, "FetchRate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fresh cache entry is served without provider traffic", func(t *testing.T) {
		svc, store, provider := newTestService()
		cached := decimal.RequireFromString("0.85")

		store.On("Get", ctx, "USD", "GBP").Return(&CacheEntry{
			FromCurrency: "USD",
			ToCurrency:   "GBP",
			Rate:         cached,
			CachedAt:     testNow.Add(-time.Hour),
			ExpiresAt:    testNow.Add(23 * time.Hour),
		}, nil)

		rate := svc.GetRate(ctx, "USD", "GBP")

		require.NotNil(t, rate)
		assert.True(t, rate.Equal(cached))
		provider.AssertNotCalled(t, "FetchRate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("expired entry refetches and re-caches", func(t *testing.T) {
		svc, store, provider := newTestService()
		fresh := decimal.RequireFromString("0.87")

		store.On("Get", ctx, "USD", "GBP").Return(&CacheEntry{
			Rate:      decimal.RequireFromString("0.80"),
			ExpiresAt: testNow.Add(-time.Minute),
		}, nil)
		provider.On("FetchRate", ctx, "USD", "GBP").Return(fresh, nil)
		store.On("Put", ctx, "USD", "GBP", fresh, testNow.Add(testTTL)).Return(nil)

		rate := svc.GetRate(ctx, "USD", "GBP")

		require.NotNil(t, rate)
		assert.True(t, rate.Equal(fresh))
		store.AssertExpectations(t)
		provider.AssertExpectations(t)
	})

	t.Run("cache miss goes to the provider", func(t *testing.T) {
		svc, store, provider := newTestService()
		fetched := decimal.RequireFromString("172.5")

		store.On("Get", ctx, "GBP", "JPY").Return(nil, nil)
		provider.On("FetchRate", ctx, "GBP", "JPY").Return(fetched, nil)
		store.On("Put", ctx, "GBP", "JPY", fetched, testNow.Add(testTTL)).Return(nil)

		rate := svc.GetRate(ctx, "GBP", "JPY")

		require.NotNil(t, rate)
		assert.True(t, rate.Equal(fetched))
	})

	t.Run("provider failure degrades to nil", func(t *testing.T) {
		svc, store, provider := newTestService()

		store.On("Get", ctx, "USD", "GBP").Return(nil, nil)
		provider.On("FetchRate", ctx, "USD", "GBP").Return(decimal.Zero, errors.New("503 service unavailable"))

		rate := svc.GetRate(ctx, "USD", "GBP")

		assert.Nil(t, rate)
		store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("broken cache read still resolves through the provider", func(t *testing.T) {
		svc, store, provider := newTestService()
		fetched := decimal.RequireFromString("0.85")

		store.On("Get", ctx, "USD", "GBP").Return(nil, errors.New("connection refused"))
		provider.On("FetchRate", ctx, "USD", "GBP").Return(fetched, nil)
		store.On("Put", ctx, "USD", "GBP", fetched, testNow.Add(testTTL)).Return(nil)

		rate := svc.GetRate(ctx, "USD", "GBP")

		require.NotNil(t, rate)
		assert.True(t, rate.Equal(fetched))
	})

	t.Run("failed memoization does not discard the fetched rate", func(t *testing.T) {
		svc, store, provider := newTestService()
		fetched := decimal.RequireFromString("0.85")

		store.On("Get", ctx, "USD", "GBP").Return(nil, nil)
		provider.On("FetchRate", ctx, "USD", "GBP").Return(fetched, nil)
		store.On("Put", ctx, "USD", "GBP", fetched, testNow.Add(testTTL)).Return(errors.New("disk full"))

		rate := svc.GetRate(ctx, "USD", "GBP")

		require.NotNil(t, rate)
		assert.True(t, rate.Equal(fetched))
	})
}

func TestCacheEntry_Expired(t *testing.T) {
	entry := &CacheEntry{ExpiresAt: testNow}

	assert.False(t, entry.Expired(testNow.Add(-time.Second)))
	assert.True(t, entry.Expired(testNow), "expiry boundary counts as expired")
	assert.True(t, entry.Expired(testNow.Add(time.Second)))
}
