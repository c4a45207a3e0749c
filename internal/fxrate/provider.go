package fxrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/receiptflow-ledger/internal/config"
)

// HTTPProvider fetches conversion rates from an exchange-rate HTTP API.
// Every call is bounded by the client timeout; a timeout is treated the same
// as any other provider failure by the service layer.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPProvider creates a provider against the configured rate API
func NewHTTPProvider(logger *slog.Logger, cfg *config.FxRateConfig) *HTTPProvider {
	return &HTTPProvider{
		baseURL: cfg.ProviderURL,
		client:  &http.Client{Timeout: cfg.ProviderTimeout},
		logger:  logger,
	}
}

// rateResponse matches the provider's /latest payload shape
type rateResponse struct {
	Success bool               `json:"success"`
	Base    string             `json:"base"`
	Rates   map[string]float64 `json:"rates"`
}

// FetchRate requests the rate for a single currency pair
func (p *HTTPProvider) FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/latest?base=%s&symbols=%s", p.baseURL, url.QueryEscape(from), url.QueryEscape(to))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build rate request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate provider returned status %d", resp.StatusCode)
	}

	var payload rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode rate response: %w", err)
	}

	rate, ok := payload.Rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("rate provider response missing %s->%s", from, to)
	}
	if rate <= 0 {
		return decimal.Zero, fmt.Errorf("rate provider returned non-positive rate %f for %s->%s", rate, from, to)
	}

	p.logger.Debug("Fetched fx rate", "from", from, "to", to, "rate", rate)
	return decimal.NewFromFloat(rate), nil
}
