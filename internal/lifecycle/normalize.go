package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/receiptflow-ledger/internal/domain/receipt"
)

// normalizedAmounts is the monetary slice of a canonical record after
// currency normalization
type normalizedAmounts struct {
	TotalAmount      decimal.Decimal
	Currency         string
	OriginalAmount   decimal.Decimal
	OriginalCurrency string
	ExchangeRate     decimal.Decimal
}

var one = decimal.NewFromInt(1)

// normalizeAmounts converts the merged extraction into the deployment base
// currency. The extracted total is denominated in the extraction's currency
// (the base currency when absent). Conversion degrades gracefully: when no
// rate is available the amount is recorded unconverted with rate 1.0 and a
// warning, never an error.
//
// Explicit original-amount and exchange-rate fields on the merged extraction
// (set by the extractor or by a correction) override the computed values, and
// the amount invariants are re-enforced afterwards: rate 1.0 forces
// originalAmount == totalAmount, and an out-of-tolerance total is recomputed
// from originalAmount * rate.
func (e *Engine) normalizeAmounts(ctx context.Context, merged receipt.RawExtraction) (normalizedAmounts, []string) {
	var warns []string

	currency := e.baseCurrency
	if merged.Currency != nil && strings.TrimSpace(*merged.Currency) != "" {
		currency = strings.ToUpper(strings.TrimSpace(*merged.Currency))
	}

	n := normalizedAmounts{
		TotalAmount:      merged.TotalAmount,
		Currency:         currency,
		OriginalAmount:   merged.TotalAmount,
		OriginalCurrency: currency,
		ExchangeRate:     one,
	}

	if currency != e.baseCurrency {
		if rate := e.rates.GetRate(ctx, currency, e.baseCurrency); rate != nil {
			n.ExchangeRate = *rate
			n.TotalAmount = n.OriginalAmount.Mul(*rate).Round(2)
			n.Currency = e.baseCurrency
		} else {
			warns = append(warns, fmt.Sprintf("no conversion rate available for %s, amount recorded unconverted", currency))
		}
	}

	if merged.OriginalAmount != nil {
		n.OriginalAmount = *merged.OriginalAmount
	}
	if merged.ExchangeRate != nil {
		n.ExchangeRate = *merged.ExchangeRate
	}

	if n.ExchangeRate.Equal(one) {
		n.OriginalAmount = n.TotalAmount
		return n, warns
	}

	diff := n.OriginalAmount.Mul(n.ExchangeRate).Sub(n.TotalAmount).Abs()
	if diff.GreaterThan(receipt.RoundingTolerance) {
		recomputed := n.OriginalAmount.Mul(n.ExchangeRate).Round(2)
		warns = append(warns, fmt.Sprintf(
			"total amount %s did not match original %s at rate %s, recomputed as %s",
			n.TotalAmount.StringFixed(2), n.OriginalAmount.StringFixed(2), n.ExchangeRate, recomputed.StringFixed(2)))
		n.TotalAmount = recomputed
	}

	return n, warns
}
