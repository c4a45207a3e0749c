// Package validation implements stateless rule evaluation over a candidate
// receipt record. Evaluation never mutates its input and yields the same
// result for the same input, which keeps re-validation after a correction
// idempotent.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/receiptflow-ledger/internal/domain/receipt"
)

// Status is the overall outcome of a validation run
type Status string

const (
	StatusPassed  Status = "passed"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
)

// Result carries the evaluation outcome. Failed is the only status that
// pauses the pipeline; warnings are recorded but non-blocking.
type Result struct {
	Status   Status
	Errors   []string
	Warnings []string
}

// Blocking reports whether the result prevents auto-finalization
func (r Result) Blocking() bool {
	return r.Status == StatusFailed
}

// vatBreakdownTolerance is the absolute tolerance on subtotal + VAT vs total
var vatBreakdownTolerance = decimal.NewFromFloat(0.01)

// vatRateTolerance is the proportional tolerance (1%) on the implied VAT rate
var vatRateTolerance = decimal.NewFromFloat(0.01)

// defaultVATPatterns maps country prefixes to their VAT number formats.
// A mismatch downgrades to a warning since the data may still be useful.
var defaultVATPatterns = map[string]*regexp.Regexp{
	"GB": regexp.MustCompile(`^GB(\d{9}|\d{12}|(GD|HA)\d{3})$`),
	"DE": regexp.MustCompile(`^DE\d{9}$`),
	"FR": regexp.MustCompile(`^FR[A-Z0-9]{2}\d{9}$`),
	"ES": regexp.MustCompile(`^ES[A-Z0-9]\d{7}[A-Z0-9]$`),
	"IT": regexp.MustCompile(`^IT\d{11}$`),
	"NL": regexp.MustCompile(`^NL\d{9}B\d{2}$`),
	"IE": regexp.MustCompile(`^IE(\d{7}[A-W][A-I]?|\d[A-Z+*]\d{5}[A-W])$`),
	"PT": regexp.MustCompile(`^PT\d{9}$`),
	"BE": regexp.MustCompile(`^BE[01]\d{9}$`),
}

// Engine evaluates validation rules using a configured category registry and
// per-country VAT number formats. An empty registry disables the membership
// check (any non-empty category passes).
type Engine struct {
	categories  map[string]struct{}
	vatPatterns map[string]*regexp.Regexp
	now         func() time.Time
}

// Option customizes engine construction
type Option func(*Engine)

// WithClock overrides the time source, used by tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithVATPatterns replaces the per-country VAT number format table
func WithVATPatterns(patterns map[string]*regexp.Regexp) Option {
	return func(e *Engine) { e.vatPatterns = patterns }
}

// NewEngine creates a validation engine with the given category registry.
// An empty slice disables category membership checks.
func NewEngine(categories []string, opts ...Option) *Engine {
	registry := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		registry[strings.ToLower(c)] = struct{}{}
	}

	e := &Engine{
		categories:  registry,
		vatPatterns: defaultVATPatterns,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate evaluates all rules over the merged extraction and returns the
// combined result. It has no side effects.
func (e *Engine) Validate(ext receipt.RawExtraction) Result {
	var errs, warns []string

	if !ext.TotalAmount.IsPositive() {
		errs = append(errs, fmt.Sprintf("total amount must be positive, got %s", ext.TotalAmount))
	}

	if ext.TransactionDate == nil {
		errs = append(errs, "transaction date is missing")
	} else if ext.TransactionDate.After(endOfDay(e.now())) {
		errs = append(errs, fmt.Sprintf("transaction date %s is in the future", ext.TransactionDate.Format("2006-01-02")))
	}

	if ext.Category == nil || strings.TrimSpace(*ext.Category) == "" {
		errs = append(errs, "category is missing")
	} else if len(e.categories) > 0 {
		if _, ok := e.categories[strings.ToLower(strings.TrimSpace(*ext.Category))]; !ok {
			errs = append(errs, fmt.Sprintf("category %q is not in the registry", *ext.Category))
		}
	}

	if ext.VendorName == nil || strings.TrimSpace(*ext.VendorName) == "" {
		errs = append(errs, "vendor name is missing")
	}

	if ext.SupplierVATNumber != nil {
		if warn := e.checkVATNumber(*ext.SupplierVATNumber); warn != "" {
			warns = append(warns, warn)
		}
	}

	if ext.VATBreakdown != nil {
		warns = append(warns, checkVATBreakdown(ext.VATBreakdown, ext.TotalAmount)...)
	}

	status := StatusPassed
	if len(warns) > 0 {
		status = StatusWarning
	}
	if len(errs) > 0 {
		status = StatusFailed
	}

	return Result{Status: status, Errors: errs, Warnings: warns}
}

// checkVATNumber verifies the VAT number format for its declared country
// prefix. Unknown prefixes and format mismatches yield a warning.
func (e *Engine) checkVATNumber(vat string) string {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(vat), " ", ""))
	if len(normalized) < 3 {
		return fmt.Sprintf("supplier VAT number %q is too short to be valid", vat)
	}

	country := normalized[:2]
	pattern, ok := e.vatPatterns[country]
	if !ok {
		return fmt.Sprintf("no VAT format known for country prefix %q", country)
	}
	if !pattern.MatchString(normalized) {
		return fmt.Sprintf("supplier VAT number %q does not match the %s format", vat, country)
	}
	return ""
}

// checkVATBreakdown verifies the breakdown arithmetic: subtotal plus VAT must
// reach the total within an absolute tolerance, and the implied rate must sit
// within a proportional tolerance of the declared rate.
func checkVATBreakdown(b *receipt.VATBreakdown, total decimal.Decimal) []string {
	var warns []string

	sum := b.Subtotal.Add(b.VATAmount)
	if sum.Sub(total).Abs().GreaterThan(vatBreakdownTolerance) {
		warns = append(warns, fmt.Sprintf(
			"VAT breakdown does not add up: subtotal %s + VAT %s = %s, expected %s",
			b.Subtotal, b.VATAmount, sum, total))
	}

	if b.Subtotal.IsPositive() {
		declared := b.VATRate.Div(decimal.NewFromInt(100))
		implied := b.VATAmount.Div(b.Subtotal)
		if !declared.IsZero() {
			drift := implied.Sub(declared).Abs().Div(declared.Abs())
			if drift.GreaterThan(vatRateTolerance) {
				warns = append(warns, fmt.Sprintf(
					"implied VAT rate %s%% differs from declared rate %s%%",
					implied.Mul(decimal.NewFromInt(100)).Round(2), b.VATRate))
			}
		} else if !b.VATAmount.IsZero() {
			warns = append(warns, "VAT amount present but declared rate is zero")
		}
	}

	return warns
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
