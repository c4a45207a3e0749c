package receipt

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoundingTolerance is the absolute tolerance applied when checking that
// originalAmount * exchangeRate matches totalAmount on a finalized record.
var RoundingTolerance = decimal.NewFromFloat(0.01)

// Status describes where a pending receipt sits in its lifecycle
type Status string

const (
	StatusPending          Status = "pending"
	StatusNeedsAdminReview Status = "needs_admin_review"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
)

// Terminal reports whether a status permits no further transitions
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Actor identifies who performed a lifecycle transition
type Actor string

const (
	ActorUser   Actor = "user"
	ActorAdmin  Actor = "admin"
	ActorSystem Actor = "system"
)

// ValidationStatus is recorded on the canonical record after finalization
type ValidationStatus string

const (
	ValidationPassed        ValidationStatus = "passed"
	ValidationWarning       ValidationStatus = "warning"
	ValidationFailed        ValidationStatus = "failed"
	ValidationAdminOverride ValidationStatus = "admin_override"
)

// VATBreakdown carries the VAT decomposition of a receipt total
type VATBreakdown struct {
	Subtotal  decimal.Decimal `json:"subtotal" bson:"subtotal"`
	VATAmount decimal.Decimal `json:"vat_amount" bson:"vat_amount"`
	VATRate   decimal.Decimal `json:"vat_rate" bson:"vat_rate"` // Percentage, e.g. 20 for 20%
}

// RawExtraction is the untrusted AI output for a receipt image. TotalAmount is
// the only field the extractor guarantees; everything else is optional and
// must be nil-checked before use.
type RawExtraction struct {
	VendorName        *string          `json:"vendor_name,omitempty" bson:"vendor_name,omitempty"`
	TransactionDate   *time.Time       `json:"transaction_date,omitempty" bson:"transaction_date,omitempty"`
	TotalAmount       decimal.Decimal  `json:"total_amount" bson:"total_amount"`
	Category          *string          `json:"category,omitempty" bson:"category,omitempty"`
	Currency          *string          `json:"currency,omitempty" bson:"currency,omitempty"`
	OriginalAmount    *decimal.Decimal `json:"original_amount,omitempty" bson:"original_amount,omitempty"`
	ExchangeRate      *decimal.Decimal `json:"exchange_rate,omitempty" bson:"exchange_rate,omitempty"`
	SupplierVATNumber *string          `json:"supplier_vat_number,omitempty" bson:"supplier_vat_number,omitempty"`
	VATBreakdown      *VATBreakdown    `json:"vat_breakdown,omitempty" bson:"vat_breakdown,omitempty"`
}

// Corrections is a field-by-field overlay a user or admin applies to an
// extraction before (re-)validation. Nil fields keep the extracted values.
type Corrections struct {
	VendorName        *string          `json:"vendor_name,omitempty"`
	TransactionDate   *time.Time       `json:"transaction_date,omitempty"`
	TotalAmount       *decimal.Decimal `json:"total_amount,omitempty"`
	Category          *string          `json:"category,omitempty"`
	Currency          *string          `json:"currency,omitempty"`
	OriginalAmount    *decimal.Decimal `json:"original_amount,omitempty"`
	ExchangeRate      *decimal.Decimal `json:"exchange_rate,omitempty"`
	SupplierVATNumber *string          `json:"supplier_vat_number,omitempty"`
	VATBreakdown      *VATBreakdown    `json:"vat_breakdown,omitempty"`
}

// Merge overlays corrections on a copy of the extraction. Corrected fields take
// precedence; everything else keeps the extracted value.
func (e RawExtraction) Merge(c *Corrections) RawExtraction {
	merged := e
	if c == nil {
		return merged
	}
	if c.VendorName != nil {
		merged.VendorName = c.VendorName
	}
	if c.TransactionDate != nil {
		merged.TransactionDate = c.TransactionDate
	}
	if c.TotalAmount != nil {
		merged.TotalAmount = *c.TotalAmount
	}
	if c.Category != nil {
		merged.Category = c.Category
	}
	if c.Currency != nil {
		merged.Currency = c.Currency
	}
	if c.OriginalAmount != nil {
		merged.OriginalAmount = c.OriginalAmount
	}
	if c.ExchangeRate != nil {
		merged.ExchangeRate = c.ExchangeRate
	}
	if c.SupplierVATNumber != nil {
		merged.SupplierVATNumber = c.SupplierVATNumber
	}
	if c.VATBreakdown != nil {
		merged.VATBreakdown = c.VATBreakdown
	}
	return merged
}

// PendingReceipt is a raw extraction plus workflow metadata. It is owned by
// the lifecycle engine and mutated only through status transitions.
type PendingReceipt struct {
	ID                 uuid.UUID      `json:"id"`
	UserID             uuid.UUID      `json:"user_id"`
	FileName           string         `json:"file_name"`
	Extraction         *RawExtraction `json:"extraction"` // nil means the stored payload is corrupt
	Status             Status         `json:"status"`
	ValidationErrors   []string       `json:"validation_errors,omitempty"`
	ValidationWarnings []string       `json:"validation_warnings,omitempty"`
	RejectionReason    string         `json:"rejection_reason,omitempty"`
	CorrelationID      string         `json:"correlation_id,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// CanonicalReceiptRecord is the finalized, invariant-satisfying record routed
// to the ledger sink. Invariants:
//
//	originalAmount * exchangeRate matches totalAmount within RoundingTolerance;
//	exchangeRate == 1.0 implies originalAmount == totalAmount exactly;
//	currency == originalCurrency whenever no conversion occurred.
type CanonicalReceiptRecord struct {
	ReceiptID         uuid.UUID        `json:"receipt_id" bson:"receipt_id"`
	UserID            uuid.UUID        `json:"user_id" bson:"user_id"`
	VendorName        string           `json:"vendor_name" bson:"vendor_name"`
	TransactionDate   time.Time        `json:"transaction_date" bson:"transaction_date"`
	TotalAmount       decimal.Decimal  `json:"total_amount" bson:"total_amount"`
	Category          string           `json:"category" bson:"category"`
	Currency          string           `json:"currency" bson:"currency"`
	OriginalCurrency  string           `json:"original_currency" bson:"original_currency"`
	OriginalAmount    decimal.Decimal  `json:"original_amount" bson:"original_amount"`
	ExchangeRate      decimal.Decimal  `json:"exchange_rate" bson:"exchange_rate"`
	Timestamp         time.Time        `json:"timestamp" bson:"timestamp"`
	Entity            string           `json:"entity" bson:"entity"`
	ProcessedBy       Actor            `json:"processed_by" bson:"processed_by"`
	ValidationStatus  ValidationStatus `json:"validation_status" bson:"validation_status"`
	Warnings          []string         `json:"warnings,omitempty" bson:"warnings,omitempty"`
	HasErrors         bool             `json:"has_errors" bson:"has_errors"`
	SupplierVATNumber string           `json:"supplier_vat_number,omitempty" bson:"supplier_vat_number,omitempty"`
	VATBreakdown      *VATBreakdown    `json:"vat_breakdown,omitempty" bson:"vat_breakdown,omitempty"`
	CorrelationID     string           `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
}

// CheckAmountInvariant verifies original * rate lands within tolerance of the
// total, and that the no-conversion case is exact.
func (r *CanonicalReceiptRecord) CheckAmountInvariant() bool {
	if r.ExchangeRate.Equal(decimal.NewFromInt(1)) {
		return r.OriginalAmount.Equal(r.TotalAmount)
	}
	diff := r.OriginalAmount.Mul(r.ExchangeRate).Sub(r.TotalAmount).Abs()
	return diff.LessThanOrEqual(RoundingTolerance)
}
