// Package ledgersink delivers finalized canonical records to their
// destination ledgers. The sink is an opaque collaborator: it accepts a flat
// row and reports success or failure; it does not define the storage format.
package ledgersink

import (
	"context"

	"github.com/receiptflow-ledger/internal/domain/receipt"
	"github.com/receiptflow-ledger/internal/domain/routing"
)

// Sink appends a canonical record as a row to a destination ledger
type Sink interface {
	AppendRow(ctx context.Context, dest routing.Destination, record *receipt.CanonicalReceiptRecord) error
}

// rowValues flattens a canonical record into the column order shared by all
// sinks: date, vendor, category, total, currency, original amount, original
// currency, exchange rate, VAT number, processed-by, validation status.
func rowValues(record *receipt.CanonicalReceiptRecord) []interface{} {
	return []interface{}{
		record.TransactionDate.Format("2006-01-02"),
		record.VendorName,
		record.Category,
		record.TotalAmount.StringFixed(2),
		record.Currency,
		record.OriginalAmount.StringFixed(2),
		record.OriginalCurrency,
		record.ExchangeRate.String(),
		record.SupplierVATNumber,
		string(record.ProcessedBy),
		string(record.ValidationStatus),
	}
}
