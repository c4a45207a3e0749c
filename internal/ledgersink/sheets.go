package ledgersink

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/receiptflow-ledger/internal/config"
	"github.com/receiptflow-ledger/internal/domain/receipt"
	"github.com/receiptflow-ledger/internal/domain/routing"
)

// SheetsSink appends rows to Google Sheets, the primary destination ledger
type SheetsSink struct {
	service *sheets.Service
	timeout config.SheetsConfig
	logger  *slog.Logger
}

// NewSheetsSink creates a Sheets API client using the configured credentials
func NewSheetsSink(ctx context.Context, logger *slog.Logger, cfg *config.SheetsConfig) (*SheetsSink, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, option.WithScopes(sheets.SpreadsheetsScope))

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &SheetsSink{
		service: service,
		timeout: *cfg,
		logger:  logger,
	}, nil
}

// AppendRow appends the record as one row to the destination spreadsheet tab.
// The call is bounded by the configured append timeout.
func (s *SheetsSink) AppendRow(ctx context.Context, dest routing.Destination, record *receipt.CanonicalReceiptRecord) error {
	appendCtx, cancel := context.WithTimeout(ctx, s.timeout.AppendTimeout)
	defer cancel()

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{rowValues(record)},
	}

	_, err := s.service.Spreadsheets.Values.
		Append(dest.SheetIdentifier, dest.Tab, valueRange).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(appendCtx).
		Do()
	if err != nil {
		s.logger.Error("Failed to append row to sheet",
			"sheet", dest.SheetIdentifier,
			"tab", dest.Tab,
			"receipt_id", record.ReceiptID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to append row to sheet %s: %w", dest.SheetIdentifier, err)
	}

	s.logger.Debug("Appended row to sheet",
		"sheet", dest.SheetIdentifier,
		"tab", dest.Tab,
		"receipt_id", record.ReceiptID.String(),
	)
	return nil
}
