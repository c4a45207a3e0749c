package auditlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Recorder writes audit entries without ever failing the caller's primary
// operation: append errors are swallowed and emitted to the process logger as
// a fallback channel.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
}

func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Log appends an audit entry. Failures are logged and dropped.
func (r *Recorder) Log(ctx context.Context, severity Severity, operation, message string, opts ...EntryOption) {
	entry := &Entry{
		Timestamp: time.Now().UTC(),
		Severity:  severity,
		Operation: operation,
		Message:   message,
	}
	for _, opt := range opts {
		opt(entry)
	}

	if err := r.repo.Append(ctx, entry); err != nil {
		r.logger.Error("Failed to append audit log entry",
			"operation", operation,
			"severity", string(severity),
			"message", message,
			"error", err,
		)
	}
}

// EntryOption attaches optional attributes to an audit entry
type EntryOption func(*Entry)

func WithUser(userID uuid.UUID) EntryOption {
	return func(e *Entry) { e.UserID = &userID }
}

func WithReceipt(receiptID uuid.UUID) EntryOption {
	return func(e *Entry) { e.ReceiptID = &receiptID }
}

func WithContext(key string, value any) EntryOption {
	return func(e *Entry) {
		if e.Context == nil {
			e.Context = make(map[string]any)
		}
		e.Context[key] = value
	}
}
