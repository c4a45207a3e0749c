package auditlog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Severity levels for audit/error log entries
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Entry is an append-only structured audit event. Entries are immutable once
// written.
type Entry struct {
	ID        string         `json:"id,omitempty" bson:"_id,omitempty"`
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
	Severity  Severity       `json:"severity" bson:"severity"`
	Operation string         `json:"operation" bson:"operation"`
	Message   string         `json:"message" bson:"message"`
	UserID    *uuid.UUID     `json:"user_id,omitempty" bson:"user_id,omitempty"`
	ReceiptID *uuid.UUID     `json:"receipt_id,omitempty" bson:"receipt_id,omitempty"`
	Context   map[string]any `json:"context,omitempty" bson:"context,omitempty"`
}

// QueryFilter narrows an audit log query. Results are returned in descending
// time order.
type QueryFilter struct {
	Severity  *Severity
	Operation string
	UserID    *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
}

// Repository is the append-only audit log store
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	Query(ctx context.Context, filter QueryFilter) ([]*Entry, error)
}
