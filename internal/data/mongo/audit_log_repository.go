package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/receiptflow-ledger/internal/domain/auditlog"
)

const (
	// AuditLogCollectionName is the name of the audit log collection in MongoDB
	AuditLogCollectionName = "audit_log"
)

// AuditLogRepository implements the auditlog.Repository interface for MongoDB.
// The collection is append-only; entries are never updated or deleted.
type AuditLogRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAuditLogRepository creates a new MongoDB audit log repository
func NewAuditLogRepository(logger *slog.Logger, db *mongo.Database) auditlog.Repository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores a new audit entry
func (r *AuditLogRepository) Append(ctx context.Context, entry *auditlog.Entry) error {
	collection := r.db.Collection(AuditLogCollectionName)

	if _, err := collection.InsertOne(ctx, entry); err != nil {
		r.logger.Error("Failed to append audit log entry",
			"operation", entry.Operation,
			"severity", string(entry.Severity),
			"error", err)
		return fmt.Errorf("failed to append audit log entry: %w", err)
	}

	return nil
}

// Query retrieves entries matching the filter, newest first. The descending
// sort walks the single-field timestamp index backwards, so the limit
// truncates the oldest entries rather than the most recent ones.
func (r *AuditLogRepository) Query(ctx context.Context, filter auditlog.QueryFilter) ([]*auditlog.Entry, error) {
	collection := r.db.Collection(AuditLogCollectionName)

	query, opts := buildAuditQuery(filter)

	cursor, err := collection.Find(ctx, query, opts)
	if err != nil {
		r.logger.Error("Failed to query audit log", "error", err)
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*auditlog.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode audit log entries", "error", err)
		return nil, fmt.Errorf("failed to decode audit log entries: %w", err)
	}

	return entries, nil
}

// buildAuditQuery translates a QueryFilter into the Mongo filter document and
// find options used by Query
func buildAuditQuery(filter auditlog.QueryFilter) (bson.M, *options.FindOptions) {
	query := bson.M{}
	if filter.Severity != nil {
		query["severity"] = *filter.Severity
	}
	if filter.Operation != "" {
		query["operation"] = filter.Operation
	}
	if filter.UserID != nil {
		query["user_id"] = *filter.UserID
	}
	if filter.From != nil || filter.To != nil {
		timeRange := bson.M{}
		if filter.From != nil {
			timeRange["$gte"] = *filter.From
		}
		if filter.To != nil {
			timeRange["$lte"] = *filter.To
		}
		query["timestamp"] = timeRange
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetLimit(int64(limit))

	return query, opts
}
