package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/receiptflow-ledger/internal/domain/receipt"
)

const (
	// RecordCollectionName is the name of the canonical record collection in MongoDB
	RecordCollectionName = "receipt_records"
)

// RecordRepository implements the receipt.Archive interface for MongoDB
type RecordRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewRecordRepository creates a new MongoDB canonical record repository
func NewRecordRepository(logger *slog.Logger, db *mongo.Database) receipt.Archive {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

// Store archives a finalized canonical record
func (r *RecordRepository) Store(ctx context.Context, record *receipt.CanonicalReceiptRecord) error {
	collection := r.db.Collection(RecordCollectionName)

	if _, err := collection.InsertOne(ctx, record); err != nil {
		r.logger.Error("Failed to store canonical record",
			"receipt_id", record.ReceiptID.String(),
			"error", err)
		return fmt.Errorf("failed to store canonical record: %w", err)
	}

	return nil
}

// GetByReceiptID retrieves the canonical record for a receipt.
// Returns ErrRecordNotFound if the receipt was never finalized.
func (r *RecordRepository) GetByReceiptID(ctx context.Context, receiptID uuid.UUID) (*receipt.CanonicalReceiptRecord, error) {
	collection := r.db.Collection(RecordCollectionName)

	filter := bson.M{"receipt_id": receiptID}
	var record receipt.CanonicalReceiptRecord
	err := collection.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, receipt.ErrRecordNotFound{ReceiptID: receiptID}
		}
		r.logger.Error("Failed to get canonical record",
			"receipt_id", receiptID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get canonical record: %w", err)
	}

	return &record, nil
}

// GetByUser retrieves paginated canonical records for a user within a time
// window, newest first.
func (r *RecordRepository) GetByUser(ctx context.Context, userID uuid.UUID, from, to time.Time, limit, offset int) ([]*receipt.CanonicalReceiptRecord, error) {
	collection := r.db.Collection(RecordCollectionName)

	filter := bson.M{
		"user_id": userID,
		"timestamp": bson.M{
			"$gte": from,
			"$lte": to,
		},
	}
	opts := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get canonical records",
			"user_id", userID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get canonical records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*receipt.CanonicalReceiptRecord
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode canonical records",
			"user_id", userID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode canonical records: %w", err)
	}

	return records, nil
}
