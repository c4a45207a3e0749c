package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/receiptflow-ledger/internal/domain/receipt"
	"github.com/receiptflow-ledger/internal/domain/shared"
)

type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ProcessExtraction(ctx context.Context, msg *shared.ExtractionMessage) error {
	return m.Called(ctx, msg).Error(0)
}

type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, key string, originalValue []byte, reason string) error {
	return m.Called(ctx, key, originalValue, reason).Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	return m.Called().Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractionEventHandler_HandleMessage(t *testing.T) {
	ctx := context.Background()

	validMessage := func() (shared.ExtractionMessage, []byte) {
		msg := shared.ExtractionMessage{
			ReceiptID:     uuid.New(),
			UserID:        uuid.New(),
			FileName:      "receipt.jpg",
			Extraction:    receipt.RawExtraction{TotalAmount: decimal.NewFromFloat(12.50)},
			CorrelationID: "corr-789",
		}
		value, err := json.Marshal(msg)
		require.NoError(t, err)
		return msg, value
	}

	t.Run("valid message is processed and committed", func(t *testing.T) {
		processing := new(MockProcessingService)
		dlq := new(MockDeadLetterPublisher)
		handler := NewExtractionEventHandler(newTestLogger(), processing, dlq)
		msg, value := validMessage()

		processing.On("ProcessExtraction", ctx, mock.MatchedBy(func(got *shared.ExtractionMessage) bool {
			return got.ReceiptID == msg.ReceiptID && got.UserID == msg.UserID
		})).Return(nil)

		err := handler.HandleMessage(ctx, []byte(msg.ReceiptID.String()), value)

		assert.NoError(t, err)
		processing.AssertExpectations(t)
		dlq.AssertNotCalled(t, "PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unparseable message goes to the DLQ and commits", func(t *testing.T) {
		processing := new(MockProcessingService)
		dlq := new(MockDeadLetterPublisher)
		handler := NewExtractionEventHandler(newTestLogger(), processing, dlq)
		garbage := []byte("not-json{{")

		dlq.On("PublishToDLQ", ctx, "key-1", garbage, mock.Anything).Return(nil)

		err := handler.HandleMessage(ctx, []byte("key-1"), garbage)

		assert.NoError(t, err, "poison messages are consumed after the DLQ accepts them")
		dlq.AssertExpectations(t)
		processing.AssertNotCalled(t, "ProcessExtraction", mock.Anything, mock.Anything)
	})

	t.Run("unparseable message without a DLQ keeps the offset for retry", func(t *testing.T) {
		processing := new(MockProcessingService)
		handler := NewExtractionEventHandler(newTestLogger(), processing, nil)

		err := handler.HandleMessage(ctx, []byte("key-2"), []byte("still-not-json"))

		assert.Error(t, err)
	})

	t.Run("DLQ failure falls back to redelivery", func(t *testing.T) {
		processing := new(MockProcessingService)
		dlq := new(MockDeadLetterPublisher)
		handler := NewExtractionEventHandler(newTestLogger(), processing, dlq)
		garbage := []byte("%%%")

		dlq.On("PublishToDLQ", ctx, "key-3", garbage, mock.Anything).Return(errors.New("broker unavailable"))

		err := handler.HandleMessage(ctx, []byte("key-3"), garbage)

		assert.Error(t, err)
	})

	t.Run("processing failure withholds the offset", func(t *testing.T) {
		processing := new(MockProcessingService)
		dlq := new(MockDeadLetterPublisher)
		handler := NewExtractionEventHandler(newTestLogger(), processing, dlq)
		msg, value := validMessage()

		processing.On("ProcessExtraction", ctx, mock.Anything).Return(errors.New("registration failed"))

		err := handler.HandleMessage(ctx, []byte(msg.ReceiptID.String()), value)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), msg.ReceiptID.String())
	})
}
