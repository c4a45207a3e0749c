package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

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
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func TestWorkerPoolProcessingService_ProcessExtraction(t *testing.T) {
	ctx := context.Background()
	msg := extractionMessage()

	tests := []struct {
		name       string
		setupMocks func(base *MockProcessingService)
		wantErr    string
	}{
		{
			name: "successful processing",
			setupMocks: func(base *MockProcessingService) {
				base.On("ProcessExtraction", mock.Anything, mock.MatchedBy(func(m *shared.ExtractionMessage) bool {
					return m.ReceiptID == msg.ReceiptID
				})).Return(nil).Once()
			},
		},
		{
			name: "processing error surfaces to the caller",
			setupMocks: func(base *MockProcessingService) {
				base.On("ProcessExtraction", mock.Anything, mock.Anything).Return(errors.New("registration failed")).Once()
			},
			wantErr: "registration failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := new(MockProcessingService)
			pool, err := NewWorkerPoolProcessingService(base, WorkerPoolConfig{Size: 2}, newTestLogger())
			require.NoError(t, err)
			defer pool.Shutdown()

			tt.setupMocks(base)

			err = pool.ProcessExtraction(ctx, msg)

			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			base.AssertExpectations(t)
		})
	}
}

func TestWorkerPoolProcessingService_Concurrency(t *testing.T) {
	base := new(MockProcessingService)
	pool, err := NewWorkerPoolProcessingService(base, WorkerPoolConfig{Size: 5}, newTestLogger())
	require.NoError(t, err)
	defer pool.Shutdown()

	var mu sync.Mutex
	processed := 0

	base.On("ProcessExtraction", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		processed++
		mu.Unlock()
	}).Return(nil)

	numMessages := 10
	var wg sync.WaitGroup
	wg.Add(numMessages)

	for i := 0; i < numMessages; i++ {
		go func() {
			defer wg.Done()

			msg := &shared.ExtractionMessage{
				ReceiptID:     uuid.New(),
				UserID:        uuid.New(),
				FileName:      "receipt.jpg",
				Extraction:    receipt.RawExtraction{TotalAmount: decimal.NewFromFloat(19.99)},
				CorrelationID: uuid.NewString(),
			}

			assert.NoError(t, pool.ProcessExtraction(context.Background(), msg))
		}()
	}

	wg.Wait()

	// Every submitted extraction is processed exactly once
	assert.Equal(t, numMessages, processed)
	assert.True(t, pool.Running() > 0)
	assert.Equal(t, 5, pool.Capacity())
}
