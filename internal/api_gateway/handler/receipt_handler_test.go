package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/receiptflow-ledger/internal/domain/receipt"
	"github.com/receiptflow-ledger/internal/domain/stats"
	"github.com/receiptflow-ledger/internal/lifecycle"
)

type MockReceiptService struct {
	mock.Mock
}

func (m *MockReceiptService) SubmitExtraction(ctx context.Context, userID uuid.UUID, fileName string, ext receipt.RawExtraction, correlationID string) (uuid.UUID, error) {
	args := m.Called(ctx, userID, fileName, ext, correlationID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockReceiptService) FinalizeReceipt(ctx context.Context, receiptID, userID uuid.UUID, corrections *receipt.Corrections) (*receipt.CanonicalReceiptRecord, error) {
	args := m.Called(ctx, receiptID, userID, corrections)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receipt.CanonicalReceiptRecord), args.Error(1)
}

func (m *MockReceiptService) ApproveReceipt(ctx context.Context, receiptID, adminID uuid.UUID, corrections *receipt.Corrections) (*receipt.CanonicalReceiptRecord, error) {
	args := m.Called(ctx, receiptID, adminID, corrections)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receipt.CanonicalReceiptRecord), args.Error(1)
}

func (m *MockReceiptService) RejectReceipt(ctx context.Context, receiptID, adminID uuid.UUID, reason string) error {
	return m.Called(ctx, receiptID, adminID, reason).Error(0)
}

func (m *MockReceiptService) GetReceipt(ctx context.Context, receiptID uuid.UUID) (*receipt.PendingReceipt, error) {
	args := m.Called(ctx, receiptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receipt.PendingReceipt), args.Error(1)
}

func (m *MockReceiptService) GetRecord(ctx context.Context, receiptID uuid.UUID) (*receipt.CanonicalReceiptRecord, error) {
	args := m.Called(ctx, receiptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receipt.CanonicalReceiptRecord), args.Error(1)
}

func (m *MockReceiptService) ListPending(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]*receipt.PendingReceipt, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*receipt.PendingReceipt), args.Error(1)
}

func (m *MockReceiptService) GetUserStats(ctx context.Context, userID uuid.UUID) (*stats.UserStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stats.UserStats), args.Error(1)
}

func (m *MockReceiptService) GetUserRecords(ctx context.Context, userID uuid.UUID, from, to time.Time, limit, offset int) ([]*receipt.CanonicalReceiptRecord, error) {
	args := m.Called(ctx, userID, from, to, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*receipt.CanonicalReceiptRecord), args.Error(1)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.Default()
	return r
}

func testHandlerLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func strPtr(s string) *string { return &s }

func recordFixture(receiptID, userID uuid.UUID) *receipt.CanonicalReceiptRecord {
	return &receipt.CanonicalReceiptRecord{
		ReceiptID:        receiptID,
		UserID:           userID,
		VendorName:       "Cloud Cafe",
		TransactionDate:  time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		TotalAmount:      decimal.NewFromFloat(42.50),
		Category:         "meals",
		Currency:         "GBP",
		OriginalCurrency: "GBP",
		OriginalAmount:   decimal.NewFromFloat(42.50),
		ExchangeRate:     decimal.NewFromInt(1),
		Timestamp:        time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC),
		ProcessedBy:      receipt.ActorUser,
		ValidationStatus: receipt.ValidationPassed,
	}
}

func decodeData[T any](t *testing.T, body []byte) T {
	t.Helper()
	var topLevel Response
	require.NoError(t, json.Unmarshal(body, &topLevel))
	require.NotNil(t, topLevel.Data)

	dataBytes, err := json.Marshal(topLevel.Data)
	require.NoError(t, err)

	var out T
	require.NoError(t, json.Unmarshal(dataBytes, &out))
	return out
}

func TestReceiptHandler_Submit(t *testing.T) {
	logger := testHandlerLogger()
	userID := uuid.New()

	t.Run("accepted for asynchronous processing", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)
		receiptID := uuid.New()

		mockService.On("SubmitExtraction", mock.Anything, userID, "receipt.jpg", mock.Anything, mock.Anything).
			Return(receiptID, nil)

		router := setupTestRouter()
		router.POST("/receipts", handler.Submit)

		reqBody := SubmitReceiptRequest{
			UserID:   userID.String(),
			FileName: "receipt.jpg",
			Extraction: receipt.RawExtraction{
				VendorName:  strPtr("Cloud Cafe"),
				TotalAmount: decimal.NewFromFloat(42.50),
			},
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/receipts", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusAccepted, rr.Code)
		data := decodeData[map[string]string](t, rr.Body.Bytes())
		assert.Equal(t, receiptID.String(), data["receipt_id"])
		assert.Equal(t, "pending", data["status"])
		mockService.AssertExpectations(t)
	})

	t.Run("missing file name is rejected", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/receipts", handler.Submit)

		jsonBody, _ := json.Marshal(gin.H{"user_id": userID.String()})
		req, _ := http.NewRequest(http.MethodPost, "/receipts", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "SubmitExtraction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("intake failure is a server error", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)

		mockService.On("SubmitExtraction", mock.Anything, userID, "receipt.jpg", mock.Anything, mock.Anything).
			Return(uuid.Nil, errors.New("kafka unavailable"))

		router := setupTestRouter()
		router.POST("/receipts", handler.Submit)

		reqBody := SubmitReceiptRequest{
			UserID:     userID.String(),
			FileName:   "receipt.jpg",
			Extraction: receipt.RawExtraction{TotalAmount: decimal.NewFromInt(10)},
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/receipts", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestReceiptHandler_Finalize(t *testing.T) {
	logger := testHandlerLogger()
	receiptID := uuid.New()
	userID := uuid.New()

	newRequest := func(body interface{}) (*httptest.ResponseRecorder, *http.Request) {
		jsonBody, _ := json.Marshal(body)
		req, _ := http.NewRequest(http.MethodPost, "/receipts/"+receiptID.String()+"/finalize", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		return httptest.NewRecorder(), req
	}

	t.Run("success returns the canonical record", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)
		record := recordFixture(receiptID, userID)

		mockService.On("FinalizeReceipt", mock.Anything, receiptID, userID, mock.Anything).Return(record, nil)

		router := setupTestRouter()
		router.POST("/receipts/:id/finalize", handler.Finalize)

		rr, req := newRequest(FinalizeReceiptRequest{UserID: userID.String()})
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		data := decodeData[RecordResponse](t, rr.Body.Bytes())
		assert.Equal(t, receiptID.String(), data.ReceiptID)
		assert.Equal(t, "42.50", data.TotalAmount)
		assert.Equal(t, "passed", data.ValidationStatus)
	})

	t.Run("blocking validation failure returns 422 with details", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)

		mockService.On("FinalizeReceipt", mock.Anything, receiptID, userID, mock.Anything).
			Return(nil, &lifecycle.ValidationError{
				ReceiptID: receiptID,
				Errors:    []string{"vendor name is missing"},
				Warnings:  []string{"no conversion rate available for CHF, amount recorded unconverted"},
			})

		router := setupTestRouter()
		router.POST("/receipts/:id/finalize", handler.Finalize)

		rr, req := newRequest(FinalizeReceiptRequest{UserID: userID.String()})
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
		assert.Equal(t, []string{"vendor name is missing"}, resp.Error.Details)
	})

	t.Run("unknown receipt returns 404", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)

		mockService.On("FinalizeReceipt", mock.Anything, receiptID, userID, mock.Anything).
			Return(nil, receipt.ErrReceiptNotFound{ReceiptID: receiptID})

		router := setupTestRouter()
		router.POST("/receipts/:id/finalize", handler.Finalize)

		rr, req := newRequest(FinalizeReceiptRequest{UserID: userID.String()})
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("already finalized returns 409", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)

		mockService.On("FinalizeReceipt", mock.Anything, receiptID, userID, mock.Anything).
			Return(nil, receipt.ErrInvalidTransition{ReceiptID: receiptID, To: receipt.StatusApproved})

		router := setupTestRouter()
		router.POST("/receipts/:id/finalize", handler.Finalize)

		rr, req := newRequest(FinalizeReceiptRequest{UserID: userID.String()})
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("corrupt extraction returns 409", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)

		mockService.On("FinalizeReceipt", mock.Anything, receiptID, userID, mock.Anything).
			Return(nil, receipt.ErrCorruptRecord{ReceiptID: receiptID})

		router := setupTestRouter()
		router.POST("/receipts/:id/finalize", handler.Finalize)

		rr, req := newRequest(FinalizeReceiptRequest{UserID: userID.String()})
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("invalid receipt ID returns 400", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/receipts/:id/finalize", handler.Finalize)

		jsonBody, _ := json.Marshal(FinalizeReceiptRequest{UserID: userID.String()})
		req, _ := http.NewRequest(http.MethodPost, "/receipts/not-a-uuid/finalize", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestReceiptHandler_GetByID(t *testing.T) {
	logger := testHandlerLogger()
	receiptID := uuid.New()
	userID := uuid.New()

	t.Run("success", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)
		now := time.Now().UTC()

		mockService.On("GetReceipt", mock.Anything, receiptID).Return(&receipt.PendingReceipt{
			ID:        receiptID,
			UserID:    userID,
			FileName:  "receipt.jpg",
			Status:    receipt.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}, nil)

		router := setupTestRouter()
		router.GET("/receipts/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/receipts/"+receiptID.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		data := decodeData[PendingReceiptResponse](t, rr.Body.Bytes())
		assert.Equal(t, receiptID.String(), data.ID)
		assert.Equal(t, "pending", data.Status)
	})

	t.Run("not found", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)

		mockService.On("GetReceipt", mock.Anything, receiptID).Return(nil, nil)

		router := setupTestRouter()
		router.GET("/receipts/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/receipts/"+receiptID.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestReceiptHandler_ListPending(t *testing.T) {
	logger := testHandlerLogger()
	userID := uuid.New()

	t.Run("scoped to a user with pagination", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)

		mockService.On("ListPending", mock.Anything, &userID, 10, 10).
			Return([]*receipt.PendingReceipt{}, nil)

		router := setupTestRouter()
		router.GET("/receipts/pending", handler.ListPending)

		req, _ := http.NewRequest(http.MethodGet, "/receipts/pending?user_id="+userID.String()+"&page=2&per_page=10", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("invalid user ID returns 400", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/receipts/pending", handler.ListPending)

		req, _ := http.NewRequest(http.MethodGet, "/receipts/pending?user_id=bogus", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestReceiptHandler_GetUserStats(t *testing.T) {
	logger := testHandlerLogger()
	userID := uuid.New()

	mockService := new(MockReceiptService)
	handler := NewReceiptHandler(logger, mockService)

	mockService.On("GetUserStats", mock.Anything, userID).Return(&stats.UserStats{
		UserID:          userID,
		TotalReceipts:   7,
		TotalAmount:     decimal.NewFromFloat(310.00),
		PendingReceipts: 2,
	}, nil)

	router := setupTestRouter()
	router.GET("/users/:id/stats", handler.GetUserStats)

	req, _ := http.NewRequest(http.MethodGet, "/users/"+userID.String()+"/stats", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	data := decodeData[stats.UserStats](t, rr.Body.Bytes())
	assert.Equal(t, int64(7), data.TotalReceipts)
	assert.Equal(t, int64(2), data.PendingReceipts)
}

func TestReceiptHandler_GetUserRecords(t *testing.T) {
	logger := testHandlerLogger()
	userID := uuid.New()

	t.Run("time window is parsed as RFC 3339", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)
		from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

		mockService.On("GetUserRecords", mock.Anything, userID, from, to, 20, 0).
			Return([]*receipt.CanonicalReceiptRecord{recordFixture(uuid.New(), userID)}, nil)

		router := setupTestRouter()
		router.GET("/users/:id/records", handler.GetUserRecords)

		req, _ := http.NewRequest(http.MethodGet,
			"/users/"+userID.String()+"/records?from=2026-03-01T00:00:00Z&to=2026-03-31T00:00:00Z", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("malformed timestamp returns 400", func(t *testing.T) {
		mockService := new(MockReceiptService)
		handler := NewReceiptHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/users/:id/records", handler.GetUserRecords)

		req, _ := http.NewRequest(http.MethodGet, "/users/"+userID.String()+"/records?from=yesterday", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "GetUserRecords", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
