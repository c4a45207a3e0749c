package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/receiptflow-ledger/internal/api_gateway/middleware"
	"github.com/receiptflow-ledger/internal/api_gateway/service"
	"github.com/receiptflow-ledger/internal/domain/receipt"
	"github.com/receiptflow-ledger/internal/lifecycle"
)

// ReceiptHandler handles HTTP requests for receipt operations
type ReceiptHandler struct {
	receiptService service.ReceiptService
	logger         *slog.Logger
}

// NewReceiptHandler creates a new receipt handler
func NewReceiptHandler(logger *slog.Logger, receiptService service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{
		receiptService: receiptService,
		logger:         logger,
	}
}

// Submit accepts an untrusted extraction and queues it for asynchronous processing
func (h *ReceiptHandler) Submit(c *gin.Context) {
	var req SubmitReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.logger.Error("Invalid user ID", "user_id", req.UserID, "error", err)
		RespondBadRequest(c, "Invalid user ID")
		return
	}

	receiptID, err := h.receiptService.SubmitExtraction(
		c.Request.Context(),
		userID,
		req.FileName,
		req.Extraction,
		middleware.GetCorrelationID(c),
	)
	if err != nil {
		h.logger.Error("Failed to submit extraction", "user_id", req.UserID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondAccepted(c, gin.H{
		"receipt_id": receiptID.String(),
		"status":     string(receipt.StatusPending),
	})
}

// Finalize applies user corrections and finalizes the receipt. Blocking
// validation failures produce 422 and leave the receipt awaiting admin review.
func (h *ReceiptHandler) Finalize(c *gin.Context) {
	receiptID, ok := parseIDParam(c, h.logger)
	if !ok {
		return
	}

	var req FinalizeReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondBadRequest(c, "Invalid user ID")
		return
	}

	record, err := h.receiptService.FinalizeReceipt(c.Request.Context(), receiptID, userID, req.Corrections)
	if err != nil {
		respondFinalizeError(c, h.logger, receiptID, err)
		return
	}

	RespondOK(c, mapRecordToResponse(record))
}

// GetByID retrieves a pending receipt, returns 404 if not found
func (h *ReceiptHandler) GetByID(c *gin.Context) {
	receiptID, ok := parseIDParam(c, h.logger)
	if !ok {
		return
	}

	rec, err := h.receiptService.GetReceipt(c.Request.Context(), receiptID)
	if err != nil {
		h.logger.Error("Failed to get receipt", "receipt_id", receiptID.String(), "error", err)
		RespondInternalError(c)
		return
	}
	if rec == nil {
		RespondNotFound(c, "Receipt not found")
		return
	}

	RespondOK(c, mapPendingReceiptToResponse(rec))
}

// GetRecord retrieves the finalized canonical record for a receipt
func (h *ReceiptHandler) GetRecord(c *gin.Context) {
	receiptID, ok := parseIDParam(c, h.logger)
	if !ok {
		return
	}

	record, err := h.receiptService.GetRecord(c.Request.Context(), receiptID)
	if err != nil {
		h.logger.Error("Failed to get record", "receipt_id", receiptID.String(), "error", err)
		RespondInternalError(c)
		return
	}
	if record == nil {
		RespondNotFound(c, "Record not found")
		return
	}

	RespondOK(c, mapRecordToResponse(record))
}

// ListPending lists receipts awaiting review, optionally scoped to a user
func (h *ReceiptHandler) ListPending(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	var userID *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondBadRequest(c, "Invalid user ID")
			return
		}
		userID = &id
	}

	offset := (pagination.Page - 1) * pagination.PerPage
	receipts, err := h.receiptService.ListPending(c.Request.Context(), userID, pagination.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to list pending receipts", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]PendingReceiptResponse, 0, len(receipts))
	for _, rec := range receipts {
		responses = append(responses, mapPendingReceiptToResponse(rec))
	}

	RespondOK(c, gin.H{"receipts": responses})
}

// GetUserStats returns the per-user aggregate counters
func (h *ReceiptHandler) GetUserStats(c *gin.Context) {
	idParam := c.Param("id")
	userID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid user ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid user ID")
		return
	}

	userStats, err := h.receiptService.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get user stats", "user_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, userStats)
}

// GetUserRecords lists a user's finalized records in a time window
func (h *ReceiptHandler) GetUserRecords(c *gin.Context) {
	idParam := c.Param("id")
	userID, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid user ID")
		return
	}

	var params RecordRangeParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters")
		return
	}

	from, to, err := parseTimeRange(params.From, params.To)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	offset := (params.Page - 1) * params.PerPage
	records, err := h.receiptService.GetUserRecords(c.Request.Context(), userID, from, to, params.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to get user records", "user_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, mapRecordToResponse(record))
	}

	RespondOK(c, gin.H{"records": responses})
}

// parseIDParam parses the :id path parameter as a receipt UUID
func parseIDParam(c *gin.Context, logger *slog.Logger) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		logger.Error("Invalid receipt ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid receipt ID")
		return uuid.Nil, false
	}
	return id, true
}

// parseTimeRange parses optional RFC 3339 bounds, defaulting to all time
func parseTimeRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now().UTC()

	if fromRaw != "" {
		parsed, err := time.Parse(time.RFC3339, fromRaw)
		if err != nil {
			return from, to, errors.New("invalid 'from' timestamp, expected RFC 3339")
		}
		from = parsed
	}
	if toRaw != "" {
		parsed, err := time.Parse(time.RFC3339, toRaw)
		if err != nil {
			return from, to, errors.New("invalid 'to' timestamp, expected RFC 3339")
		}
		to = parsed
	}
	return from, to, nil
}

// respondFinalizeError maps lifecycle errors onto HTTP statuses
func respondFinalizeError(c *gin.Context, logger *slog.Logger, receiptID uuid.UUID, err error) {
	var vErr *lifecycle.ValidationError
	switch {
	case errors.As(err, &vErr):
		RespondValidationFailed(c, vErr.Errors, vErr.Warnings)
	case errors.Is(err, receipt.ErrReceiptNotFound{}):
		RespondNotFound(c, "Receipt not found")
	case errors.Is(err, receipt.ErrInvalidTransition{}):
		RespondConflict(c, "Receipt is already finalized")
	case errors.Is(err, receipt.ErrCorruptRecord{}):
		RespondConflict(c, "Receipt extraction payload is corrupt and cannot be finalized")
	default:
		logger.Error("Failed to finalize receipt", "receipt_id", receiptID.String(), "error", err)
		RespondInternalError(c)
	}
}
