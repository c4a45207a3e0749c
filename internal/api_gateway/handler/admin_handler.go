package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/receiptflow-ledger/internal/api_gateway/service"
	"github.com/receiptflow-ledger/internal/domain/auditlog"
	"github.com/receiptflow-ledger/internal/domain/receipt"
)

// AdminHandler handles HTTP requests for admin review and audit operations
type AdminHandler struct {
	receiptService service.ReceiptService
	logService     service.LogService
	logger         *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(logger *slog.Logger, receiptService service.ReceiptService, logService service.LogService) *AdminHandler {
	return &AdminHandler{
		receiptService: receiptService,
		logService:     logService,
		logger:         logger,
	}
}

// Approve finalizes a receipt on admin authority. Blocking validation
// failures do not stop an admin; the record carries an override marker.
func (h *AdminHandler) Approve(c *gin.Context) {
	receiptID, ok := parseIDParam(c, h.logger)
	if !ok {
		return
	}

	var req ApproveReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	adminID, err := uuid.Parse(req.AdminID)
	if err != nil {
		RespondBadRequest(c, "Invalid admin ID")
		return
	}

	record, err := h.receiptService.ApproveReceipt(c.Request.Context(), receiptID, adminID, req.Corrections)
	if err != nil {
		respondFinalizeError(c, h.logger, receiptID, err)
		return
	}

	RespondOK(c, mapRecordToResponse(record))
}

// Reject terminally rejects a receipt with a mandatory reason
func (h *AdminHandler) Reject(c *gin.Context) {
	receiptID, ok := parseIDParam(c, h.logger)
	if !ok {
		return
	}

	var req RejectReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	adminID, err := uuid.Parse(req.AdminID)
	if err != nil {
		RespondBadRequest(c, "Invalid admin ID")
		return
	}

	err = h.receiptService.RejectReceipt(c.Request.Context(), receiptID, adminID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, receipt.ErrReceiptNotFound{}):
			RespondNotFound(c, "Receipt not found")
		case errors.Is(err, receipt.ErrInvalidTransition{}):
			RespondConflict(c, "Receipt is already in a terminal state")
		default:
			h.logger.Error("Failed to reject receipt", "receipt_id", receiptID.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, gin.H{
		"receipt_id": receiptID.String(),
		"status":     string(receipt.StatusRejected),
	})
}

// QueryLogs returns audit log entries matching the query, newest first
func (h *AdminHandler) QueryLogs(c *gin.Context) {
	var params LogQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Error("Invalid log query parameters", "error", err)
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter := auditlog.QueryFilter{
		Operation: params.Operation,
		Limit:     params.Limit,
	}
	if params.Severity != "" {
		severity := auditlog.Severity(params.Severity)
		filter.Severity = &severity
	}
	if params.UserID != "" {
		userID, err := uuid.Parse(params.UserID)
		if err != nil {
			RespondBadRequest(c, "Invalid user ID")
			return
		}
		filter.UserID = &userID
	}
	if params.From != "" {
		from, err := time.Parse(time.RFC3339, params.From)
		if err != nil {
			RespondBadRequest(c, "Invalid 'from' timestamp, expected RFC 3339")
			return
		}
		filter.From = &from
	}
	if params.To != "" {
		to, err := time.Parse(time.RFC3339, params.To)
		if err != nil {
			RespondBadRequest(c, "Invalid 'to' timestamp, expected RFC 3339")
			return
		}
		filter.To = &to
	}

	entries, err := h.logService.QueryLogs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to query audit logs", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, gin.H{"entries": entries})
}
