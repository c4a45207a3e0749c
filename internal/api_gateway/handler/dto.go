package handler

import (
	"time"

	"github.com/receiptflow-ledger/internal/domain/receipt"
)

// SubmitReceiptRequest represents an intake request carrying an untrusted AI
// extraction. Only the total amount inside the extraction is guaranteed.
type SubmitReceiptRequest struct {
	UserID     string                `json:"user_id" binding:"required,uuid"`
	FileName   string                `json:"file_name" binding:"required"`
	Extraction receipt.RawExtraction `json:"extraction" binding:"required"`
}

// FinalizeReceiptRequest represents a user's correct-and-finalize request
type FinalizeReceiptRequest struct {
	UserID      string               `json:"user_id" binding:"required,uuid"`
	Corrections *receipt.Corrections `json:"corrections,omitempty"`
}

// ApproveReceiptRequest represents an admin approval, optionally with corrections
type ApproveReceiptRequest struct {
	AdminID     string               `json:"admin_id" binding:"required,uuid"`
	Corrections *receipt.Corrections `json:"corrections,omitempty"`
}

// RejectReceiptRequest represents an admin rejection with a mandatory reason
type RejectReceiptRequest struct {
	AdminID string `json:"admin_id" binding:"required,uuid"`
	Reason  string `json:"reason" binding:"required"`
}

// PendingReceiptResponse represents a pending receipt in API responses
type PendingReceiptResponse struct {
	ID                 string                 `json:"id"`
	UserID             string                 `json:"user_id"`
	FileName           string                 `json:"file_name"`
	Status             string                 `json:"status"`
	Extraction         *receipt.RawExtraction `json:"extraction,omitempty"`
	ValidationErrors   []string               `json:"validation_errors,omitempty"`
	ValidationWarnings []string               `json:"validation_warnings,omitempty"`
	RejectionReason    string                 `json:"rejection_reason,omitempty"`
	CreatedAt          string                 `json:"created_at"`
	UpdatedAt          string                 `json:"updated_at"`
}

// RecordResponse represents a finalized canonical record in API responses
type RecordResponse struct {
	ReceiptID         string                `json:"receipt_id"`
	UserID            string                `json:"user_id"`
	VendorName        string                `json:"vendor_name"`
	TransactionDate   string                `json:"transaction_date"`
	TotalAmount       string                `json:"total_amount"`
	Category          string                `json:"category"`
	Currency          string                `json:"currency"`
	OriginalCurrency  string                `json:"original_currency"`
	OriginalAmount    string                `json:"original_amount"`
	ExchangeRate      string                `json:"exchange_rate"`
	Timestamp         string                `json:"timestamp"`
	Entity            string                `json:"entity,omitempty"`
	ProcessedBy       string                `json:"processed_by"`
	ValidationStatus  string                `json:"validation_status"`
	Warnings          []string              `json:"warnings,omitempty"`
	HasErrors         bool                  `json:"has_errors"`
	SupplierVATNumber string                `json:"supplier_vat_number,omitempty"`
	VATBreakdown      *receipt.VATBreakdown `json:"vat_breakdown,omitempty"`
}

// SheetConfigRequest represents a create/update request for a destination config
type SheetConfigRequest struct {
	Name            string   `json:"name" binding:"required"`
	SheetIdentifier string   `json:"sheet_identifier" binding:"required"`
	IsDefault       bool     `json:"is_default"`
	AssignmentType  string   `json:"assignment_type" binding:"omitempty,oneof=entity user all"`
	EntityIDs       []string `json:"entity_ids,omitempty"`
	UserIDs         []string `json:"user_ids,omitempty" binding:"omitempty,dive,uuid"`
	TabPrefix       string   `json:"tab_prefix,omitempty"`
	TabPerMonth     bool     `json:"tab_per_month"`
}

// SetConfigStatusRequest flips a config's operational status
type SetConfigStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive error"`
}

// AssignConfigRequest attaches a config to a user or an entity
type AssignConfigRequest struct {
	UserID   string `json:"user_id,omitempty" binding:"omitempty,uuid"`
	EntityID string `json:"entity_id,omitempty"`
}

// LogQueryParams represents query parameters for the audit log endpoint
type LogQueryParams struct {
	Severity  string `form:"severity" binding:"omitempty,oneof=INFO WARNING ERROR CRITICAL"`
	Operation string `form:"operation"`
	UserID    string `form:"user_id" binding:"omitempty,uuid"`
	From      string `form:"from"`
	To        string `form:"to"`
	Limit     int    `form:"limit,default=100" binding:"min=1,max=1000"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// RecordRangeParams narrows a user record listing to a time window
type RecordRangeParams struct {
	From string `form:"from"`
	To   string `form:"to"`
	PaginationParams
}

func mapPendingReceiptToResponse(rec *receipt.PendingReceipt) PendingReceiptResponse {
	return PendingReceiptResponse{
		ID:                 rec.ID.String(),
		UserID:             rec.UserID.String(),
		FileName:           rec.FileName,
		Status:             string(rec.Status),
		Extraction:         rec.Extraction,
		ValidationErrors:   rec.ValidationErrors,
		ValidationWarnings: rec.ValidationWarnings,
		RejectionReason:    rec.RejectionReason,
		CreatedAt:          rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          rec.UpdatedAt.Format(time.RFC3339),
	}
}

func mapRecordToResponse(record *receipt.CanonicalReceiptRecord) RecordResponse {
	return RecordResponse{
		ReceiptID:         record.ReceiptID.String(),
		UserID:            record.UserID.String(),
		VendorName:        record.VendorName,
		TransactionDate:   record.TransactionDate.Format("2006-01-02"),
		TotalAmount:       record.TotalAmount.StringFixed(2),
		Category:          record.Category,
		Currency:          record.Currency,
		OriginalCurrency:  record.OriginalCurrency,
		OriginalAmount:    record.OriginalAmount.StringFixed(2),
		ExchangeRate:      record.ExchangeRate.String(),
		Timestamp:         record.Timestamp.Format(time.RFC3339),
		Entity:            record.Entity,
		ProcessedBy:       string(record.ProcessedBy),
		ValidationStatus:  string(record.ValidationStatus),
		Warnings:          record.Warnings,
		HasErrors:         record.HasErrors,
		SupplierVATNumber: record.SupplierVATNumber,
		VATBreakdown:      record.VATBreakdown,
	}
}
