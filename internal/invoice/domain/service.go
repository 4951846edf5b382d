package domain

import (
	"context"
	"errors"
)

// ImportInvoiceRequest loads an invoice together with its line items. Ids are
// optional and are generated when empty; dates use YYYY-MM-DD.
type ImportInvoiceRequest struct {
	ID          string                  `json:"id"`
	FamilyID    string                  `json:"family_id"`
	Status      string                  `json:"status"`
	InvoiceDate string                  `json:"invoice_date"`
	PeriodStart string                  `json:"period_start"`
	PeriodEnd   string                  `json:"period_end"`
	DueDate     string                  `json:"due_date"`
	Metadata    map[string]any          `json:"metadata"`
	LineItems   []ImportLineItemRequest `json:"line_items"`
}

type ImportLineItemRequest struct {
	ID           string `json:"id"`
	EnrollmentID string `json:"enrollment_id"`
	Description  string `json:"description"`
	// Amount is a decimal string. Empty means no amount.
	Amount string `json:"amount"`
}

type UpdateStatusRequest struct {
	ID     string `json:"-"`
	Status string `json:"status"`
}

type InvoiceDetail struct {
	Invoice
	LineItems []InvoiceLineItem `json:"line_items"`
}

type Service interface {
	Import(ctx context.Context, req ImportInvoiceRequest) (InvoiceDetail, error)
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (Invoice, error)
	GetByID(ctx context.Context, id string) (InvoiceDetail, error)
}

var (
	ErrInvalidInvoiceID   = errors.New("invalid_invoice_id")
	ErrInvalidFamily      = errors.New("invalid_family")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidInvoiceDate = errors.New("invalid_invoice_date")
	ErrInvalidPeriod      = errors.New("invalid_period")
	ErrInvalidDueDate     = errors.New("invalid_due_date")
	ErrInvalidLineItemID  = errors.New("invalid_line_item_id")
	ErrInvalidEnrollment  = errors.New("invalid_enrollment")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvoiceExists      = errors.New("invoice_exists")
	ErrLineItemExists     = errors.New("line_item_exists")
	ErrInvoiceNotFound    = errors.New("invoice_not_found")
)
