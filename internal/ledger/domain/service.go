package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/revrec/pkg/db/pagination"
)

type ListRevenueRequest struct {
	pagination.Pagination
	FamilyID string `form:"family_id"`
}

type ListRevenueResponse struct {
	pagination.PageInfo
	Records []RevenueRecord `json:"records"`
}

type Service interface {
	ListByInvoice(ctx context.Context, invoiceID string) ([]RevenueRecord, error)
	ListByFamily(ctx context.Context, req ListRevenueRequest) (ListRevenueResponse, error)
}

var (
	ErrInvalidInvoiceID = errors.New("invalid_invoice_id")
	ErrInvalidFamilyID  = errors.New("invalid_family_id")
)
