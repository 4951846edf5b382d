package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/revrec/internal/invoice/domain"
	"github.com/smallbiznis/revrec/internal/recognition/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

type lineItemRow struct {
	ID           snowflake.ID
	InvoiceID    snowflake.ID
	EnrollmentID *snowflake.ID
	Description  string
	Amount       decimal.NullDecimal
	CreatedAt    time.Time
	StudentID    *snowflake.ID
	ServiceID    *snowflake.ID
	ServiceCode  *string
	ClassTitle   *string
}

// ListLineItemContexts loads an invoice's line items with their enrollment
// and service. Dangling enrollment or service references yield nulls.
func (r *repo) ListLineItemContexts(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.LineItemContext, error) {
	var rows []lineItemRow
	err := db.WithContext(ctx).Raw(
		`SELECT li.id, li.invoice_id, li.enrollment_id, li.description, li.amount, li.created_at,
		        e.student_id, e.service_id, e.class_title, s.code AS service_code
		 FROM invoice_line_items li
		 LEFT JOIN enrollments e ON e.id = li.enrollment_id
		 LEFT JOIN services s ON s.id = e.service_id
		 WHERE li.invoice_id = ?
		 ORDER BY li.id ASC`,
		invoiceID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.LineItemContext, 0, len(rows))
	for _, row := range rows {
		item := domain.LineItemContext{
			LineItem: invoicedomain.InvoiceLineItem{
				ID:           row.ID,
				InvoiceID:    row.InvoiceID,
				EnrollmentID: row.EnrollmentID,
				Description:  row.Description,
				Amount:       row.Amount,
				CreatedAt:    row.CreatedAt,
			},
			StudentID:  row.StudentID,
			ServiceID:  row.ServiceID,
			ClassTitle: row.ClassTitle,
		}
		if row.ServiceCode != nil {
			item.ServiceCode = *row.ServiceCode
		}
		out = append(out, item)
	}
	return out, nil
}
