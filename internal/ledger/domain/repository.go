package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertBatch writes all records in a single statement and silently skips
	// rows whose source line item already has a revenue record. It returns
	// the number of rows actually inserted.
	InsertBatch(ctx context.Context, db *gorm.DB, records []RevenueRecord) (int64, error)
	ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]RevenueRecord, error)
	// ListByFamily returns up to limit records with id greater than after.
	ListByFamily(ctx context.Context, db *gorm.DB, familyID snowflake.ID, after snowflake.ID, limit int) ([]RevenueRecord, error)
	CountBySourceLineItem(ctx context.Context, db *gorm.DB, lineItemID snowflake.ID) (int64, error)
}
