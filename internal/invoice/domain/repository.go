package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	InsertLineItems(ctx context.Context, db *gorm.DB, items []InvoiceLineItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status InvoiceStatus, updatedAt time.Time) error
	ListLineItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceLineItem, error)
	// ListIDsByStatus pages through invoice ids in ascending order, starting
	// after the given id.
	ListIDsByStatus(ctx context.Context, db *gorm.DB, status InvoiceStatus, after snowflake.ID, limit int) ([]snowflake.ID, error)
}
