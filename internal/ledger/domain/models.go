// Package domain contains the revenue ledger persistence models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// SourceType identifies what produced a revenue record.
type SourceType string

const (
	SourceTypeInvoice SourceType = "invoice"
)

// RevenueRecord is one recognized revenue row. Rows materialized from invoice
// line items carry SourceLineItemID, which is unique across the table.
// Fields intentionally carry no database defaults so batch inserts stay plain
// INSERT statements on every dialect.
type RevenueRecord struct {
	ID               snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	FamilyID         snowflake.ID    `gorm:"not null;index" json:"family_id"`
	StudentID        *snowflake.ID   `gorm:"index" json:"student_id,omitempty"`
	ServiceID        *snowflake.ID   `gorm:"index" json:"service_id,omitempty"`
	PeriodStart      time.Time       `gorm:"type:date;not null" json:"period_start"`
	PeriodEnd        time.Time       `gorm:"type:date;not null" json:"period_end"`
	Revenue          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"revenue"`
	Source           SourceType      `gorm:"type:text;not null" json:"source"`
	SourceInvoiceID  *snowflake.ID   `gorm:"index" json:"source_invoice_id,omitempty"`
	SourceLineItemID *snowflake.ID   `gorm:"uniqueIndex:ux_revenue_records_source_line_item,where:source_line_item_id IS NOT NULL" json:"source_line_item_id,omitempty"`
	ClassTitle       *string         `gorm:"type:text" json:"class_title,omitempty"`
	LocationID       *snowflake.ID   `gorm:"index" json:"location_id,omitempty"`
	CreatedAt        time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (RevenueRecord) TableName() string { return "revenue_records" }
