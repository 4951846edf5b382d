// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states. Only paid carries
// meaning for revenue recognition.
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusSent  InvoiceStatus = "sent"
	InvoiceStatusPaid  InvoiceStatus = "paid"
	InvoiceStatusVoid  InvoiceStatus = "void"
)

// Invoice is a bill issued to a family.
type Invoice struct {
	ID          snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	FamilyID    snowflake.ID      `gorm:"not null;index" json:"family_id"`
	Status      InvoiceStatus     `gorm:"type:text;not null;index" json:"status"`
	InvoiceDate time.Time         `gorm:"type:date;not null" json:"invoice_date"`
	PeriodStart *time.Time        `gorm:"type:date" json:"period_start,omitempty"`
	PeriodEnd   *time.Time        `gorm:"type:date" json:"period_end,omitempty"`
	DueDate     *time.Time        `gorm:"type:date" json:"due_date,omitempty"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null" json:"metadata"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// IsPaid reports whether the invoice is in the paid state.
func (i Invoice) IsPaid() bool { return i.Status == InvoiceStatusPaid }

// InvoiceLineItem is one charge on an invoice. Amount may be null for
// informational lines.
type InvoiceLineItem struct {
	ID           snowflake.ID        `gorm:"primaryKey;autoIncrement:false" json:"id"`
	InvoiceID    snowflake.ID        `gorm:"not null;index" json:"invoice_id"`
	EnrollmentID *snowflake.ID       `gorm:"index" json:"enrollment_id,omitempty"`
	Description  string              `gorm:"type:text;not null" json:"description"`
	Amount       decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"amount"`
	CreatedAt    time.Time           `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceLineItem) TableName() string { return "invoice_line_items" }
