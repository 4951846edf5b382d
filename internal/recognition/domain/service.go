package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/revrec/internal/invoice/domain"
	"gorm.io/gorm"
)

// Handler reacts to invoice writes. Both methods run inside the caller's
// transaction: a returned error must abort the invoice write.
type Handler interface {
	OnInvoiceInserted(ctx context.Context, tx *gorm.DB, invoice invoicedomain.Invoice) (Outcome, error)
	OnInvoiceStatusChanged(ctx context.Context, tx *gorm.DB, previous invoicedomain.InvoiceStatus, invoice invoicedomain.Invoice) (Outcome, error)
}

type Service interface {
	Handler
	// Replay re-runs recognition for a single invoice in its own transaction.
	Replay(ctx context.Context, invoiceID string) (Outcome, error)
	// ReplayPaid re-runs recognition for every paid invoice, one transaction
	// per invoice.
	ReplayPaid(ctx context.Context) (ReplaySummary, error)
}

// ReplayLock serializes bulk replays across instances.
type ReplayLock interface {
	TryLockReplay(ctx context.Context) (string, bool, error)
	ReleaseReplay(ctx context.Context, token string) error
}

type Repository interface {
	ListLineItemContexts(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]LineItemContext, error)
}

var (
	ErrInvalidInvoiceID = errors.New("invalid_invoice_id")
	ErrInvoiceNotFound  = errors.New("invoice_not_found")
	ErrReplayInProgress = errors.New("replay_in_progress")
)
