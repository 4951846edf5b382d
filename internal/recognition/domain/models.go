// Package domain describes how paid invoices are turned into revenue records.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/revrec/internal/config"
	invoicedomain "github.com/smallbiznis/revrec/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/revrec/internal/ledger/domain"
)

// Path names the event that asked for recognition.
type Path string

const (
	PathInsert     Path = "insert"
	PathTransition Path = "transition"
	PathReplay     Path = "replay"
)

// Trigger carries the event kind and, for status changes, the status the
// invoice held before the update.
type Trigger struct {
	Path           Path
	PreviousStatus invoicedomain.InvoiceStatus
}

func InsertTrigger() Trigger { return Trigger{Path: PathInsert} }

func TransitionTrigger(previous invoicedomain.InvoiceStatus) Trigger {
	return Trigger{Path: PathTransition, PreviousStatus: previous}
}

func ReplayTrigger() Trigger { return Trigger{Path: PathReplay} }

// SkipReason explains why an invoice produced no revenue.
type SkipReason string

const (
	SkipNotPaid         SkipReason = "status_not_paid"
	SkipAlreadyPaid     SkipReason = "already_paid"
	SkipBeforeCutoff    SkipReason = "before_historical_cutoff"
	SkipNoEligibleItems SkipReason = "no_eligible_line_items"
)

// Decision is the invoice-level eligibility verdict.
type Decision struct {
	Eligible bool
	Reason   SkipReason
}

// ExclusionReason explains why a single line item was left out.
type ExclusionReason string

const (
	ExcludeMissingAmount     ExclusionReason = "missing_amount"
	ExcludeNonPositiveAmount ExclusionReason = "non_positive_amount"
)

type Exclusion struct {
	LineItemID snowflake.ID    `json:"line_item_id"`
	Reason     ExclusionReason `json:"reason"`
}

// LineItemContext is a line item joined with its enrollment and service.
// Enrollment fields are nil when the enrollment id does not resolve.
type LineItemContext struct {
	LineItem    invoicedomain.InvoiceLineItem
	StudentID   *snowflake.ID
	ServiceID   *snowflake.ID
	ServiceCode string
	ClassTitle  *string
}

// Policy is the resolved configuration recognition evaluates against.
type Policy struct {
	HistoricalCutoff time.Time
	// Locations maps a normalized service code to a location id.
	Locations map[string]snowflake.ID
}

// LocationFor resolves the location attributed to a service code.
func (p Policy) LocationFor(serviceCode string) *snowflake.ID {
	code := config.NormalizeCode(serviceCode)
	if code == "" {
		return nil
	}
	id, ok := p.Locations[code]
	if !ok {
		return nil
	}
	return &id
}

// Evaluation is the full, side-effect free result of running the rules over
// one invoice. Candidates have no id or creation time yet.
type Evaluation struct {
	Decision   Decision
	Candidates []ledgerdomain.RevenueRecord
	Exclusions []Exclusion
}

// Outcome summarizes a recognition run that has been applied to the store.
type Outcome struct {
	InvoiceID  snowflake.ID `json:"invoice_id"`
	Path       Path         `json:"path"`
	Eligible   bool         `json:"eligible"`
	SkipReason SkipReason   `json:"skip_reason,omitempty"`
	Candidates int          `json:"candidates"`
	Inserted   int64        `json:"inserted"`
	Exclusions []Exclusion  `json:"exclusions,omitempty"`
}

// ReplaySummary aggregates a replay across many invoices.
type ReplaySummary struct {
	Invoices int   `json:"invoices"`
	Eligible int   `json:"eligible"`
	Inserted int64 `json:"inserted"`
}
