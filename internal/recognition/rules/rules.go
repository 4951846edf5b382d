// Package rules decides which invoice line items become revenue records.
// Everything here is pure: no store access, no clock, no configuration reads.
package rules

import (
	"time"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/revrec/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/revrec/internal/ledger/domain"
	"github.com/smallbiznis/revrec/internal/recognition/domain"
)

// CheckInvoice applies the invoice-level gates in order: status, then the
// historical cutoff. A status change only qualifies when it moves into paid.
func CheckInvoice(trigger domain.Trigger, invoice invoicedomain.Invoice, cutoff time.Time) domain.Decision {
	if !invoice.IsPaid() {
		return domain.Decision{Reason: domain.SkipNotPaid}
	}
	if trigger.Path == domain.PathTransition && trigger.PreviousStatus == invoicedomain.InvoiceStatusPaid {
		return domain.Decision{Reason: domain.SkipAlreadyPaid}
	}
	if civilDate(invoice.InvoiceDate).Before(civilDate(cutoff)) {
		return domain.Decision{Reason: domain.SkipBeforeCutoff}
	}
	return domain.Decision{Eligible: true}
}

// Candidates builds one unsaved revenue record per line item with a positive
// amount. Lines without one are reported as exclusions.
func Candidates(invoice invoicedomain.Invoice, lines []domain.LineItemContext, policy domain.Policy) ([]ledgerdomain.RevenueRecord, []domain.Exclusion) {
	start, end := RecognitionPeriod(invoice)

	var (
		records    []ledgerdomain.RevenueRecord
		exclusions []domain.Exclusion
	)
	for _, line := range lines {
		item := line.LineItem
		if !item.Amount.Valid {
			exclusions = append(exclusions, domain.Exclusion{LineItemID: item.ID, Reason: domain.ExcludeMissingAmount})
			continue
		}
		if !item.Amount.Decimal.GreaterThan(decimal.Zero) {
			exclusions = append(exclusions, domain.Exclusion{LineItemID: item.ID, Reason: domain.ExcludeNonPositiveAmount})
			continue
		}

		invoiceID := invoice.ID
		lineItemID := item.ID
		records = append(records, ledgerdomain.RevenueRecord{
			FamilyID:         invoice.FamilyID,
			StudentID:        line.StudentID,
			ServiceID:        line.ServiceID,
			PeriodStart:      start,
			PeriodEnd:        end,
			Revenue:          item.Amount.Decimal,
			Source:           ledgerdomain.SourceTypeInvoice,
			SourceInvoiceID:  &invoiceID,
			SourceLineItemID: &lineItemID,
			ClassTitle:       line.ClassTitle,
			LocationID:       policy.LocationFor(line.ServiceCode),
		})
	}
	return records, exclusions
}

// Evaluate runs the invoice gates and, when they pass, the line item rules.
func Evaluate(trigger domain.Trigger, invoice invoicedomain.Invoice, lines []domain.LineItemContext, policy domain.Policy) domain.Evaluation {
	decision := CheckInvoice(trigger, invoice, policy.HistoricalCutoff)
	if !decision.Eligible {
		return domain.Evaluation{Decision: decision}
	}

	records, exclusions := Candidates(invoice, lines, policy)
	if len(records) == 0 {
		decision = domain.Decision{Reason: domain.SkipNoEligibleItems}
	}
	return domain.Evaluation{
		Decision:   decision,
		Candidates: records,
		Exclusions: exclusions,
	}
}

// RecognitionPeriod returns the service period revenue is attributed to.
// The start falls back to the invoice date; the end falls back to the due
// date and then the invoice date.
func RecognitionPeriod(invoice invoicedomain.Invoice) (time.Time, time.Time) {
	start := civilDate(invoice.InvoiceDate)
	if invoice.PeriodStart != nil {
		start = civilDate(*invoice.PeriodStart)
	}

	end := civilDate(invoice.InvoiceDate)
	switch {
	case invoice.PeriodEnd != nil:
		end = civilDate(*invoice.PeriodEnd)
	case invoice.DueDate != nil:
		end = civilDate(*invoice.DueDate)
	}
	return start, end
}

// civilDate drops the time of day and zone, keeping the calendar date.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
