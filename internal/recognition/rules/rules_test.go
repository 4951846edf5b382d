package rules

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/revrec/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/revrec/internal/ledger/domain"
	"github.com/smallbiznis/revrec/internal/recognition/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cutoff = date(2026, 1, 1)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func idPtr(id int64) *snowflake.ID {
	v := snowflake.ID(id)
	return &v
}

func amount(raw string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(raw))
}

func paidInvoice(invoiceDate time.Time) invoicedomain.Invoice {
	return invoicedomain.Invoice{
		ID:          100,
		FamilyID:    7,
		Status:      invoicedomain.InvoiceStatusPaid,
		InvoiceDate: invoiceDate,
	}
}

func line(id int64, amt decimal.NullDecimal) domain.LineItemContext {
	return domain.LineItemContext{
		LineItem: invoicedomain.InvoiceLineItem{
			ID:        snowflake.ID(id),
			InvoiceID: 100,
			Amount:    amt,
		},
	}
}

func TestCheckInvoice(t *testing.T) {
	cases := []struct {
		name     string
		trigger  domain.Trigger
		status   invoicedomain.InvoiceStatus
		date     time.Time
		eligible bool
		reason   domain.SkipReason
	}{
		{"insert paid after cutoff", domain.InsertTrigger(), invoicedomain.InvoiceStatusPaid, date(2026, 2, 1), true, ""},
		{"insert paid on cutoff", domain.InsertTrigger(), invoicedomain.InvoiceStatusPaid, cutoff, true, ""},
		{"insert paid before cutoff", domain.InsertTrigger(), invoicedomain.InvoiceStatusPaid, date(2025, 6, 1), false, domain.SkipBeforeCutoff},
		{"insert draft", domain.InsertTrigger(), invoicedomain.InvoiceStatusDraft, date(2026, 2, 1), false, domain.SkipNotPaid},
		{"sent to paid", domain.TransitionTrigger(invoicedomain.InvoiceStatusSent), invoicedomain.InvoiceStatusPaid, date(2026, 2, 1), true, ""},
		{"paid resaved", domain.TransitionTrigger(invoicedomain.InvoiceStatusPaid), invoicedomain.InvoiceStatusPaid, date(2026, 2, 1), false, domain.SkipAlreadyPaid},
		{"paid to void", domain.TransitionTrigger(invoicedomain.InvoiceStatusPaid), invoicedomain.InvoiceStatusVoid, date(2026, 2, 1), false, domain.SkipNotPaid},
		{"draft to sent", domain.TransitionTrigger(invoicedomain.InvoiceStatusDraft), invoicedomain.InvoiceStatusSent, date(2026, 2, 1), false, domain.SkipNotPaid},
		{"transition before cutoff", domain.TransitionTrigger(invoicedomain.InvoiceStatusSent), invoicedomain.InvoiceStatusPaid, date(2025, 12, 31), false, domain.SkipBeforeCutoff},
		{"replay paid", domain.ReplayTrigger(), invoicedomain.InvoiceStatusPaid, date(2026, 3, 1), true, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := paidInvoice(tc.date)
			inv.Status = tc.status

			decision := CheckInvoice(tc.trigger, inv, cutoff)
			assert.Equal(t, tc.eligible, decision.Eligible)
			assert.Equal(t, tc.reason, decision.Reason)
		})
	}
}

func TestCheckInvoiceComparesCalendarDates(t *testing.T) {
	// Late on the cutoff day in a zone east of UTC is still the cutoff date.
	zone := time.FixedZone("WIB", 7*60*60)
	inv := paidInvoice(time.Date(2026, 1, 1, 23, 0, 0, 0, zone))

	decision := CheckInvoice(domain.InsertTrigger(), inv, cutoff)
	assert.True(t, decision.Eligible)
}

func TestEvaluatePartialEligibility(t *testing.T) {
	inv := paidInvoice(date(2026, 2, 1))
	lines := []domain.LineItemContext{
		line(1, amount("120.00")),
		line(2, amount("0.00")),
		line(3, amount("45.50")),
	}

	eval := Evaluate(domain.InsertTrigger(), inv, lines, domain.Policy{HistoricalCutoff: cutoff})

	require.True(t, eval.Decision.Eligible)
	require.Len(t, eval.Candidates, 2)
	assert.Equal(t, snowflake.ID(1), *eval.Candidates[0].SourceLineItemID)
	assert.Equal(t, snowflake.ID(3), *eval.Candidates[1].SourceLineItemID)
	assert.Equal(t, []domain.Exclusion{{LineItemID: 2, Reason: domain.ExcludeNonPositiveAmount}}, eval.Exclusions)
}

func TestEvaluateExcludesMissingAndNegativeAmounts(t *testing.T) {
	inv := paidInvoice(date(2026, 2, 1))
	lines := []domain.LineItemContext{
		line(1, decimal.NullDecimal{}),
		line(2, amount("-10.00")),
	}

	eval := Evaluate(domain.InsertTrigger(), inv, lines, domain.Policy{HistoricalCutoff: cutoff})

	assert.False(t, eval.Decision.Eligible)
	assert.Equal(t, domain.SkipNoEligibleItems, eval.Decision.Reason)
	assert.Empty(t, eval.Candidates)
	assert.Equal(t, []domain.Exclusion{
		{LineItemID: 1, Reason: domain.ExcludeMissingAmount},
		{LineItemID: 2, Reason: domain.ExcludeNonPositiveAmount},
	}, eval.Exclusions)
}

func TestEvaluateSkipsLinesWhenInvoiceIneligible(t *testing.T) {
	inv := paidInvoice(date(2025, 6, 1))
	lines := []domain.LineItemContext{line(1, amount("120.00"))}

	eval := Evaluate(domain.InsertTrigger(), inv, lines, domain.Policy{HistoricalCutoff: cutoff})

	assert.False(t, eval.Decision.Eligible)
	assert.Equal(t, domain.SkipBeforeCutoff, eval.Decision.Reason)
	assert.Empty(t, eval.Candidates)
	assert.Empty(t, eval.Exclusions)
}

func TestEvaluateBuildsRecordFromEnrollment(t *testing.T) {
	inv := paidInvoice(date(2026, 2, 1))
	inv.PeriodStart = datePtr(2026, 2, 1)
	inv.PeriodEnd = datePtr(2026, 2, 28)

	title := "Algebra II"
	ctxLine := line(55, amount("120.00"))
	ctxLine.StudentID = idPtr(11)
	ctxLine.ServiceID = idPtr(22)
	ctxLine.ServiceCode = "EA Tutoring"
	ctxLine.ClassTitle = &title

	policy := domain.Policy{
		HistoricalCutoff: cutoff,
		Locations:        map[string]snowflake.ID{"ea-tutoring": 900},
	}

	eval := Evaluate(domain.TransitionTrigger(invoicedomain.InvoiceStatusSent), inv, []domain.LineItemContext{ctxLine}, policy)
	require.Len(t, eval.Candidates, 1)

	rec := eval.Candidates[0]
	assert.Equal(t, snowflake.ID(7), rec.FamilyID)
	assert.Equal(t, snowflake.ID(11), *rec.StudentID)
	assert.Equal(t, snowflake.ID(22), *rec.ServiceID)
	assert.True(t, rec.Revenue.Equal(decimal.RequireFromString("120.00")))
	assert.Equal(t, ledgerdomain.SourceTypeInvoice, rec.Source)
	assert.Equal(t, snowflake.ID(100), *rec.SourceInvoiceID)
	assert.Equal(t, snowflake.ID(55), *rec.SourceLineItemID)
	assert.Equal(t, "Algebra II", *rec.ClassTitle)
	require.NotNil(t, rec.LocationID)
	assert.Equal(t, snowflake.ID(900), *rec.LocationID)
	assert.Equal(t, date(2026, 2, 1), rec.PeriodStart)
	assert.Equal(t, date(2026, 2, 28), rec.PeriodEnd)
}

func TestEvaluateUnresolvedEnrollmentLeavesFieldsNull(t *testing.T) {
	inv := paidInvoice(date(2026, 2, 1))

	eval := Evaluate(domain.InsertTrigger(), inv, []domain.LineItemContext{line(1, amount("30.00"))}, domain.Policy{
		HistoricalCutoff: cutoff,
		Locations:        map[string]snowflake.ID{"ea-tutoring": 900},
	})

	require.Len(t, eval.Candidates, 1)
	rec := eval.Candidates[0]
	assert.Nil(t, rec.StudentID)
	assert.Nil(t, rec.ServiceID)
	assert.Nil(t, rec.ClassTitle)
	assert.Nil(t, rec.LocationID)
}

func TestRecognitionPeriod(t *testing.T) {
	cases := []struct {
		name        string
		periodStart *time.Time
		periodEnd   *time.Time
		dueDate     *time.Time
		wantStart   time.Time
		wantEnd     time.Time
	}{
		{"explicit period", datePtr(2026, 3, 1), datePtr(2026, 3, 31), datePtr(2026, 3, 15), date(2026, 3, 1), date(2026, 3, 31)},
		{"falls back to due date", nil, nil, datePtr(2026, 3, 15), date(2026, 3, 1), date(2026, 3, 15)},
		{"falls back to invoice date", nil, nil, nil, date(2026, 3, 1), date(2026, 3, 1)},
		{"start only", datePtr(2026, 2, 20), nil, nil, date(2026, 2, 20), date(2026, 3, 1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := paidInvoice(date(2026, 3, 1))
			inv.PeriodStart = tc.periodStart
			inv.PeriodEnd = tc.periodEnd
			inv.DueDate = tc.dueDate

			start, end := RecognitionPeriod(inv)
			assert.Equal(t, tc.wantStart, start)
			assert.Equal(t, tc.wantEnd, end)
		})
	}
}

func TestPolicyLocationForNormalizesCodes(t *testing.T) {
	policy := domain.Policy{Locations: map[string]snowflake.ID{"ea-tutoring": 900}}

	require.NotNil(t, policy.LocationFor(" EA Tutoring "))
	assert.Nil(t, policy.LocationFor("piano"))
	assert.Nil(t, policy.LocationFor(""))
}
