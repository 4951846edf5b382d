package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/revrec/internal/clock"
	invoicedomain "github.com/smallbiznis/revrec/internal/invoice/domain"
	obslogger "github.com/smallbiznis/revrec/internal/observability/logger"
	recognitiondomain "github.com/smallbiznis/revrec/internal/recognition/domain"
	"github.com/smallbiznis/revrec/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	dateLayout   = "2006-01-02"
	maxStatusLen = 32
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       invoicedomain.Repository
	Recognizer recognitiondomain.Handler
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	repo       invoicedomain.Repository
	recognizer recognitiondomain.Handler
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("invoice.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		recognizer: p.Recognizer,
	}
}

// Import stores an invoice with its line items and runs recognition in the
// same transaction, so a recognition failure leaves nothing behind.
func (s *Service) Import(ctx context.Context, req invoicedomain.ImportInvoiceRequest) (invoicedomain.InvoiceDetail, error) {
	now := s.clock.Now()

	invoice, err := s.buildInvoice(req, now)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	items, err := s.buildLineItems(invoice.ID, req.LineItems, now)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	var outcome recognitiondomain.Outcome
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertInvoice(ctx, tx, &invoice); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return invoicedomain.ErrInvoiceExists
			}
			return err
		}
		if err := s.repo.InsertLineItems(ctx, tx, items); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return invoicedomain.ErrLineItemExists
			}
			return err
		}

		outcome, err = s.recognizer.OnInvoiceInserted(ctx, tx, invoice)
		return err
	})
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	obslogger.WithContext(ctx, s.log).Info("invoice imported",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("status", string(invoice.Status)),
		zap.Int("line_items", len(items)),
		zap.Int64("revenue_records", outcome.Inserted),
	)
	return invoicedomain.InvoiceDetail{Invoice: invoice, LineItems: items}, nil
}

// UpdateStatus saves a new status and lets recognition observe the change.
// Saving the status an invoice already has still counts as an update.
func (s *Service) UpdateStatus(ctx context.Context, req invoicedomain.UpdateStatusRequest) (invoicedomain.Invoice, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidInvoiceID
	}
	status, err := parseStatus(req.Status)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	var (
		updated  invoicedomain.Invoice
		previous invoicedomain.InvoiceStatus
		outcome  recognitiondomain.Outcome
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}

		now := s.clock.Now()
		if err := s.repo.UpdateStatus(ctx, tx, id, status, now); err != nil {
			return err
		}
		previous = invoice.Status
		invoice.Status = status
		invoice.UpdatedAt = now

		outcome, err = s.recognizer.OnInvoiceStatusChanged(ctx, tx, previous, *invoice)
		if err != nil {
			return err
		}
		updated = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	obslogger.WithContext(ctx, s.log).Info("invoice status updated",
		zap.String("invoice_id", id.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.Int64("revenue_records", outcome.Inserted),
	)
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.InvoiceDetail, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidInvoiceID
	}

	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	if invoice == nil {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvoiceNotFound
	}

	items, err := s.repo.ListLineItems(ctx, s.db, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	if items == nil {
		items = []invoicedomain.InvoiceLineItem{}
	}
	return invoicedomain.InvoiceDetail{Invoice: *invoice, LineItems: items}, nil
}

func (s *Service) buildInvoice(req invoicedomain.ImportInvoiceRequest, now time.Time) (invoicedomain.Invoice, error) {
	id := s.genID.Generate()
	if strings.TrimSpace(req.ID) != "" {
		parsed, err := parseID(req.ID)
		if err != nil {
			return invoicedomain.Invoice{}, invoicedomain.ErrInvalidInvoiceID
		}
		id = parsed
	}

	familyID, err := parseID(req.FamilyID)
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidFamily
	}
	status, err := parseStatus(req.Status)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	invoiceDate, err := parseDate(req.InvoiceDate)
	if err != nil || invoiceDate == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidInvoiceDate
	}
	periodStart, err := parseDate(req.PeriodStart)
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidPeriod
	}
	periodEnd, err := parseDate(req.PeriodEnd)
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidPeriod
	}
	if periodStart != nil && periodEnd != nil && periodEnd.Before(*periodStart) {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidPeriod
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidDueDate
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	return invoicedomain.Invoice{
		ID:          id,
		FamilyID:    familyID,
		Status:      status,
		InvoiceDate: *invoiceDate,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		DueDate:     dueDate,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *Service) buildLineItems(invoiceID snowflake.ID, reqs []invoicedomain.ImportLineItemRequest, now time.Time) ([]invoicedomain.InvoiceLineItem, error) {
	items := make([]invoicedomain.InvoiceLineItem, 0, len(reqs))
	for _, req := range reqs {
		id := s.genID.Generate()
		if strings.TrimSpace(req.ID) != "" {
			parsed, err := parseID(req.ID)
			if err != nil {
				return nil, invoicedomain.ErrInvalidLineItemID
			}
			id = parsed
		}

		var enrollmentID *snowflake.ID
		if strings.TrimSpace(req.EnrollmentID) != "" {
			parsed, err := parseID(req.EnrollmentID)
			if err != nil {
				return nil, invoicedomain.ErrInvalidEnrollment
			}
			enrollmentID = &parsed
		}

		var amount decimal.NullDecimal
		if raw := strings.TrimSpace(req.Amount); raw != "" {
			value, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, invoicedomain.ErrInvalidAmount
			}
			// Amounts are whole cents; sub-cent input is rejected, not rounded.
			if !value.Equal(value.Truncate(2)) {
				return nil, invoicedomain.ErrInvalidAmount
			}
			amount = decimal.NewNullDecimal(value.Truncate(2))
		}

		items = append(items, invoicedomain.InvoiceLineItem{
			ID:           id,
			InvoiceID:    invoiceID,
			EnrollmentID: enrollmentID,
			Description:  strings.TrimSpace(req.Description),
			Amount:       amount,
			CreatedAt:    now,
		})
	}
	return items, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, invoicedomain.ErrInvalidInvoiceID
	}
	return id, nil
}

// parseStatus accepts any lowercase token so statuses the billing system
// adds later are stored as-is. Only paid drives recognition.
func parseStatus(value string) (invoicedomain.InvoiceStatus, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || len(value) > maxStatusLen {
		return "", invoicedomain.ErrInvalidStatus
	}
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return "", invoicedomain.ErrInvalidStatus
		}
	}
	return invoicedomain.InvoiceStatus(value), nil
}

// parseDate returns nil for an empty value.
func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
