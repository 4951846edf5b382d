package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/revrec/internal/clock"
	"github.com/smallbiznis/revrec/internal/config"
	enrollmentdomain "github.com/smallbiznis/revrec/internal/enrollment/domain"
	invoicedomain "github.com/smallbiznis/revrec/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/revrec/internal/ledger/domain"
	obslogger "github.com/smallbiznis/revrec/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/revrec/internal/observability/metrics"
	"github.com/smallbiznis/revrec/internal/recognition/domain"
	"github.com/smallbiznis/revrec/internal/recognition/rules"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const replayPageSize = 200

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Policy     config.RecognitionSource
	Repo       domain.Repository
	Invoices   invoicedomain.Repository
	Ledger     ledgerdomain.Repository
	Directory  enrollmentdomain.Repository
	Lock       domain.ReplayLock   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	policy     config.RecognitionSource
	repo       domain.Repository
	invoices   invoicedomain.Repository
	ledger     ledgerdomain.Repository
	directory  enrollmentdomain.Repository
	lock       domain.ReplayLock
	obsMetrics *obsmetrics.Metrics
	tracer     trace.Tracer
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("recognition.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		policy:     p.Policy,
		repo:       p.Repo,
		invoices:   p.Invoices,
		ledger:     p.Ledger,
		directory:  p.Directory,
		lock:       p.Lock,
		obsMetrics: p.ObsMetrics,
		tracer:     otel.Tracer("revrec/recognition"),
	}
}

func (s *Service) OnInvoiceInserted(ctx context.Context, tx *gorm.DB, invoice invoicedomain.Invoice) (domain.Outcome, error) {
	return s.recognize(ctx, tx, domain.InsertTrigger(), invoice)
}

func (s *Service) OnInvoiceStatusChanged(ctx context.Context, tx *gorm.DB, previous invoicedomain.InvoiceStatus, invoice invoicedomain.Invoice) (domain.Outcome, error) {
	return s.recognize(ctx, tx, domain.TransitionTrigger(previous), invoice)
}

func (s *Service) Replay(ctx context.Context, invoiceID string) (domain.Outcome, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(invoiceID))
	if err != nil || id == 0 {
		return domain.Outcome{}, domain.ErrInvalidInvoiceID
	}
	return s.replayOne(ctx, id)
}

func (s *Service) ReplayPaid(ctx context.Context) (domain.ReplaySummary, error) {
	if s.lock != nil {
		token, ok, err := s.lock.TryLockReplay(ctx)
		if err != nil {
			return domain.ReplaySummary{}, err
		}
		if !ok {
			return domain.ReplaySummary{}, domain.ErrReplayInProgress
		}
		defer func() {
			if err := s.lock.ReleaseReplay(context.WithoutCancel(ctx), token); err != nil {
				s.log.Warn("failed to release replay lock", zap.Error(err))
			}
		}()
	}

	var (
		summary domain.ReplaySummary
		after   snowflake.ID
	)
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		ids, err := s.invoices.ListIDsByStatus(ctx, s.db, invoicedomain.InvoiceStatusPaid, after, replayPageSize)
		if err != nil {
			return summary, err
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			outcome, err := s.replayOne(ctx, id)
			if err != nil {
				return summary, err
			}
			summary.Invoices++
			if outcome.Eligible {
				summary.Eligible++
			}
			summary.Inserted += outcome.Inserted
		}
		after = ids[len(ids)-1]
	}

	obslogger.WithContext(ctx, s.log).Info("replayed paid invoices",
		zap.Int("invoices", summary.Invoices),
		zap.Int("eligible", summary.Eligible),
		zap.Int64("inserted", summary.Inserted),
	)
	return summary, nil
}

func (s *Service) replayOne(ctx context.Context, id snowflake.ID) (domain.Outcome, error) {
	var outcome domain.Outcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoices.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrInvoiceNotFound
		}

		outcome, err = s.recognize(ctx, tx, domain.ReplayTrigger(), *invoice)
		return err
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	return outcome, nil
}

// recognize is shared by every path. It writes nothing unless the invoice
// passes the gates, and writes all candidates in one idempotent statement.
func (s *Service) recognize(ctx context.Context, tx *gorm.DB, trigger domain.Trigger, invoice invoicedomain.Invoice) (domain.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "recognition.recognize", trace.WithAttributes(
		attribute.String("invoice.id", invoice.ID.String()),
		attribute.String("recognition.path", string(trigger.Path)),
	))
	defer span.End()

	outcome := domain.Outcome{InvoiceID: invoice.ID, Path: trigger.Path}

	cfg := s.policy.Get()
	decision := rules.CheckInvoice(trigger, invoice, cfg.HistoricalCutoff)
	if !decision.Eligible {
		outcome.SkipReason = decision.Reason
		s.finish(ctx, span, outcome, "skipped")
		return outcome, nil
	}

	lines, err := s.repo.ListLineItemContexts(ctx, tx, invoice.ID)
	if err != nil {
		return s.fail(ctx, span, outcome, fmt.Errorf("load line items for invoice %s: %w", invoice.ID, err))
	}

	locations, err := s.resolveLocations(ctx, tx, cfg)
	if err != nil {
		return s.fail(ctx, span, outcome, fmt.Errorf("resolve locations: %w", err))
	}

	eval := rules.Evaluate(trigger, invoice, lines, domain.Policy{
		HistoricalCutoff: cfg.HistoricalCutoff,
		Locations:        locations,
	})
	outcome.Eligible = eval.Decision.Eligible
	outcome.SkipReason = eval.Decision.Reason
	outcome.Candidates = len(eval.Candidates)
	outcome.Exclusions = eval.Exclusions
	if len(eval.Candidates) == 0 {
		s.finish(ctx, span, outcome, "empty")
		return outcome, nil
	}

	now := s.clock.Now()
	for i := range eval.Candidates {
		eval.Candidates[i].ID = s.genID.Generate()
		eval.Candidates[i].CreatedAt = now
	}

	inserted, err := s.ledger.InsertBatch(ctx, tx, eval.Candidates)
	if err != nil {
		return s.fail(ctx, span, outcome, fmt.Errorf("insert revenue records for invoice %s: %w", invoice.ID, err))
	}
	outcome.Inserted = inserted

	result := "recognized"
	if inserted == 0 {
		result = "duplicate"
	}
	s.finish(ctx, span, outcome, result)
	return outcome, nil
}

// resolveLocations turns the configured service to location code table into
// location ids. Codes missing from the directory are left out.
func (s *Service) resolveLocations(ctx context.Context, tx *gorm.DB, cfg config.RecognitionConfig) (map[string]snowflake.ID, error) {
	codes := cfg.LocationCodes()
	if len(codes) == 0 {
		return nil, nil
	}

	locations, err := s.directory.FindLocationsByCodes(ctx, tx, codes)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]snowflake.ID, len(locations))
	for _, loc := range locations {
		byCode[config.NormalizeCode(loc.Code)] = loc.ID
	}

	table := make(map[string]snowflake.ID, len(cfg.ServiceLocations))
	for serviceCode, locationCode := range cfg.ServiceLocations {
		id, ok := byCode[locationCode]
		if !ok {
			obslogger.WithContext(ctx, s.log).Warn("location code not found", zap.String("service_code", serviceCode), zap.String("location_code", locationCode))
			continue
		}
		table[serviceCode] = id
	}
	return table, nil
}

func (s *Service) finish(ctx context.Context, span trace.Span, outcome domain.Outcome, result string) {
	span.SetAttributes(
		attribute.String("recognition.outcome", result),
		attribute.Int("recognition.candidates", outcome.Candidates),
		attribute.Int64("recognition.inserted", outcome.Inserted),
	)
	s.obsMetrics.RecordRecognitionRun(ctx, string(outcome.Path), result)
	s.obsMetrics.RecordRevenueRecords(ctx, string(outcome.Path), outcome.Inserted)

	log := obslogger.WithContext(ctx, s.log)
	fields := []zap.Field{
		zap.String("invoice_id", outcome.InvoiceID.String()),
		zap.String("path", string(outcome.Path)),
		zap.String("outcome", result),
	}
	switch result {
	case "recognized":
		log.Info("revenue recognized", append(fields,
			zap.Int("candidates", outcome.Candidates),
			zap.Int64("inserted", outcome.Inserted),
			zap.Int("excluded", len(outcome.Exclusions)),
		)...)
	case "duplicate":
		log.Info("revenue already recognized; no-op", append(fields, zap.Int("candidates", outcome.Candidates))...)
	default:
		log.Debug("recognition skipped", append(fields, zap.String("reason", string(outcome.SkipReason)))...)
	}
}

func (s *Service) fail(ctx context.Context, span trace.Span, outcome domain.Outcome, err error) (domain.Outcome, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.obsMetrics.RecordRecognitionRun(ctx, string(outcome.Path), "error")
	obslogger.WithContext(ctx, s.log).Error("recognition failed",
		zap.String("invoice_id", outcome.InvoiceID.String()),
		zap.String("path", string(outcome.Path)),
		zap.Error(err),
	)
	return domain.Outcome{}, err
}
