package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/revrec/internal/ledger/domain"
	"github.com/smallbiznis/revrec/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo ledgerdomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo ledgerdomain.Repository
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("ledger.service"),
		repo: p.Repo,
	}
}

func (s *Service) ListByInvoice(ctx context.Context, invoiceID string) ([]ledgerdomain.RevenueRecord, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(invoiceID))
	if err != nil || id == 0 {
		return nil, ledgerdomain.ErrInvalidInvoiceID
	}

	records, err := s.repo.ListByInvoice(ctx, s.db, id)
	if err != nil {
		s.log.Error("failed to list revenue records", zap.String("invoice_id", id.String()), zap.Error(err))
		return nil, err
	}
	if records == nil {
		records = []ledgerdomain.RevenueRecord{}
	}
	return records, nil
}

func (s *Service) ListByFamily(ctx context.Context, req ledgerdomain.ListRevenueRequest) (ledgerdomain.ListRevenueResponse, error) {
	familyID, err := snowflake.ParseString(strings.TrimSpace(req.FamilyID))
	if err != nil || familyID == 0 {
		return ledgerdomain.ListRevenueResponse{}, ledgerdomain.ErrInvalidFamilyID
	}

	cursor, err := pagination.DecodeCursor(strings.TrimSpace(req.PageToken))
	if err != nil {
		return ledgerdomain.ListRevenueResponse{}, err
	}
	var after snowflake.ID
	if cursor != nil {
		after, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return ledgerdomain.ListRevenueResponse{}, pagination.ErrInvalidPageToken
		}
	}

	limit := req.Limit()
	records, err := s.repo.ListByFamily(ctx, s.db, familyID, after, limit+1)
	if err != nil {
		return ledgerdomain.ListRevenueResponse{}, err
	}

	page, info, err := pagination.BuildCursorPageInfo(records, limit, func(r ledgerdomain.RevenueRecord) pagination.Cursor {
		return pagination.Cursor{ID: r.ID.String()}
	})
	if err != nil {
		return ledgerdomain.ListRevenueResponse{}, err
	}
	if page == nil {
		page = []ledgerdomain.RevenueRecord{}
	}
	return ledgerdomain.ListRevenueResponse{PageInfo: info, Records: page}, nil
}
