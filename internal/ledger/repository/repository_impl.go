package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/revrec/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, records []domain.RevenueRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "source_line_item_id"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "source_line_item_id IS NOT NULL"},
			}},
			DoNothing: true,
		}).
		Create(&records)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.RevenueRecord, error) {
	var records []domain.RevenueRecord
	err := db.WithContext(ctx).
		Where("source_invoice_id = ?", invoiceID).
		Order("source_line_item_id asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) ListByFamily(ctx context.Context, db *gorm.DB, familyID snowflake.ID, after snowflake.ID, limit int) ([]domain.RevenueRecord, error) {
	var records []domain.RevenueRecord
	err := db.WithContext(ctx).
		Where("family_id = ? AND id > ?", familyID, after).
		Order("id asc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) CountBySourceLineItem(ctx context.Context, db *gorm.DB, lineItemID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.RevenueRecord{}).
		Where("source_line_item_id = ?", lineItemID).
		Count(&count).Error
	return count, err
}
