package repository

import (
	"context"

	"github.com/smallbiznis/revrec/internal/config"
	"github.com/smallbiznis/revrec/internal/enrollment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// FindLocationsByCodes matches on the normalized slug of both sides, so a
// stored code of "Main Campus" is found by "main-campus". The locations
// table is a small reference list and is filtered in memory.
func (r *repo) FindLocationsByCodes(ctx context.Context, db *gorm.DB, codes []string) ([]domain.Location, error) {
	wanted := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if normalized := config.NormalizeCode(code); normalized != "" {
			wanted[normalized] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	var locations []domain.Location
	err := db.WithContext(ctx).
		Order("code asc").
		Find(&locations).Error
	if err != nil {
		return nil, err
	}

	matched := make([]domain.Location, 0, len(wanted))
	for _, loc := range locations {
		if _, ok := wanted[config.NormalizeCode(loc.Code)]; ok {
			matched = append(matched, loc)
		}
	}
	return matched, nil
}
