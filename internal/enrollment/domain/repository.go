package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// FindLocationsByCodes compares codes by their normalized slug form.
	FindLocationsByCodes(ctx context.Context, db *gorm.DB, codes []string) ([]Location, error)
}
