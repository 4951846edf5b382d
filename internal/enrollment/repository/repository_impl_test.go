package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/revrec/internal/enrollment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestFindLocationsByCodes(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.Location{}))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&[]domain.Location{
		{ID: 1, Code: "west-campus", Name: "West Campus", CreatedAt: now},
		{ID: 2, Code: "downtown", Name: "Downtown", CreatedAt: now},
		{ID: 3, Code: "north", Name: "North", CreatedAt: now},
	}).Error)

	repo := Provide()
	ctx := context.Background()

	locations, err := repo.FindLocationsByCodes(ctx, db, []string{"west-campus", "downtown", "missing"})
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, "downtown", locations[0].Code)
	assert.Equal(t, "west-campus", locations[1].Code)

	locations, err = repo.FindLocationsByCodes(ctx, db, nil)
	require.NoError(t, err)
	assert.Empty(t, locations)
}

func TestFindLocationsByCodesNormalizesStoredCodes(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.Location{}))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&[]domain.Location{
		{ID: 1, Code: "Main Campus", Name: "Main Campus", CreatedAt: now},
		{ID: 2, Code: "north", Name: "North", CreatedAt: now},
	}).Error)

	locations, err := Provide().FindLocationsByCodes(context.Background(), db, []string{"main-campus"})
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, int64(1), locations[0].ID.Int64())
}
