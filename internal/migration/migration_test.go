package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/revrec/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/revrec/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	names := map[string]bool{}
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	for name := range names {
		if strings.HasSuffix(name, ".up.sql") {
			assert.True(t, names[strings.TrimSuffix(name, ".up.sql")+".down.sql"], "missing down for %s", name)
		}
	}
}

func TestRevenueMigrationHasPartialUniqueIndex(t *testing.T) {
	body, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000003_revenue_records.up.sql")
	require.NoError(t, err)

	sql := strings.ToLower(string(body))
	assert.Contains(t, sql, "create unique index")
	assert.Contains(t, sql, "ux_revenue_records_source_line_item")
	assert.Contains(t, sql, "where source_line_item_id is not null")
}

func TestRunAutoMigratesOutsidePostgres(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Run(db))
	require.NoError(t, Run(db))

	for _, table := range []string{"locations", "services", "enrollments", "invoices", "invoice_line_items", "revenue_records"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex(&ledgerdomain.RevenueRecord{}, "ux_revenue_records_source_line_item"))
}

func TestRunKeepsExistingSchemaAndRows(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Run(db))
	require.NoError(t, db.Create(&invoicedomain.InvoiceLineItem{
		ID:          1,
		InvoiceID:   10,
		Description: "Tutoring",
		Amount:      decimal.NewNullDecimal(decimal.RequireFromString("120.00")),
	}).Error)

	require.NoError(t, Run(db))

	var item invoicedomain.InvoiceLineItem
	require.NoError(t, db.First(&item, 1).Error)
	require.True(t, item.Amount.Valid)
	assert.True(t, item.Amount.Decimal.Equal(decimal.RequireFromString("120")))
}

func TestRollbackRejectsNonPositiveSteps(t *testing.T) {
	assert.Error(t, Rollback(nil, 0))
	assert.Error(t, Rollback(nil, -1))
}
