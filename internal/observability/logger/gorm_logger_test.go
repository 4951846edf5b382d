package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM invoices":                                                "SELECT",
		"  insert into revenue_records (id) values (1) ON CONFLICT DO NOTHING": "INSERT",
		"WITH paid AS (SELECT id FROM invoices) UPDATE invoices SET status = 1": "SELECT",
		"(UPDATE invoices SET status = 'paid')":                                 "UPDATE",
		"":                                                                      "UNKNOWN",
		"VACUUM":                                                                "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, OperationFromSQL(sql), sql)
	}
}
