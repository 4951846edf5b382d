package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("path", "transition"),
		attribute.String("invoice_id", "123"),
		attribute.String("outcome", "recognized"),
	)
	require.Len(t, attrs, 2)
	keys := []attribute.Key{attrs[0].Key, attrs[1].Key}
	assert.Contains(t, keys, attribute.Key("path"))
	assert.Contains(t, keys, attribute.Key("outcome"))
}

func TestRecordersTolerateNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRecognitionRun(context.Background(), "insert", "recognized")
		m.RecordRevenueRecords(context.Background(), "insert", 2)
		m.RecordHTTPRequest(context.Background(), "/health", 200)
	})
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "revrec"}, noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.RecordRecognitionRun(context.Background(), "transition", "skipped")
		m.RecordRevenueRecords(context.Background(), "transition", 3)
	})
}
