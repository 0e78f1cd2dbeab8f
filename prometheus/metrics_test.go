package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHelpers(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordSaleOperation("create", "success")
	m.RecordSaleOperation("create", "success")
	m.RecordReservation("insufficient_stock")
	m.RecordCompensation("released")
	m.RecordAuditEvent("dropped")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SaleOperationsCounter.WithLabelValues("create", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StockReservations.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StockCompensations.WithLabelValues("released")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditEventsCounter.WithLabelValues("dropped")))
}

func TestTrackDBOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.TrackDBOperation("reserve_stock")(time.Now().Add(-10 * time.Millisecond))

	assert.Equal(t, 1, testutil.CollectAndCount(m.DBOperationDuration, "test_db_operation_duration_seconds"))
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("sale", prometheus.NewRegistry())
		NewMetrics("sale", prometheus.NewRegistry())
	})
}
