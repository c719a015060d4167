package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordStoreRead("stock_daily", 3)
	r.RecordStoreRead("stock_daily", 2)
	r.RecordStoreWrite("adj_factor", 7)
	r.RecordFactorGet("close", "continuous")
	r.RecordError("store_read")
	r.RecordLatency("factor_get", 0.01)

	assert.Equal(t, 5.0, testutil.ToFloat64(r.storeRows.WithLabelValues("stock_daily")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.storeWrites.WithLabelValues("adj_factor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.factorGets.WithLabelValues("close", "continuous")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("store_read")))

	n, err := testutil.GatherAndCount(reg, "ashare_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordersOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
