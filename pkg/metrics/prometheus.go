package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ashare"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	storeRows   *prometheus.CounterVec
	storeWrites *prometheus.CounterVec
	factorGets  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		storeRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_rows_read_total",
				Help:      "Rows returned by store reads",
			},
			[]string{"table"},
		),
		storeWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_rows_written_total",
				Help:      "Rows written by store upserts",
			},
			[]string{"table"},
		),
		factorGets: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "factor_gets_total",
				Help:      "Factor Get calls",
			},
			[]string{"factor", "kind"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordStoreRead(table string, rows int) {
	r.storeRows.WithLabelValues(table).Add(float64(rows))
}

func (r *Recorder) RecordStoreWrite(table string, rows int) {
	r.storeWrites.WithLabelValues(table).Add(float64(rows))
}

func (r *Recorder) RecordFactorGet(name, kind string) {
	r.factorGets.WithLabelValues(name, kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
