package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Record outcomes counted by Metrics.
const (
	OutcomeDelivered = "delivered"
	OutcomeMalformed = "malformed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Sink delivery statuses counted by Metrics.
const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusPanic = "panic"
)

// Metrics holds the Prometheus collectors of a Dispatcher.
type Metrics struct {
	records      *prometheus.CounterVec // Records processed by outcome
	deliveries   *prometheus.CounterVec // Sink deliveries by sink and status
	tickDuration prometheus.Histogram
	index        prometheus.Gauge // Next record index
}

// NewMetrics creates the dispatcher collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postflow",
			Subsystem: "dispatcher",
			Name:      "records_total",
			Help:      "Total number of records processed by outcome",
		}, []string{"outcome"}),

		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postflow",
			Subsystem: "dispatcher",
			Name:      "sink_deliveries_total",
			Help:      "Total number of sink deliveries by sink and status",
		}, []string{"sink", "status"}),

		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "postflow",
			Subsystem: "dispatcher",
			Name:      "tick_duration_seconds",
			Help:      "Time spent processing one record, including fan-out",
			Buckets:   prometheus.DefBuckets,
		}),

		index: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "postflow",
			Subsystem: "dispatcher",
			Name:      "record_index",
			Help:      "Index of the next record to process",
		}),
	}

	for _, c := range []prometheus.Collector{m.records, m.deliveries, m.tickDuration, m.index} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) record(outcome string) {
	m.records.WithLabelValues(outcome).Inc()
}

func (m *Metrics) delivery(sink, status string) {
	m.deliveries.WithLabelValues(sink, status).Inc()
}
