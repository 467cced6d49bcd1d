package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for conversion processing.
type Metrics struct {
	Processed *prometheus.CounterVec
	Blocked   prometheus.Counter
	Flagged   prometheus.Counter
	Duplicate prometheus.Counter
	Duration  prometheus.Histogram
}

// New creates a Metrics instance with all conversion metrics registered.
func New() *Metrics {
	return &Metrics{
		Processed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "refward_conversions_processed_total",
			Help: "Settled conversions by type",
		}, []string{"type"}),
		Blocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refward_conversions_blocked_total",
			Help: "Conversions auto-blocked by fraud scoring",
		}),
		Flagged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refward_conversions_flagged_total",
			Help: "Conversions flagged for review but settled",
		}),
		Duplicate: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refward_conversions_duplicate_total",
			Help: "Conversion deliveries that lost the idempotency gate",
		}),
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "refward_conversion_processing_seconds",
			Help:    "End to end conversion processing time",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IncrementProcessed records a settled conversion by type.
func (m *Metrics) IncrementProcessed(conversionType string) {
	m.Processed.WithLabelValues(conversionType).Inc()
}

// IncrementBlocked records an auto-blocked conversion.
func (m *Metrics) IncrementBlocked() {
	m.Blocked.Inc()
}

// IncrementFlagged records a flagged-but-settled conversion.
func (m *Metrics) IncrementFlagged() {
	m.Flagged.Inc()
}

// IncrementDuplicate records a duplicate delivery.
func (m *Metrics) IncrementDuplicate() {
	m.Duplicate.Inc()
}

// ObserveDuration records end to end processing time.
func (m *Metrics) ObserveDuration(d time.Duration) {
	m.Duration.Observe(d.Seconds())
}
