package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the code registry.
type Metrics struct {
	CodesIssued         prometheus.Counter
	IssueRateLimited    prometheus.Counter
	GenerationExhausted prometheus.Counter
	ValidationFailures  *prometheus.CounterVec
}

// New creates a Metrics instance with all code registry metrics registered.
func New() *Metrics {
	return &Metrics{
		CodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refward_codes_issued_total",
			Help: "Total number of referral codes issued",
		}),
		IssueRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refward_code_issue_rate_limited_total",
			Help: "Total number of code issuances rejected by the rate limiter",
		}),
		GenerationExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refward_code_generation_exhausted_total",
			Help: "Total number of issuances that exhausted the collision retry loop",
		}),
		ValidationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "refward_code_validation_failures_total",
			Help: "Code validation failures by reason",
		}, []string{"reason"}),
	}
}

// IncrementCodesIssued records a successful issuance.
func (m *Metrics) IncrementCodesIssued() {
	m.CodesIssued.Inc()
}

// IncrementIssueRateLimited records a rate-limited issuance attempt.
func (m *Metrics) IncrementIssueRateLimited() {
	m.IssueRateLimited.Inc()
}

// IncrementGenerationExhausted records an exhausted retry loop.
func (m *Metrics) IncrementGenerationExhausted() {
	m.GenerationExhausted.Inc()
}

// IncrementValidationFailure records a failed validation by reason.
func (m *Metrics) IncrementValidationFailure(reason string) {
	m.ValidationFailures.WithLabelValues(reason).Inc()
}
