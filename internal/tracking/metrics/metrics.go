package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for click tracking.
type Metrics struct {
	ClicksTracked  prometheus.Counter
	ClicksRejected *prometheus.CounterVec
	BotClicks      prometheus.Counter
}

// New creates a Metrics instance with all tracking metrics registered.
func New() *Metrics {
	return &Metrics{
		ClicksTracked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refward_clicks_tracked_total",
			Help: "Total number of referral clicks recorded",
		}),
		ClicksRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "refward_clicks_rejected_total",
			Help: "Referral clicks rejected at validation, by reason",
		}, []string{"reason"}),
		BotClicks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refward_bot_clicks_total",
			Help: "Recorded clicks whose user agent identified as a bot",
		}),
	}
}

// IncrementClicksTracked records a persisted click.
func (m *Metrics) IncrementClicksTracked() {
	m.ClicksTracked.Inc()
}

// IncrementClicksRejected records a rejected click by reason.
func (m *Metrics) IncrementClicksRejected(reason string) {
	m.ClicksRejected.WithLabelValues(reason).Inc()
}

// IncrementBotClicks records a click flagged as bot traffic.
func (m *Metrics) IncrementBotClicks() {
	m.BotClicks.Inc()
}
