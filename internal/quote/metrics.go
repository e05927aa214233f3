package quote

import (
	"time"

	"baseroute/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

// Quote attempt outcomes.
const (
	outcomeOK        = "ok"
	outcomeRevert    = "revert"
	outcomeTransport = "transport"
)

// Metrics holds the quote client collectors.
type Metrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baseroute",
			Subsystem: "quote",
			Name:      "attempts_total",
			Help:      "Quote attempts by provider, fee tier and outcome.",
		}, []string{"provider", "fee_tier", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "baseroute",
			Subsystem: "quote",
			Name:      "attempt_duration_seconds",
			Help:      "Latency of a single quote attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"provider", "fee_tier"}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.duration)
	}
	return m
}

func (m *Metrics) observe(provider string, fee model.FeeTier, outcome string, elapsed time.Duration) {
	m.attempts.WithLabelValues(provider, fee.String(), outcome).Inc()
	m.duration.WithLabelValues(provider, fee.String()).Observe(elapsed.Seconds())
}
