package routing

import (
	"context"
	"errors"
	"time"

	"baseroute/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	analyses     *prometheus.CounterVec
	duration     prometheus.Histogram
	droppedTiers *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baseroute",
			Subsystem: "routing",
			Name:      "analyses_total",
			Help:      "Analyze requests by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "baseroute",
			Subsystem: "routing",
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end latency of an analyze request.",
			Buckets:   prometheus.DefBuckets,
		}),
		droppedTiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baseroute",
			Subsystem: "routing",
			Name:      "dropped_tiers_total",
			Help:      "Fee tiers excluded from a result because no quote was available.",
		}, []string{"fee_tier"}),
	}
	if reg != nil {
		reg.MustRegister(m.analyses, m.duration, m.droppedTiers)
	}
	return m
}

func analysisOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoLiquidity):
		return "no_liquidity"
	case errors.Is(err, ErrUnknownToken), errors.Is(err, ErrUnsupportedPair), errors.Is(err, ErrInvalidAmount):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "aborted"
	default:
		return "error"
	}
}

func (m *metrics) observeAnalysis(err error, elapsed time.Duration) {
	m.analyses.WithLabelValues(analysisOutcome(err)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *metrics) tierDropped(fee model.FeeTier) {
	m.droppedTiers.WithLabelValues(fee.String()).Inc()
}
