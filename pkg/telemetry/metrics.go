package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lborres/gatekeep/core"
)

var _ core.Observer = (*Metrics)(nil)

// Metrics turns events into Prometheus counters.
type Metrics struct {
	rateLimit   *prometheus.CounterVec
	authEvents  *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
}

// NewMetrics registers the gatekeep counters on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rateLimit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekeep",
			Name:      "ratelimit_decisions_total",
			Help:      "Rate limiter decisions by route and outcome.",
		}, []string{"route", "outcome"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekeep",
			Name:      "auth_events_total",
			Help:      "Authentication operations by event and outcome.",
		}, []string{"event", "outcome"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekeep",
			Name:      "store_errors_total",
			Help:      "Failed or timed out store operations.",
		}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{m.rateLimit, m.authEvents, m.storeErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Observe(_ context.Context, e core.Event) {
	switch e.Type {
	case core.EventRateLimit:
		m.rateLimit.WithLabelValues(e.Route, e.Outcome).Inc()
	case core.EventLimiterFailOpen:
		m.rateLimit.WithLabelValues(e.Route, "fail_open").Inc()
		m.storeErrors.WithLabelValues(e.Op).Inc()
	case core.EventStoreFailure:
		m.storeErrors.WithLabelValues(e.Op).Inc()
	default:
		m.authEvents.WithLabelValues(string(e.Type), e.Outcome).Inc()
	}
}
