package metrics

import "github.com/prometheus/client_golang/prometheus"

// CheckoutMetrics exposes counters/histograms for the checkout flows.
type CheckoutMetrics struct {
	upstreamTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	lookupsTotal    *prometheus.CounterVec
	submitsTotal    *prometheus.CounterVec
	activeSessions  prometheus.Gauge
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	m := &CheckoutMetrics{
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sr22",
			Subsystem: "checkout",
			Name:      "upstream_requests_total",
			Help:      "Calls to auth, catalog, lookup and gateway services",
		}, []string{"endpoint", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sr22",
			Subsystem: "checkout",
			Name:      "upstream_latency_seconds",
			Help:      "Latency of upstream calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		lookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sr22",
			Subsystem: "checkout",
			Name:      "phone_lookups_total",
			Help:      "Phone lookups by outcome (found, not_found, stale, skipped)",
		}, []string{"outcome"}),
		submitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sr22",
			Subsystem: "checkout",
			Name:      "submissions_total",
			Help:      "Checkout submissions by outcome",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sr22",
			Subsystem: "checkout",
			Name:      "active_sessions",
			Help:      "Checkout sessions held in memory",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.upstreamTotal, m.upstreamLatency, m.lookupsTotal, m.submitsTotal, m.activeSessions)
	return m
}

func (m *CheckoutMetrics) ObserveUpstream(endpoint, status string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(endpoint, status).Inc()
	m.upstreamLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *CheckoutMetrics) ObserveLookup(outcome string) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(outcome).Inc()
}

func (m *CheckoutMetrics) ObserveSubmit(outcome string) {
	if m == nil {
		return
	}
	m.submitsTotal.WithLabelValues(outcome).Inc()
}

func (m *CheckoutMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
