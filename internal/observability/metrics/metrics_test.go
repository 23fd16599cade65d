package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matches(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range metric.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok && want == lp.GetValue() {
			found++
		}
	}
	return found == len(labels)
}

func TestCheckoutMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)
	m.ObserveUpstream("products", "ok", 0.2)
	m.ObserveUpstream("products", "ok", 0.1)
	m.ObserveLookup("stale")
	m.ObserveSubmit("redirect")
	m.SetActiveSessions(3)

	if got := counterValue(t, reg, "sr22_checkout_upstream_requests_total", map[string]string{"endpoint": "products", "status": "ok"}); got != 2 {
		t.Fatalf("expected 2 upstream calls, got %v", got)
	}
	if got := counterValue(t, reg, "sr22_checkout_phone_lookups_total", map[string]string{"outcome": "stale"}); got != 1 {
		t.Fatalf("expected 1 stale lookup, got %v", got)
	}
	if got := counterValue(t, reg, "sr22_checkout_submissions_total", map[string]string{"outcome": "redirect"}); got != 1 {
		t.Fatalf("expected 1 submission, got %v", got)
	}
}

func TestCheckoutMetricsNilSafe(t *testing.T) {
	var m *CheckoutMetrics
	m.ObserveUpstream("auth", "error", 0.1)
	m.ObserveLookup("found")
	m.ObserveSubmit("error")
	m.SetActiveSessions(1)
}
