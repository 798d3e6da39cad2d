package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLifecycleMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLifecycleMetrics(reg)
	m.IncChargeCreated()
	m.IncChargeCreated()
	m.IncBlocked()
	m.IncItemError("gateway")
	m.IncItemError("")
	m.IncRun("cron")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	charges := findMetricFamily(mfs, "autobilling_charges_created_total")
	if charges == nil || charges.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatalf("expected two charges, got %v", charges)
	}
	blocked := findMetricFamily(mfs, "autobilling_subscriptions_blocked_total")
	if blocked == nil || blocked.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one block, got %v", blocked)
	}
	if got, err := fetchCounterValue(mfs, "autobilling_item_errors_total", "step", "gateway"); err != nil || got != 1 {
		t.Fatalf("unexpected item errors %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "autobilling_item_errors_total", "step", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected empty step to map to unknown, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "autobilling_runs_total", "trigger", "cron"); err != nil || got != 1 {
		t.Fatalf("unexpected runs %f (%v)", got, err)
	}
}

func TestNilLifecycleMetricsAreNoops(t *testing.T) {
	var m *LifecycleMetrics
	m.IncChargeCreated()
	m.IncBlocked()
	m.IncItemError("claim")
	m.IncRun("http")

	NewLifecycleMetrics(nil).IncRun("http")
}
