package metrics

import "github.com/prometheus/client_golang/prometheus"

// LifecycleMetrics counts the outcomes of subscription lifecycle runs.
type LifecycleMetrics struct {
	charges    prometheus.Counter
	blocked    prometheus.Counter
	itemErrors *prometheus.CounterVec
	runs       *prometheus.CounterVec
}

// NewLifecycleMetrics registers the lifecycle counters on reg. A nil
// registerer yields a no-op recorder.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	if reg == nil {
		return &LifecycleMetrics{}
	}
	charges := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autobilling_charges_created_total",
		Help: "Renewal charges accepted by the payment provider.",
	})
	blocked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autobilling_subscriptions_blocked_total",
		Help: "Subscriptions blocked after their grace period.",
	})
	itemErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autobilling_item_errors_total",
		Help: "Per-subscription failures recorded during lifecycle runs.",
	}, []string{"step"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autobilling_runs_total",
		Help: "Lifecycle runs by trigger source.",
	}, []string{"trigger"})
	reg.MustRegister(charges, blocked, itemErrors, runs)
	return &LifecycleMetrics{
		charges:    charges,
		blocked:    blocked,
		itemErrors: itemErrors,
		runs:       runs,
	}
}

func (m *LifecycleMetrics) IncChargeCreated() {
	if m == nil || m.charges == nil {
		return
	}
	m.charges.Inc()
}

func (m *LifecycleMetrics) IncBlocked() {
	if m == nil || m.blocked == nil {
		return
	}
	m.blocked.Inc()
}

// IncItemError counts one failed item under its step label (missing_customer, gateway, persist, claim).
func (m *LifecycleMetrics) IncItemError(step string) {
	if m == nil || m.itemErrors == nil {
		return
	}
	m.itemErrors.WithLabelValues(normalizeLabel(step)).Inc()
}

func (m *LifecycleMetrics) IncRun(trigger string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(normalizeLabel(trigger)).Inc()
}
