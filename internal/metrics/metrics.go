// Package metrics defines the Prometheus collectors for compute operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hearth"

// Result label values.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
)

// Metrics holds the compute collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	vmCreates       *prometheus.CounterVec
	vmDestroys      *prometheus.CounterVec
	compensations   prometheus.Counter
	cleanupWarnings *prometheus.CounterVec
	ghostVMs        prometheus.Gauge
	createDuration  prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		vmCreates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vm_create_total",
			Help:      "VM create requests by result",
		}, []string{"result"}),
		vmDestroys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vm_destroy_total",
			Help:      "VM destroy requests by result",
		}, []string{"result"}),
		compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vm_compensations_total",
			Help:      "VM creates rolled back after a partial failure",
		}),
		cleanupWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_warnings_total",
			Help:      "Best-effort cleanup steps that failed, by step",
		}, []string{"step"}),
		ghostVMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ghost_vms",
			Help:      "Hypervisor domains without a metadata record at the last reconciliation",
		}),
		createDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vm_create_duration_seconds",
			Help:      "Time spent creating a VM, including rollback",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}

	reg.MustRegister(m.vmCreates, m.vmDestroys, m.compensations, m.cleanupWarnings, m.ghostVMs, m.createDuration)
	return m
}

func (m *Metrics) VMCreated(result string, seconds float64) {
	if m == nil {
		return
	}
	m.vmCreates.WithLabelValues(result).Inc()
	m.createDuration.Observe(seconds)
}

func (m *Metrics) VMDestroyed(result string) {
	if m == nil {
		return
	}
	m.vmDestroys.WithLabelValues(result).Inc()
}

func (m *Metrics) Compensated() {
	if m == nil {
		return
	}
	m.compensations.Inc()
}

func (m *Metrics) CleanupWarning(step string) {
	if m == nil {
		return
	}
	m.cleanupWarnings.WithLabelValues(step).Inc()
}

func (m *Metrics) GhostVMs(n int) {
	if m == nil {
		return
	}
	m.ghostVMs.Set(float64(n))
}
