package observability

import (
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by synchronizer events.
type Metrics struct {
	Events       *prometheus.CounterVec
	Propagations *prometheus.CounterVec
	Bindings     prometheus.Gauge
	ValueSize    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blocksync_events_total",
				Help: "Synchronizer decisions by event type and target mode",
			},
			[]string{"type", "mode"},
		),
		Propagations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blocksync_propagations_total",
				Help: "Store changes reported outward, by callback",
			},
			[]string{"callback"},
		),
		Bindings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blocksync_active_bindings",
			Help: "Bindings currently subscribed to a store",
		}),
		ValueSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blocksync_value_size_nodes",
			Help:    "Top-level node count of values written or propagated",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Events, m.Propagations, m.Bindings, m.ValueSize)
	}
	return m
}

func (m *Metrics) record(e *domain.SyncEvent) {
	m.Events.WithLabelValues(string(e.Type), string(e.Target.Mode())).Inc()
}

// Hooks returns the hook set that feeds these metrics.
func (m *Metrics) Hooks() domain.SyncHooks {
	return domain.SyncHooks{
		OnBind: func(e *domain.SyncEvent) {
			m.record(e)
			m.Bindings.Inc()
		},
		OnWrite: func(e *domain.SyncEvent) {
			m.record(e)
			m.ValueSize.Observe(float64(e.Size))
		},
		OnSkip: m.record,
		OnEcho: m.record,
		OnPropagate: func(e *domain.SyncEvent) {
			m.record(e)
			m.ValueSize.Observe(float64(e.Size))
			callback := "on_input"
			if e.Persistent {
				callback = "on_change"
			}
			m.Propagations.WithLabelValues(callback).Inc()
		},
		OnUnbind: func(e *domain.SyncEvent) {
			m.record(e)
			m.Bindings.Dec()
		},
	}
}
