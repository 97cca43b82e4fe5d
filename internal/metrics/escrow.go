package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type EscrowMetrics struct {
	transitions   *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	volume        *prometheus.CounterVec
	feesCollected prometheus.Counter
	paused        prometheus.Gauge
	notifications *prometheus.CounterVec
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rentchain_payment_transitions_total",
				Help: "Committed payment lifecycle transitions by target status.",
			}, []string{"status"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rentchain_operation_rejections_total",
				Help: "Rejected engine operations by operation and error kind.",
			}, []string{"operation", "kind"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rentchain_settled_volume_micro_total",
				Help: "Gross settled value in micro units by settlement method.",
			}, []string{"method"}),
			feesCollected: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rentchain_fees_collected_micro_total",
				Help: "Platform fees credited to the treasury in micro units.",
			}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "rentchain_engine_paused",
				Help: "1 while the engine is paused by the operator.",
			}),
			notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rentchain_notifications_total",
				Help: "Outbound notifications by kind and result.",
			}, []string{"kind", "result"}),
		}
		prometheus.MustRegister(
			escrowRegistry.transitions,
			escrowRegistry.rejections,
			escrowRegistry.volume,
			escrowRegistry.feesCollected,
			escrowRegistry.paused,
			escrowRegistry.notifications,
		)
	})
	return escrowRegistry
}

func (m *EscrowMetrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *EscrowMetrics) ObserveRejection(operation, kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "internal"
	}
	m.rejections.WithLabelValues(operation, kind).Inc()
}

func (m *EscrowMetrics) ObserveSettlement(method string, gross, fee int64) {
	if m == nil {
		return
	}
	m.volume.WithLabelValues(method).Add(float64(gross))
	if fee > 0 {
		m.feesCollected.Add(float64(fee))
	}
}

func (m *EscrowMetrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}

func (m *EscrowMetrics) ObserveNotification(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}
