package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LockersMetrics struct {
	operations   *prometheus.CounterVec
	slashed      *prometheus.CounterVec
	netMinted    *prometheus.GaugeVec
	active       prometheus.Gauge
	liquidations prometheus.Counter
	auditEvents  *prometheus.CounterVec
}

var (
	lockersOnce     sync.Once
	lockersRegistry *LockersMetrics
)

// Lockers returns the process-wide collectors for the locker registry,
// registering them on first use.
func Lockers() *LockersMetrics {
	lockersOnce.Do(func() {
		lockersRegistry = &LockersMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lockers_operations_total",
				Help: "Count of locker registry operations by name and result.",
			}, []string{"op", "result"}),
			slashed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lockers_slashed_collateral_total",
				Help: "Collateral units deducted by slashing, by fault class.",
			}, []string{"kind"}),
			netMinted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lockers_net_minted",
				Help: "Outstanding pegged-token liability per locker.",
			}, []string{"locker"}),
			active: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lockers_active_total",
				Help: "Number of admitted lockers.",
			}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lockers_liquidations_total",
				Help: "Number of successful liquidations.",
			}),
			auditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lockers_audit_events_total",
				Help: "Events persisted by the audit store, by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(
			lockersRegistry.operations,
			lockersRegistry.slashed,
			lockersRegistry.netMinted,
			lockersRegistry.active,
			lockersRegistry.liquidations,
			lockersRegistry.auditEvents,
		)
	})
	return lockersRegistry
}

func (m *LockersMetrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *LockersMetrics) AddSlashed(kind string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.slashed.WithLabelValues(kind).Add(amount)
}

func (m *LockersMetrics) SetNetMinted(locker string, amount float64) {
	if m == nil {
		return
	}
	m.netMinted.WithLabelValues(locker).Set(amount)
}

func (m *LockersMetrics) SetActive(count uint64) {
	if m == nil {
		return
	}
	m.active.Set(float64(count))
}

func (m *LockersMetrics) IncLiquidation() {
	if m == nil {
		return
	}
	m.liquidations.Inc()
}

func (m *LockersMetrics) ObserveAuditEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.auditEvents.WithLabelValues(eventType).Inc()
}
