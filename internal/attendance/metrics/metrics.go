package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the attendance module.
type Metrics struct {
	CheckInsTotal     prometheus.Counter
	CheckInsRejected  *prometheus.CounterVec
	CheckOutsTotal    prometheus.Counter
	StatusOverrides   *prometheus.CounterVec
	CompensationTotal prometheus.Counter
	Occupancy         *prometheus.GaugeVec
}

func New() *Metrics {
	return &Metrics{
		CheckInsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_check_ins_total",
			Help: "Total number of successful check-ins",
		}),
		CheckInsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_check_ins_rejected_total",
			Help: "Total number of rejected check-ins by reason",
		}, []string{"reason"}),
		CheckOutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_check_outs_total",
			Help: "Total number of successful check-outs",
		}),
		StatusOverrides: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_status_overrides_total",
			Help: "Total number of operator status overrides by target status",
		}, []string{"status"}),
		CompensationTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_gate_compensations_total",
			Help: "Total number of gate releases compensating a failed ledger write",
		}),
		Occupancy: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rollcall_occupancy",
			Help: "Current occupancy per activity",
		}, []string{"activity_id"}),
	}
}

func (m *Metrics) IncrementCheckIns() {
	m.CheckInsTotal.Inc()
}

func (m *Metrics) IncrementRejected(reason string) {
	m.CheckInsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementCheckOuts() {
	m.CheckOutsTotal.Inc()
}

func (m *Metrics) IncrementOverrides(status string) {
	m.StatusOverrides.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementCompensations() {
	m.CompensationTotal.Inc()
}

func (m *Metrics) SetOccupancy(activityID string, current int) {
	m.Occupancy.WithLabelValues(activityID).Set(float64(current))
}
