package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for listing status changes.
type Metrics struct {
	Transitions          *prometheus.CounterVec
	Rejections           *prometheus.CounterVec
	NoOps                prometheus.Counter
	WriteConflicts       prometheus.Counter
	AuditWriteFailures   prometheus.Counter
	ChangeStatusDuration prometheus.Histogram
}

// New registers listing metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers listing metrics with reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vendemos_listing_transitions_total",
			Help: "Applied listing status transitions by source and target status",
		}, []string{"from", "to"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vendemos_listing_transition_rejections_total",
			Help: "Transitions rejected by the status policy, by reason",
		}, []string{"reason"}),
		NoOps: f.NewCounter(prometheus.CounterOpts{
			Name: "vendemos_listing_transition_noops_total",
			Help: "Status change requests that matched the current status",
		}),
		WriteConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "vendemos_listing_status_write_conflicts_total",
			Help: "Compare-and-swap status writes lost to a concurrent writer",
		}),
		AuditWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "vendemos_listing_audit_write_failures_total",
			Help: "Audit trail appends that failed after the status write succeeded",
		}),
		ChangeStatusDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vendemos_change_status_duration_seconds",
			Help:    "Duration of ChangeStatus operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementTransition(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncrementRejection(reason string) {
	m.Rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementNoOp() {
	m.NoOps.Inc()
}

func (m *Metrics) IncrementWriteConflict() {
	m.WriteConflicts.Inc()
}

func (m *Metrics) IncrementAuditWriteFailure() {
	m.AuditWriteFailures.Inc()
}

// ObserveChangeStatus records the duration of a ChangeStatus call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveChangeStatus(start time.Time) {
	m.ChangeStatusDuration.Observe(time.Since(start).Seconds())
}
