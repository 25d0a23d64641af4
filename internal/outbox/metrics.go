package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks outbox relay throughput and health.
type Metrics struct {
	Published       prometheus.Counter
	PublishFailures prometheus.Counter
	BreakerOpen     prometheus.Gauge
}

// NewMetrics registers outbox metrics with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers outbox metrics with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounter(prometheus.CounterOpts{
			Name: "vendemos_outbox_published_total",
			Help: "Outbox entries delivered to the event stream",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "vendemos_outbox_publish_failures_total",
			Help: "Outbox batches that failed to publish",
		}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "vendemos_outbox_breaker_open",
			Help: "1 while the outbox publisher circuit is open",
		}),
	}
}

func (m *Metrics) AddPublished(n int) {
	m.Published.Add(float64(n))
}

func (m *Metrics) IncPublishFailures() {
	m.PublishFailures.Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}
