package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejections  *prometheus.CounterVec
	StoreErrors prometheus.Counter
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phonecheck_ratelimit_rejections_total",
			Help: "Requests rejected by the rate limiter, by limit type",
		}, []string{"limit"}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "phonecheck_ratelimit_store_errors_total",
			Help: "Rate limit checks that failed open because the store errored",
		}),
	}
}

func (m *Metrics) IncrementRejection(limit string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(limit).Inc()
}

func (m *Metrics) IncrementStoreError() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}
